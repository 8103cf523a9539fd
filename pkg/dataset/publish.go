package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const parquetContentType = "application/vnd.apache.parquet"

// s3API is the subset of the S3 client used by the publisher.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Logger *slog.Logger

	Bucket      string
	Region      string
	Prefix      string // optional key prefix inside the bucket
	EndpointURL string // optional custom endpoint (for MinIO testing)

	// Client overrides the S3 client, for tests.
	Client s3API
}

func (cfg *PublisherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// Publisher uploads processed artifacts to an S3 bucket so downstream
// consumers can read them without access to the local data directory.
type Publisher struct {
	log    *slog.Logger
	client s3API
	bucket string
	prefix string
}

// NewPublisher creates a publisher using the default AWS credential chain.
func NewPublisher(ctx context.Context, cfg PublisherConfig) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		clientOpts := []func(*s3.Options){
			func(o *s3.Options) {
				o.UsePathStyle = true // MinIO compatibility
			},
		}
		if cfg.EndpointURL != "" {
			clientOpts = append(clientOpts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			})
		}
		client = s3.NewFromConfig(awsCfg, clientOpts...)
	}

	return &Publisher{
		log:    cfg.Logger,
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Publish uploads the named processed artifacts. Each artifact is uploaded
// whole; an absent artifact fails the publish with NotFoundError.
func (p *Publisher) Publish(ctx context.Context, store *Store, names []string) error {
	for _, name := range names {
		localPath := store.ProcessedPath(name)
		f, err := os.Open(localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return &NotFoundError{Name: name, Path: localPath}
			}
			return fmt.Errorf("failed to open %s: %w", localPath, err)
		}

		key := path.Join(p.prefix, name+processedExt)
		_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(parquetContentType),
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", name, p.bucket, key, err)
		}

		p.log.Info("dataset/publish: uploaded artifact", "name", name, "bucket", p.bucket, "key", key)
	}
	return nil
}
