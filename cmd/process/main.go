// Command process runs the census transformation pipelines over raw extracts
// in the data directory, writing fact and lookup artifacts to the processed
// area and optionally publishing them to S3.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/auslabs/abslake/pkg/census"
	"github.com/auslabs/abslake/pkg/dataset"
	"github.com/auslabs/abslake/pkg/logger"
	"github.com/auslabs/abslake/pkg/metrics"
)

const defaultDataDir = "./data"

const (
	pipelineAll        = "all"
	pipelinePopulation = "population"
	pipelineHealth     = "health"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dataDirFlag := flag.String("data-dir", defaultDataDir, "data directory root (or set ABSLAKE_DATA_DIR env var)")
	pipelineFlag := flag.String("pipeline", pipelineAll, "pipeline to run: all, population, health")
	lookupModeFlag := flag.String("lookup-mode", string(census.LookupModeMerge), "health lookup mode: merge or standalone")
	s3BucketFlag := flag.String("s3-bucket", "", "publish processed artifacts to this S3 bucket (or set ABSLAKE_S3_BUCKET env var)")
	s3RegionFlag := flag.String("s3-region", "ap-southeast-2", "AWS region for the S3 bucket (or set ABSLAKE_S3_REGION env var)")
	s3PrefixFlag := flag.String("s3-prefix", "processed", "key prefix for published artifacts")
	s3EndpointFlag := flag.String("s3-endpoint", "", "custom S3 endpoint URL, for S3-compatible stores (or set ABSLAKE_S3_ENDPOINT env var)")
	flag.Parse()

	// Load .env file. godotenv does not override existing env vars, so
	// process env and explicit exports take precedence.
	_ = godotenv.Load()

	if envDataDir := os.Getenv("ABSLAKE_DATA_DIR"); envDataDir != "" {
		*dataDirFlag = envDataDir
	}
	if envBucket := os.Getenv("ABSLAKE_S3_BUCKET"); envBucket != "" {
		*s3BucketFlag = envBucket
	}
	if envRegion := os.Getenv("ABSLAKE_S3_REGION"); envRegion != "" {
		*s3RegionFlag = envRegion
	}
	if envEndpoint := os.Getenv("ABSLAKE_S3_ENDPOINT"); envEndpoint != "" {
		*s3EndpointFlag = envEndpoint
	}

	runPopulation := *pipelineFlag == pipelineAll || *pipelineFlag == pipelinePopulation
	runHealth := *pipelineFlag == pipelineAll || *pipelineFlag == pipelineHealth
	if !runPopulation && !runHealth {
		return fmt.Errorf("invalid pipeline %q", *pipelineFlag)
	}

	runID := uuid.NewString()
	log := logger.New(*verboseFlag).With("run_id", runID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := <-sigCh
		log.Info("process: received signal", "signal", sig.String())
		cancel()
	}()

	store, err := dataset.NewStore(dataset.StoreConfig{
		Logger:  log,
		DataDir: *dataDirFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	start := time.Now()
	var published []string

	if runPopulation {
		pipeline, err := census.NewPopulationPipeline(census.PopulationPipelineConfig{
			Logger: log,
			Store:  store,
		})
		if err != nil {
			return fmt.Errorf("failed to create population pipeline: %w", err)
		}
		out, err := pipeline.Run(ctx)
		if err != nil {
			metrics.PipelineRuns.WithLabelValues(pipelinePopulation, "error").Inc()
			return fmt.Errorf("population pipeline failed: %w", err)
		}
		metrics.PipelineRuns.WithLabelValues(pipelinePopulation, "ok").Inc()
		metrics.DuplicateGeographies.WithLabelValues(pipelinePopulation).Set(float64(out.DuplicateGeogIDs))
		published = append(published,
			census.ArtifactPopulationFact,
			census.ArtifactGeoLookup,
			census.ArtifactSexLookup,
			census.ArtifactAgeLookup,
			census.ArtifactGeogTypeLookup,
			census.ArtifactStateLookup,
		)
	}

	if runHealth {
		pipeline, err := census.NewHealthPipeline(census.HealthPipelineConfig{
			Logger:     log,
			Store:      store,
			LookupMode: census.LookupMode(*lookupModeFlag),
		})
		if err != nil {
			return fmt.Errorf("failed to create health pipeline: %w", err)
		}
		out, err := pipeline.Run(ctx)
		if err != nil {
			metrics.PipelineRuns.WithLabelValues(pipelineHealth, "error").Inc()
			return fmt.Errorf("health pipeline failed: %w", err)
		}
		metrics.PipelineRuns.WithLabelValues(pipelineHealth, "ok").Inc()
		metrics.DuplicateGeographies.WithLabelValues(pipelineHealth).Set(float64(out.DuplicateGeogIDs))
		published = append(published, healthArtifacts(census.LookupMode(*lookupModeFlag))...)
	}

	if *s3BucketFlag != "" {
		publisher, err := dataset.NewPublisher(ctx, dataset.PublisherConfig{
			Logger:      log,
			Bucket:      *s3BucketFlag,
			Region:      *s3RegionFlag,
			Prefix:      *s3PrefixFlag,
			EndpointURL: *s3EndpointFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create publisher: %w", err)
		}
		if err := publisher.Publish(ctx, store, dedupe(published)); err != nil {
			return fmt.Errorf("failed to publish artifacts: %w", err)
		}
	}

	log.Info("process: completed", "pipeline", *pipelineFlag, "duration", time.Since(start))
	return nil
}

// healthArtifacts lists the artifacts a health run writes or merges into,
// which depends on the lookup mode.
func healthArtifacts(mode census.LookupMode) []string {
	names := []string{
		census.ArtifactHealthFact,
		census.ArtifactHealthConditionLookup,
	}
	if mode == census.LookupModeStandalone {
		return append(names,
			census.ArtifactHealthGeoLookup,
			census.ArtifactHealthSexLookup,
			census.ArtifactHealthAgeLookup,
			census.ArtifactHealthGeogTypeLookup,
			census.ArtifactHealthStateLookup,
		)
	}
	return append(names,
		census.ArtifactCommonHealthLookup,
		census.ArtifactGeoLookup,
		census.ArtifactSexLookup,
		census.ArtifactAgeLookup,
		census.ArtifactGeogTypeLookup,
		census.ArtifactStateLookup,
	)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
