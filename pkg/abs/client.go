// Package abs is a client for the ABS Data API (SDMX REST). It covers the
// metadata discovery and data retrieval calls the census pipelines need; it
// is not a general SDMX client.
package abs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/auslabs/abslake/pkg/dataset"
)

// Format selects the response representation for data queries.
type Format string

const (
	FormatXML       Format = "xml"
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatCSVLabels Format = "csv_labels" // codes and labels, the pipelines' input format
)

// acceptHeaders maps formats to their Accept header values.
var acceptHeaders = map[Format]string{
	FormatXML:       "application/xml",
	FormatJSON:      "application/vnd.sdmx.data+json",
	FormatCSV:       "text/csv",
	FormatCSVLabels: "application/vnd.sdmx.data+csv;labels=both",
}

const acceptStructureJSON = "application/vnd.sdmx.structure+json"

const (
	// DefaultBaseURL is the public ABS Data API endpoint.
	DefaultBaseURL = "https://data.api.abs.gov.au/rest"
	// DefaultAgencyID identifies the ABS agency in SDMX paths.
	DefaultAgencyID = "ABS"
	// DefaultTimeout is generous because census extracts can be large.
	DefaultTimeout = 120 * time.Second

	defaultMaxRetries = 3
)

// Config configures a Client.
type Config struct {
	Logger *slog.Logger

	BaseURL    string
	AgencyID   string
	Timeout    time.Duration
	MaxRetries uint64

	// HTTPClient overrides the underlying client, for tests.
	HTTPClient *http.Client
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AgencyID == "" {
		cfg.AgencyID = DefaultAgencyID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return nil
}

// Client issues metadata and data queries against the ABS Data API.
type Client struct {
	log        *slog.Logger
	http       *http.Client
	baseURL    string
	agencyID   string
	maxRetries uint64
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		log:        cfg.Logger,
		http:       httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		agencyID:   cfg.AgencyID,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// buildURL joins path parts onto the base URL, skipping empties.
func (c *Client) buildURL(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, c.baseURL)
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

// get issues a GET with retries on transient failures. Connection errors,
// 429, and 5xx responses are retried with exponential backoff; other non-2xx
// statuses are permanent.
func (c *Client) get(ctx context.Context, rawURL, accept string, params url.Values) ([]byte, error) {
	var body []byte

	operation := func() error {
		u := rawURL
		if len(params) > 0 {
			u = rawURL + "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Accept", accept)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("transient status %d from %s", resp.StatusCode, rawURL)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// ListDataflows returns every dataflow the agency exposes.
func (c *Client) ListDataflows(ctx context.Context) ([]Dataflow, error) {
	body, err := c.get(ctx, c.buildURL("dataflow", c.agencyID), acceptStructureJSON, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataflows: %w", err)
	}
	return parseDataflows(body)
}

// DataflowStructure returns the dimensions (and, when requested, the
// referenced codelists) of a dataflow.
func (c *Client) DataflowStructure(ctx context.Context, dataflowID string, includeCodelists bool) (*Structure, error) {
	references := "none"
	if includeCodelists {
		references = "descendants"
	}
	params := url.Values{"references": []string{references}}

	body, err := c.get(ctx, c.buildURL("dataflow", c.agencyID, dataflowID), acceptStructureJSON, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get structure for %s: %w", dataflowID, err)
	}
	return parseStructure(dataflowID, body)
}

// Codelist returns the codes of a single codelist.
func (c *Client) Codelist(ctx context.Context, codelistID string) ([]Code, error) {
	body, err := c.get(ctx, c.buildURL("codelist", c.agencyID, codelistID), acceptStructureJSON, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get codelist %s: %w", codelistID, err)
	}
	codelists, err := parseCodelists(body)
	if err != nil {
		return nil, err
	}
	return codelists[codelistID], nil
}

// DataRequest describes a data retrieval query.
type DataRequest struct {
	DataflowID  string
	DataKey     string // dimension key filter, "all" when empty
	StartPeriod string
	EndPeriod   string
	Format      Format // FormatCSVLabels when empty
}

// Data retrieves observations as a RecordBatch. Only the CSV formats are
// supported; labels=both is the default because the pipelines depend on the
// "CODE: Label" headers it produces.
func (c *Client) Data(ctx context.Context, req DataRequest) (*dataset.RecordBatch, error) {
	if req.Format == "" {
		req.Format = FormatCSVLabels
	}
	if req.Format != FormatCSV && req.Format != FormatCSVLabels {
		return nil, fmt.Errorf("unsupported data format %q", req.Format)
	}
	if req.DataKey == "" {
		req.DataKey = "all"
	}

	// A dataflow id without an agency prefix gains one.
	dataflowID := req.DataflowID
	if !strings.Contains(dataflowID, ",") {
		dataflowID = c.agencyID + "," + dataflowID
	}

	params := url.Values{}
	if req.StartPeriod != "" {
		params.Set("startPeriod", req.StartPeriod)
	}
	if req.EndPeriod != "" {
		params.Set("endPeriod", req.EndPeriod)
	}

	c.log.Debug("abs/client: fetching data", "dataflow", req.DataflowID, "key", req.DataKey)

	body, err := c.get(ctx, c.buildURL("data", dataflowID, req.DataKey), acceptHeaders[req.Format], params)
	if err != nil {
		return nil, fmt.Errorf("failed to get data for %s: %w", req.DataflowID, err)
	}

	batch, err := dataset.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode data for %s: %w", req.DataflowID, err)
	}

	c.log.Debug("abs/client: fetched data", "dataflow", req.DataflowID, "rows", batch.Len())
	return batch, nil
}

// DataWithFilters retrieves observations with per-dimension filters. The
// data key is assembled in dimension-position order from the dataflow
// structure; multiple values for one dimension are OR'd with "+", absent
// dimensions are wildcards, and TIME_PERIOD is handled by the period
// parameters instead.
func (c *Client) DataWithFilters(ctx context.Context, dataflowID string, filters map[string][]string, startPeriod, endPeriod string) (*dataset.RecordBatch, error) {
	structure, err := c.DataflowStructure(ctx, dataflowID, false)
	if err != nil {
		return nil, err
	}

	keyParts := make([]string, 0, len(structure.Dimensions))
	for _, dim := range structure.Dimensions {
		if dim.ID == "TIME_PERIOD" {
			continue
		}
		keyParts = append(keyParts, strings.Join(filters[dim.ID], "+"))
	}

	return c.Data(ctx, DataRequest{
		DataflowID:  dataflowID,
		DataKey:     strings.Join(keyParts, "."),
		StartPeriod: startPeriod,
		EndPeriod:   endPeriod,
	})
}
