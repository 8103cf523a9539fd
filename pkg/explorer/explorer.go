// Package explorer provides discovery helpers over the ABS Data API: listing,
// searching, and describing dataflows without knowing their ids up front.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/auslabs/abslake/pkg/abs"
)

// Client is the slice of the ABS API client the explorer needs.
type Client interface {
	ListDataflows(ctx context.Context) ([]abs.Dataflow, error)
	DataflowStructure(ctx context.Context, dataflowID string, includeCodelists bool) (*abs.Structure, error)
}

// censusIDPattern matches census dataflow ids like C21_G01_SA2.
var censusIDPattern = regexp.MustCompile(`^C\d{2}`)

// topicKeywords maps topic categories to the terms that identify them in
// dataflow ids and names. Unknown topics fall back to a literal match.
var topicKeywords = map[string][]string{
	"population": {"population", "persons", "usual resident"},
	"age":        {"age", "median age"},
	"indigenous": {"indigenous", "aboriginal", "torres strait"},
	"health":     {"health", "disability", "assistance"},
	"income":     {"income", "earnings"},
	"education":  {"education", "qualification", "school"},
	"employment": {"employment", "occupation", "labour force"},
	"housing":    {"dwelling", "housing", "tenure", "rent", "mortgage"},
	"family":     {"family", "household", "children"},
	"migration":  {"birthplace", "migration", "ancestry", "citizenship"},
	"language":   {"language", "english proficiency"},
}

// Config configures an Explorer.
type Config struct {
	Logger *slog.Logger
	Client Client
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("client is required")
	}
	return nil
}

// Explorer searches and describes dataflows, caching the dataflow listing
// across calls.
type Explorer struct {
	log    *slog.Logger
	client Client

	mu        sync.Mutex
	dataflows []abs.Dataflow
}

// New creates an Explorer from cfg.
func New(cfg Config) (*Explorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Explorer{
		log:    cfg.Logger,
		client: cfg.Client,
	}, nil
}

// Dataflows returns the dataflow listing, fetching it once and reusing the
// cached copy on later calls.
func (e *Explorer) Dataflows(ctx context.Context) ([]abs.Dataflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dataflows != nil {
		return e.dataflows, nil
	}
	return e.refreshLocked(ctx)
}

// Refresh discards the cached listing and fetches a fresh one.
func (e *Explorer) Refresh(ctx context.Context) ([]abs.Dataflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

func (e *Explorer) refreshLocked(ctx context.Context) ([]abs.Dataflow, error) {
	dataflows, err := e.client.ListDataflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataflows: %w", err)
	}
	e.dataflows = dataflows
	e.log.Debug("explorer: refreshed dataflow cache", "count", len(dataflows))
	return dataflows, nil
}

// Search returns dataflows whose id or name contains term, case-insensitively.
func (e *Explorer) Search(ctx context.Context, term string) ([]abs.Dataflow, error) {
	dataflows, err := e.Dataflows(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	var matches []abs.Dataflow
	for _, df := range dataflows {
		if strings.Contains(strings.ToLower(df.ID), term) ||
			strings.Contains(strings.ToLower(df.Name), term) {
			matches = append(matches, df)
		}
	}
	return matches, nil
}

// FindCensusDataflows returns census dataflows, optionally filtered by census
// year ("2021" matches the C21 prefix) and geography level ("SA2").
func (e *Explorer) FindCensusDataflows(ctx context.Context, year, geographyLevel string) ([]abs.Dataflow, error) {
	dataflows, err := e.Dataflows(ctx)
	if err != nil {
		return nil, err
	}

	var prefix string
	if len(year) >= 2 {
		prefix = "C" + year[len(year)-2:]
	}
	geographyLevel = strings.ToLower(geographyLevel)

	var matches []abs.Dataflow
	for _, df := range dataflows {
		if !censusIDPattern.MatchString(df.ID) &&
			!strings.Contains(strings.ToLower(df.Name), "census") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(df.ID, prefix) {
			continue
		}
		if geographyLevel != "" &&
			!strings.Contains(strings.ToLower(df.ID), geographyLevel) &&
			!strings.Contains(strings.ToLower(df.Name), geographyLevel) {
			continue
		}
		matches = append(matches, df)
	}
	return matches, nil
}

// FindByTopic returns dataflows matching a topic category. Known categories
// expand into their keyword sets; anything else is treated as a literal term.
func (e *Explorer) FindByTopic(ctx context.Context, topic string) ([]abs.Dataflow, error) {
	dataflows, err := e.Dataflows(ctx)
	if err != nil {
		return nil, err
	}

	keywords, ok := topicKeywords[strings.ToLower(topic)]
	if !ok {
		keywords = []string{strings.ToLower(topic)}
	}

	var matches []abs.Dataflow
	for _, df := range dataflows {
		id := strings.ToLower(df.ID)
		name := strings.ToLower(df.Name)
		for _, kw := range keywords {
			if strings.Contains(id, kw) || strings.Contains(name, kw) {
				matches = append(matches, df)
				break
			}
		}
	}
	return matches, nil
}

// CodelistSummary condenses a codelist to its size and a few sample codes.
type CodelistSummary struct {
	ID      string
	Count   int
	Samples []abs.Code
}

// Description is the human-oriented view of a dataflow's structure.
type Description struct {
	DataflowID string
	Dimensions []abs.Dimension
	Codelists  []CodelistSummary
}

const codelistSampleSize = 5

// Describe fetches a dataflow's structure and summarizes its dimensions and
// the codelists they draw from.
func (e *Explorer) Describe(ctx context.Context, dataflowID string) (*Description, error) {
	structure, err := e.client.DataflowStructure(ctx, dataflowID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", dataflowID, err)
	}

	desc := &Description{
		DataflowID: dataflowID,
		Dimensions: structure.Dimensions,
	}
	// Summaries follow dimension order so the output reads top to bottom.
	for _, dim := range structure.Dimensions {
		codes, ok := structure.Codelists[dim.Codelist]
		if !ok {
			continue
		}
		samples := codes
		if len(samples) > codelistSampleSize {
			samples = samples[:codelistSampleSize]
		}
		desc.Codelists = append(desc.Codelists, CodelistSummary{
			ID:      dim.Codelist,
			Count:   len(codes),
			Samples: samples,
		})
	}
	return desc, nil
}

// geographyDimensionHints identify the geography axis of a dataflow.
var geographyDimensionHints = []string{"REGION", "ASGS", "SA1", "SA2", "SA3", "SA4", "LGA", "STE"}

// GeographyCodes returns the codes of a dataflow's geography dimension,
// auto-detected when dimensionID is empty.
func (e *Explorer) GeographyCodes(ctx context.Context, dataflowID, dimensionID string) ([]abs.Code, error) {
	structure, err := e.client.DataflowStructure(ctx, dataflowID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get structure for %s: %w", dataflowID, err)
	}

	if dimensionID == "" {
		for _, dim := range structure.Dimensions {
			upper := strings.ToUpper(dim.ID)
			for _, hint := range geographyDimensionHints {
				if strings.Contains(upper, hint) {
					dimensionID = dim.ID
					break
				}
			}
			if dimensionID != "" {
				break
			}
		}
		if dimensionID == "" {
			return nil, fmt.Errorf("no geography dimension found in %s", dataflowID)
		}
	}

	for _, dim := range structure.Dimensions {
		if dim.ID != dimensionID {
			continue
		}
		codes, ok := structure.Codelists[dim.Codelist]
		if !ok {
			return nil, fmt.Errorf("no codelist for dimension %s of %s", dimensionID, dataflowID)
		}
		return codes, nil
	}
	return nil, fmt.Errorf("dimension %s not found in %s", dimensionID, dataflowID)
}
