package census

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auslabs/abslake/pkg/dataset"
)

// PopulationFact is one observation from the C21_G01_SA2 table (selected
// person characteristics by sex), keyed by dimension codes with a single
// persons measure.
type PopulationFact struct {
	Sex      *string `parquet:"sex,optional" json:"sex"`
	AgeGroup *string `parquet:"age_group,optional" json:"age_group"`
	GeogID   *string `parquet:"geog_id,optional" json:"geog_id"`
	GeogType *string `parquet:"geog_type,optional" json:"geog_type"`
	State    *string `parquet:"state,optional" json:"state"`
	Year     *int64  `parquet:"year,optional" json:"year"`
	Persons  *int64  `parquet:"persons,optional" json:"persons"`
}

// PopulationOutputs holds the fact table and lookup tables produced by the
// population transform.
type PopulationOutputs struct {
	Fact           []PopulationFact
	GeoLookup      []GeoLookupRow
	SexLookup      []SexLookupRow
	AgeLookup      []AgeLookupRow
	GeogTypeLookup []GeogTypeLookupRow
	StateLookup    []StateLookupRow

	// DuplicateGeogIDs counts geography ids that map to more than one
	// (name, type, state) row. See countDuplicateGeogIDs.
	DuplicateGeogIDs int
}

// populationColumns are the columns a raw C21_G01_SA2 extract must contain.
var populationColumns = []string{
	ColSex,
	ColPersonCharacteristic,
	ColRegion,
	ColRegionType,
	ColState,
	ColTimePeriod,
	ColObsValue,
}

// TransformPopulation reshapes a raw C21_G01_SA2 extract into a tidy fact
// table and five lookup tables. The fact table maps 1:1 to input rows; no
// row is dropped or added, and duplicate dimension tuples are preserved.
// Returns a ValidationError when required columns are absent.
func TransformPopulation(batch *dataset.RecordBatch) (*PopulationOutputs, error) {
	if err := requireColumns(batch, populationColumns); err != nil {
		return nil, err
	}

	facts := make([]PopulationFact, 0, len(batch.Rows))
	geo := make([]GeoLookupRow, 0, len(batch.Rows))
	sexes := make([]SexLookupRow, 0, len(batch.Rows))
	ages := make([]AgeLookupRow, 0, len(batch.Rows))
	geogTypes := make([]GeogTypeLookupRow, 0, len(batch.Rows))
	states := make([]StateLookupRow, 0, len(batch.Rows))

	for _, row := range batch.Rows {
		sex, sexLabel := SplitCodeLabel(row[ColSex])
		ageGroup, ageLabel := SplitCodeLabel(row[ColPersonCharacteristic])
		geogID, geogName := SplitCodeLabel(row[ColRegion])
		geogType, geogTypeLabel := SplitCodeLabel(row[ColRegionType])
		state, stateLabel := SplitCodeLabel(row[ColState])

		facts = append(facts, PopulationFact{
			Sex:      sex,
			AgeGroup: ageGroup,
			GeogID:   geogID,
			GeogType: geogType,
			State:    state,
			Year:     toNullableInt(row[ColTimePeriod]),
			Persons:  toNullableInt(row[ColObsValue]),
		})

		geo = append(geo, GeoLookupRow{GeogID: geogID, GeogName: geogName, GeogType: geogType, State: state})
		sexes = append(sexes, SexLookupRow{Sex: sex, SexLabel: sexLabel})
		ages = append(ages, AgeLookupRow{AgeGroup: ageGroup, AgeGroupLabel: ageLabel})
		geogTypes = append(geogTypes, GeogTypeLookupRow{GeogType: geogType, GeogTypeLabel: geogTypeLabel})
		states = append(states, StateLookupRow{State: state, StateLabel: stateLabel})
	}

	out := &PopulationOutputs{
		Fact:           facts,
		GeoLookup:      uniqueSorted(geo, GeoLookupRow.contentKey, compareGeoLookups),
		SexLookup:      uniqueSorted(sexes, SexLookupRow.contentKey, compareSexLookups),
		AgeLookup:      uniqueSorted(ages, AgeLookupRow.contentKey, compareAgeLookups),
		GeogTypeLookup: uniqueSorted(geogTypes, GeogTypeLookupRow.contentKey, compareGeogTypeLookups),
		StateLookup:    uniqueSorted(states, StateLookupRow.contentKey, compareStateLookups),
	}
	out.DuplicateGeogIDs = countDuplicateGeogIDs(out.GeoLookup)
	return out, nil
}

// PopulationPipelineConfig configures a PopulationPipeline.
type PopulationPipelineConfig struct {
	Logger *slog.Logger
	Store  *dataset.Store

	// InputName overrides the default raw artifact name.
	InputName string
}

func (cfg *PopulationPipelineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.InputName == "" {
		cfg.InputName = RawPopulationName
	}
	return nil
}

// PopulationPipeline loads a raw C21_G01_SA2 extract, transforms it, and
// persists the fact table and lookups. Every write fully replaces the
// artifact of the same name; this pipeline never merges.
type PopulationPipeline struct {
	log   *slog.Logger
	store *dataset.Store
	input string
}

func NewPopulationPipeline(cfg PopulationPipelineConfig) (*PopulationPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PopulationPipeline{
		log:   cfg.Logger,
		store: cfg.Store,
		input: cfg.InputName,
	}, nil
}

// Run executes the pipeline: load, validate, transform, persist. Validation
// failures and load failures happen before any write.
func (p *PopulationPipeline) Run(ctx context.Context) (*PopulationOutputs, error) {
	batch, err := p.store.LoadRaw(p.input)
	if err != nil {
		return nil, err
	}
	p.log.Debug("census/population: loaded raw extract", "input", p.input, "rows", batch.Len())

	out, err := TransformPopulation(batch)
	if err != nil {
		return nil, err
	}
	if out.DuplicateGeogIDs > 0 {
		p.log.Warn("census/population: geography ids with conflicting lookup rows",
			"count", out.DuplicateGeogIDs)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := dataset.WriteProcessed(p.store, ArtifactPopulationFact, out.Fact); err != nil {
		return nil, fmt.Errorf("failed to persist fact table: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactGeoLookup, out.GeoLookup); err != nil {
		return nil, fmt.Errorf("failed to persist geo lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactSexLookup, out.SexLookup); err != nil {
		return nil, fmt.Errorf("failed to persist sex lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactAgeLookup, out.AgeLookup); err != nil {
		return nil, fmt.Errorf("failed to persist age lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactGeogTypeLookup, out.GeogTypeLookup); err != nil {
		return nil, fmt.Errorf("failed to persist geog type lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactStateLookup, out.StateLookup); err != nil {
		return nil, fmt.Errorf("failed to persist state lookup: %w", err)
	}

	p.log.Info("census/population: pipeline completed",
		"input", p.input,
		"fact_rows", len(out.Fact),
		"geo_lookup_rows", len(out.GeoLookup))
	return out, nil
}
