package census

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auslabs/abslake/pkg/dataset"
)

// HealthFact is one observation from the C21_G19_SA2 table (long-term health
// conditions by age by sex).
type HealthFact struct {
	Sex      *string `parquet:"sex,optional" json:"sex"`
	LTHC     *string `parquet:"lthc,optional" json:"lthc"`
	AgeGroup *string `parquet:"age_group,optional" json:"age_group"`
	GeogID   *string `parquet:"geog_id,optional" json:"geog_id"`
	GeogType *string `parquet:"geog_type,optional" json:"geog_type"`
	State    *string `parquet:"state,optional" json:"state"`
	Year     *int64  `parquet:"year,optional" json:"year"`
	Persons  *int64  `parquet:"persons,optional" json:"persons"`
}

// HealthOutputs holds the fact table and lookup tables produced by the
// health transform. After a merge-mode persist, the lookup fields hold the
// merged tables rather than the per-extract ones.
type HealthOutputs struct {
	Fact                  []HealthFact
	HealthConditionLookup []HealthConditionLookupRow
	GeoLookup             []GeoLookupRow
	SexLookup             []SexLookupRow
	AgeLookup             []AgeLookupRow
	GeogTypeLookup        []GeogTypeLookupRow
	StateLookup           []StateLookupRow

	DuplicateGeogIDs int
}

// healthColumns are the columns a raw C21_G19_SA2 extract must contain.
var healthColumns = []string{
	ColSex,
	ColHealthCondition,
	ColAge,
	ColRegion,
	ColRegionType,
	ColState,
	ColTimePeriod,
	ColObsValue,
}

// TransformHealth reshapes a raw C21_G19_SA2 extract into a tidy fact table
// and six lookup tables, following the same rules as TransformPopulation
// extended with the health condition dimension.
func TransformHealth(batch *dataset.RecordBatch) (*HealthOutputs, error) {
	if err := requireColumns(batch, healthColumns); err != nil {
		return nil, err
	}

	facts := make([]HealthFact, 0, len(batch.Rows))
	conditions := make([]HealthConditionLookupRow, 0, len(batch.Rows))
	geo := make([]GeoLookupRow, 0, len(batch.Rows))
	sexes := make([]SexLookupRow, 0, len(batch.Rows))
	ages := make([]AgeLookupRow, 0, len(batch.Rows))
	geogTypes := make([]GeogTypeLookupRow, 0, len(batch.Rows))
	states := make([]StateLookupRow, 0, len(batch.Rows))

	for _, row := range batch.Rows {
		sex, sexLabel := SplitCodeLabel(row[ColSex])
		lthc, condition := SplitCodeLabel(row[ColHealthCondition])
		ageGroup, ageLabel := SplitCodeLabel(row[ColAge])
		geogID, geogName := SplitCodeLabel(row[ColRegion])
		geogType, geogTypeLabel := SplitCodeLabel(row[ColRegionType])
		state, stateLabel := SplitCodeLabel(row[ColState])

		facts = append(facts, HealthFact{
			Sex:      sex,
			LTHC:     lthc,
			AgeGroup: ageGroup,
			GeogID:   geogID,
			GeogType: geogType,
			State:    state,
			Year:     toNullableInt(row[ColTimePeriod]),
			Persons:  toNullableInt(row[ColObsValue]),
		})

		conditions = append(conditions, HealthConditionLookupRow{LTHC: lthc, HealthCondition: condition})
		geo = append(geo, GeoLookupRow{GeogID: geogID, GeogName: geogName, GeogType: geogType, State: state})
		sexes = append(sexes, SexLookupRow{Sex: sex, SexLabel: sexLabel})
		ages = append(ages, AgeLookupRow{AgeGroup: ageGroup, AgeGroupLabel: ageLabel})
		geogTypes = append(geogTypes, GeogTypeLookupRow{GeogType: geogType, GeogTypeLabel: geogTypeLabel})
		states = append(states, StateLookupRow{State: state, StateLabel: stateLabel})
	}

	out := &HealthOutputs{
		Fact:                  facts,
		HealthConditionLookup: uniqueSorted(conditions, HealthConditionLookupRow.contentKey, compareHealthConditionLookups),
		GeoLookup:             uniqueSorted(geo, GeoLookupRow.contentKey, compareGeoLookups),
		SexLookup:             uniqueSorted(sexes, SexLookupRow.contentKey, compareSexLookups),
		AgeLookup:             uniqueSorted(ages, AgeLookupRow.contentKey, compareAgeLookups),
		GeogTypeLookup:        uniqueSorted(geogTypes, GeogTypeLookupRow.contentKey, compareGeogTypeLookups),
		StateLookup:           uniqueSorted(states, StateLookupRow.contentKey, compareStateLookups),
	}
	out.DuplicateGeogIDs = countDuplicateGeogIDs(out.GeoLookup)
	return out, nil
}

// LookupMode selects how the health pipeline reconciles its lookup tables
// with previously persisted ones.
type LookupMode string

const (
	// LookupModeMerge unions the shared dimension lookups into the
	// population pipeline's files and the health condition codes into the
	// common cross-dataset lookup. This is the default.
	LookupModeMerge LookupMode = "merge"

	// LookupModeStandalone writes every lookup under health-specific
	// artifact names without touching the population pipeline's files.
	LookupModeStandalone LookupMode = "standalone"
)

// HealthPipelineConfig configures a HealthPipeline.
type HealthPipelineConfig struct {
	Logger *slog.Logger
	Store  *dataset.Store

	// InputName overrides the default raw artifact name.
	InputName string

	// LookupMode defaults to LookupModeMerge.
	LookupMode LookupMode
}

func (cfg *HealthPipelineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.InputName == "" {
		cfg.InputName = RawHealthName
	}
	switch cfg.LookupMode {
	case "":
		cfg.LookupMode = LookupModeMerge
	case LookupModeMerge, LookupModeStandalone:
	default:
		return fmt.Errorf("invalid lookup mode %q", cfg.LookupMode)
	}
	return nil
}

// HealthPipeline loads a raw C21_G19_SA2 extract, transforms it, and
// persists the fact table and lookups under the configured lookup mode.
//
// Merge mode performs a read-modify-write over shared lookup artifacts.
// Invocations must be serialized by the operator; concurrent runs across
// processes can race on those files.
type HealthPipeline struct {
	log   *slog.Logger
	store *dataset.Store
	input string
	mode  LookupMode
}

func NewHealthPipeline(cfg HealthPipelineConfig) (*HealthPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HealthPipeline{
		log:   cfg.Logger,
		store: cfg.Store,
		input: cfg.InputName,
		mode:  cfg.LookupMode,
	}, nil
}

// Run executes the pipeline: load, validate, transform, persist. The fact
// table is always written to its own artifact; lookups follow the configured
// mode. Validation failures happen before any write.
func (p *HealthPipeline) Run(ctx context.Context) (*HealthOutputs, error) {
	batch, err := p.store.LoadRaw(p.input)
	if err != nil {
		return nil, err
	}
	p.log.Debug("census/health: loaded raw extract", "input", p.input, "rows", batch.Len())

	out, err := TransformHealth(batch)
	if err != nil {
		return nil, err
	}
	if out.DuplicateGeogIDs > 0 {
		p.log.Warn("census/health: geography ids with conflicting lookup rows",
			"count", out.DuplicateGeogIDs)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := dataset.WriteProcessed(p.store, ArtifactHealthFact, out.Fact); err != nil {
		return nil, fmt.Errorf("failed to persist fact table: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactHealthConditionLookup, out.HealthConditionLookup); err != nil {
		return nil, fmt.Errorf("failed to persist health condition lookup: %w", err)
	}

	switch p.mode {
	case LookupModeMerge:
		if err := p.mergeLookups(out); err != nil {
			return nil, err
		}
	case LookupModeStandalone:
		if err := p.writeStandaloneLookups(out); err != nil {
			return nil, err
		}
	}

	p.log.Info("census/health: pipeline completed",
		"input", p.input,
		"mode", string(p.mode),
		"fact_rows", len(out.Fact),
		"health_condition_rows", len(out.HealthConditionLookup))
	return out, nil
}

// mergeLookups unions this extract's lookups into the shared cross-dataset
// artifacts, so a health run after a population run extends those files, and
// a health run before one still yields a consistent union once the
// population pipeline later replaces and the next merge re-unions.
func (p *HealthPipeline) mergeLookups(out *HealthOutputs) error {
	merged, err := mergeLookup(p.store, ArtifactCommonHealthLookup, out.HealthConditionLookup,
		HealthConditionLookupRow.contentKey, compareHealthConditionLookups)
	if err != nil {
		return fmt.Errorf("failed to merge common health condition lookup: %w", err)
	}
	out.HealthConditionLookup = merged

	if out.GeoLookup, err = mergeLookup(p.store, ArtifactGeoLookup, out.GeoLookup,
		GeoLookupRow.contentKey, compareGeoLookups); err != nil {
		return fmt.Errorf("failed to merge geo lookup: %w", err)
	}
	if out.SexLookup, err = mergeLookup(p.store, ArtifactSexLookup, out.SexLookup,
		SexLookupRow.contentKey, compareSexLookups); err != nil {
		return fmt.Errorf("failed to merge sex lookup: %w", err)
	}
	if out.AgeLookup, err = mergeLookup(p.store, ArtifactAgeLookup, out.AgeLookup,
		AgeLookupRow.contentKey, compareAgeLookups); err != nil {
		return fmt.Errorf("failed to merge age lookup: %w", err)
	}
	if out.GeogTypeLookup, err = mergeLookup(p.store, ArtifactGeogTypeLookup, out.GeogTypeLookup,
		GeogTypeLookupRow.contentKey, compareGeogTypeLookups); err != nil {
		return fmt.Errorf("failed to merge geog type lookup: %w", err)
	}
	if out.StateLookup, err = mergeLookup(p.store, ArtifactStateLookup, out.StateLookup,
		StateLookupRow.contentKey, compareStateLookups); err != nil {
		return fmt.Errorf("failed to merge state lookup: %w", err)
	}
	return nil
}

func (p *HealthPipeline) writeStandaloneLookups(out *HealthOutputs) error {
	if err := dataset.WriteProcessed(p.store, ArtifactHealthGeoLookup, out.GeoLookup); err != nil {
		return fmt.Errorf("failed to persist geo lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactHealthSexLookup, out.SexLookup); err != nil {
		return fmt.Errorf("failed to persist sex lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactHealthAgeLookup, out.AgeLookup); err != nil {
		return fmt.Errorf("failed to persist age lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactHealthGeogTypeLookup, out.GeogTypeLookup); err != nil {
		return fmt.Errorf("failed to persist geog type lookup: %w", err)
	}
	if err := dataset.WriteProcessed(p.store, ArtifactHealthStateLookup, out.StateLookup); err != nil {
		return fmt.Errorf("failed to persist state lookup: %w", err)
	}
	return nil
}
