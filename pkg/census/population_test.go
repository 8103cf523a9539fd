package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslabs/abslake/pkg/dataset"
	"github.com/auslabs/abslake/pkg/logger"
)

func populationBatch(rows ...dataset.Row) *dataset.RecordBatch {
	return &dataset.RecordBatch{
		Columns: []string{ColDataflow, ColSex, ColPersonCharacteristic, ColRegion, ColRegionType, ColState, ColTimePeriod, ColObsValue},
		Rows:    rows,
	}
}

func populationRow(overrides dataset.Row) dataset.Row {
	row := dataset.Row{
		ColDataflow:             "ABS:C21_G01_SA2(1.0.0)",
		ColSex:                  "1: Males",
		ColPersonCharacteristic: "65_74: Age groups: 65-74 years",
		ColRegion:               "213051588: Truganina - South West",
		ColRegionType:           "SA2: Statistical Area Level 2",
		ColState:                "2: Victoria",
		ColTimePeriod:           "2021",
		ColObsValue:             "601",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func TestTransformPopulation(t *testing.T) {
	t.Parallel()

	t.Run("splits codes and labels into fact and lookups", func(t *testing.T) {
		t.Parallel()

		out, err := TransformPopulation(populationBatch(populationRow(nil)))
		require.NoError(t, err)

		require.Len(t, out.Fact, 1)
		assert.Equal(t, PopulationFact{
			Sex:      strPtr("1"),
			AgeGroup: strPtr("65_74"),
			GeogID:   strPtr("213051588"),
			GeogType: strPtr("SA2"),
			State:    strPtr("2"),
			Year:     int64Ptr(2021),
			Persons:  int64Ptr(601),
		}, out.Fact[0])

		require.Len(t, out.GeoLookup, 1)
		assert.Equal(t, GeoLookupRow{
			GeogID:   strPtr("213051588"),
			GeogName: strPtr("Truganina - South West"),
			GeogType: strPtr("SA2"),
			State:    strPtr("2"),
		}, out.GeoLookup[0])

		require.Len(t, out.SexLookup, 1)
		assert.Equal(t, SexLookupRow{Sex: strPtr("1"), SexLabel: strPtr("Males")}, out.SexLookup[0])
		require.Len(t, out.AgeLookup, 1)
		// Only the first colon separates code from label.
		assert.Equal(t, AgeLookupRow{AgeGroup: strPtr("65_74"), AgeGroupLabel: strPtr("Age groups: 65-74 years")}, out.AgeLookup[0])
		require.Len(t, out.GeogTypeLookup, 1)
		require.Len(t, out.StateLookup, 1)
		assert.Zero(t, out.DuplicateGeogIDs)
	})

	t.Run("fact rows map one to one with input rows", func(t *testing.T) {
		t.Parallel()

		// Duplicate rows are preserved in the fact table.
		batch := populationBatch(populationRow(nil), populationRow(nil), populationRow(dataset.Row{ColSex: "2: Females"}))
		out, err := TransformPopulation(batch)
		require.NoError(t, err)

		assert.Len(t, out.Fact, 3)
		assert.Len(t, out.SexLookup, 2)
	})

	t.Run("missing values flow through as nulls", func(t *testing.T) {
		t.Parallel()

		batch := populationBatch(populationRow(dataset.Row{
			ColSex:      nil,
			ColObsValue: nil,
		}))
		out, err := TransformPopulation(batch)
		require.NoError(t, err)

		require.Len(t, out.Fact, 1)
		assert.Nil(t, out.Fact[0].Sex)
		assert.Nil(t, out.Fact[0].Persons)
	})

	t.Run("non-numeric measures become null without error", func(t *testing.T) {
		t.Parallel()

		batch := populationBatch(populationRow(dataset.Row{ColObsValue: "n/a", ColTimePeriod: "unknown"}))
		out, err := TransformPopulation(batch)
		require.NoError(t, err)

		require.Len(t, out.Fact, 1)
		assert.Nil(t, out.Fact[0].Persons)
		assert.Nil(t, out.Fact[0].Year)
	})

	t.Run("lookups deduplicate by full row content", func(t *testing.T) {
		t.Parallel()

		// Same geog_id with two different names: both rows survive and the
		// anomaly counter reports one affected id.
		batch := populationBatch(
			populationRow(nil),
			populationRow(dataset.Row{ColRegion: "213051588: Truganina (West)"}),
		)
		out, err := TransformPopulation(batch)
		require.NoError(t, err)

		assert.Len(t, out.GeoLookup, 2)
		assert.Equal(t, 1, out.DuplicateGeogIDs)
	})

	t.Run("geo lookup sorted by geog_type then geog_id", func(t *testing.T) {
		t.Parallel()

		batch := populationBatch(
			populationRow(dataset.Row{ColRegion: "213051588: Truganina", ColRegionType: "SA2: Statistical Area Level 2"}),
			populationRow(dataset.Row{ColRegion: "20304: Ballarat", ColRegionType: "LGA: Local Government Area"}),
			populationRow(dataset.Row{ColRegion: "101021007: Braidwood", ColRegionType: "SA2: Statistical Area Level 2"}),
		)
		out, err := TransformPopulation(batch)
		require.NoError(t, err)

		require.Len(t, out.GeoLookup, 3)
		assert.Equal(t, "LGA", *out.GeoLookup[0].GeogType)
		assert.Equal(t, "101021007", *out.GeoLookup[1].GeogID)
		assert.Equal(t, "213051588", *out.GeoLookup[2].GeogID)
	})

	t.Run("reports every missing column", func(t *testing.T) {
		t.Parallel()

		batch := &dataset.RecordBatch{
			Columns: []string{ColSex, ColObsValue},
			Rows:    nil,
		}
		_, err := TransformPopulation(batch)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.ElementsMatch(t, []string{
			ColPersonCharacteristic, ColRegion, ColRegionType, ColState, ColTimePeriod,
		}, verr.Missing)
	})

	t.Run("each required column is individually enforced", func(t *testing.T) {
		t.Parallel()

		full := []string{ColSex, ColPersonCharacteristic, ColRegion, ColRegionType, ColState, ColTimePeriod, ColObsValue}
		for _, dropped := range full {
			var cols []string
			for _, c := range full {
				if c != dropped {
					cols = append(cols, c)
				}
			}
			_, err := TransformPopulation(&dataset.RecordBatch{Columns: cols})

			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "dropping %q", dropped)
			assert.Equal(t, []string{dropped}, verr.Missing)
		}
	})

	t.Run("dataflow column is optional", func(t *testing.T) {
		t.Parallel()

		row := populationRow(nil)
		delete(row, ColDataflow)
		batch := &dataset.RecordBatch{
			Columns: []string{ColSex, ColPersonCharacteristic, ColRegion, ColRegionType, ColState, ColTimePeriod, ColObsValue},
			Rows:    []dataset.Row{row},
		}
		out, err := TransformPopulation(batch)
		require.NoError(t, err)
		assert.Len(t, out.Fact, 1)
	})
}

func TestPopulationPipeline_Run(t *testing.T) {
	t.Parallel()

	newStore := func(t *testing.T) *dataset.Store {
		store, err := dataset.NewStore(dataset.StoreConfig{
			Logger:  logger.NewTest(),
			DataDir: t.TempDir(),
		})
		require.NoError(t, err)
		return store
	}

	t.Run("persists fact and lookups", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		require.NoError(t, store.SaveRaw(RawPopulationName, populationBatch(populationRow(nil))))

		pipeline, err := NewPopulationPipeline(PopulationPipelineConfig{
			Logger: logger.NewTest(),
			Store:  store,
		})
		require.NoError(t, err)

		out, err := pipeline.Run(t.Context())
		require.NoError(t, err)
		assert.Len(t, out.Fact, 1)

		facts, err := dataset.ReadProcessed[PopulationFact](store, ArtifactPopulationFact)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, out.Fact[0], facts[0])

		for _, name := range []string{ArtifactGeoLookup, ArtifactSexLookup, ArtifactAgeLookup, ArtifactGeogTypeLookup, ArtifactStateLookup} {
			assert.True(t, store.ProcessedExists(name), name)
		}
	})

	t.Run("run replaces previous artifacts", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		require.NoError(t, store.SaveRaw(RawPopulationName, populationBatch(populationRow(nil), populationRow(dataset.Row{ColSex: "2: Females"}))))

		pipeline, err := NewPopulationPipeline(PopulationPipelineConfig{Logger: logger.NewTest(), Store: store})
		require.NoError(t, err)
		_, err = pipeline.Run(t.Context())
		require.NoError(t, err)

		// A smaller second extract fully replaces the artifacts.
		require.NoError(t, store.SaveRaw(RawPopulationName, populationBatch(populationRow(nil))))
		_, err = pipeline.Run(t.Context())
		require.NoError(t, err)

		facts, err := dataset.ReadProcessed[PopulationFact](store, ArtifactPopulationFact)
		require.NoError(t, err)
		assert.Len(t, facts, 1)
		sexes, err := dataset.ReadProcessed[SexLookupRow](store, ArtifactSexLookup)
		require.NoError(t, err)
		assert.Len(t, sexes, 1)
	})

	t.Run("missing raw extract returns not found", func(t *testing.T) {
		t.Parallel()

		pipeline, err := NewPopulationPipeline(PopulationPipelineConfig{Logger: logger.NewTest(), Store: newStore(t)})
		require.NoError(t, err)

		_, err = pipeline.Run(t.Context())
		assert.True(t, dataset.IsNotFound(err))
	})

	t.Run("validation failure writes nothing", func(t *testing.T) {
		t.Parallel()

		store := newStore(t)
		bad := &dataset.RecordBatch{
			Columns: []string{ColSex},
			Rows:    []dataset.Row{{ColSex: "1: Males"}},
		}
		require.NoError(t, store.SaveRaw(RawPopulationName, bad))

		pipeline, err := NewPopulationPipeline(PopulationPipelineConfig{Logger: logger.NewTest(), Store: store})
		require.NoError(t, err)

		_, err = pipeline.Run(t.Context())
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		artifacts, err := store.ListProcessed()
		require.NoError(t, err)
		assert.Empty(t, artifacts)
	})
}
