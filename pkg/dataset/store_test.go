package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslabs/abslake/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Logger:  logger.NewTest(),
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	return store
}

func TestStoreConfig_Validate(t *testing.T) {
	t.Parallel()

	t.Run("requires logger", func(t *testing.T) {
		t.Parallel()
		cfg := StoreConfig{DataDir: "/tmp/data"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires data dir", func(t *testing.T) {
		t.Parallel()
		cfg := StoreConfig{Logger: logger.NewTest()}
		assert.Error(t, cfg.Validate())
	})
}

func TestStore_RawRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	batch := &RecordBatch{
		Columns: []string{"SEXP: Sex", "OBS_VALUE"},
		Rows: []Row{
			{"SEXP: Sex": "1: Males", "OBS_VALUE": "601"},
			{"SEXP: Sex": nil, "OBS_VALUE": "12"},
		},
	}
	require.NoError(t, store.SaveRaw("extract", batch))

	loaded, err := store.LoadRaw("extract")
	require.NoError(t, err)

	assert.Equal(t, batch.Columns, loaded.Columns)
	require.Len(t, loaded.Rows, 2)
	assert.Equal(t, "1: Males", loaded.Rows[0]["SEXP: Sex"])
	// Empty cell round-trips to nil.
	assert.Nil(t, loaded.Rows[1]["SEXP: Sex"])
}

func TestStore_LoadRaw_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.LoadRaw("absent")
	assert.True(t, IsNotFound(err))

	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "absent", nfe.Name)
}

func TestStore_ListProcessed(t *testing.T) {
	t.Parallel()

	type row struct {
		Name *string `parquet:"name,optional"`
	}

	t.Run("missing directory yields empty catalog", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t)
		artifacts, err := store.ListProcessed()
		require.NoError(t, err)
		assert.Empty(t, artifacts)
	})

	t.Run("sorted by name with sizes", func(t *testing.T) {
		t.Parallel()
		store := newTestStore(t)

		name := "one"
		require.NoError(t, WriteProcessed(store, "zeta", []row{{Name: &name}}))
		require.NoError(t, WriteProcessed(store, "alpha", []row{{Name: &name}}))

		artifacts, err := store.ListProcessed()
		require.NoError(t, err)
		require.Len(t, artifacts, 2)
		assert.Equal(t, "alpha", artifacts[0].Name)
		assert.Equal(t, "zeta", artifacts[1].Name)
		assert.Positive(t, artifacts[0].SizeByte)
		assert.False(t, artifacts[0].Modified.IsZero())
	})
}

func TestStore_ProcessedExists(t *testing.T) {
	t.Parallel()

	type row struct {
		Name *string `parquet:"name,optional"`
	}

	store := newTestStore(t)
	assert.False(t, store.ProcessedExists("thing"))

	name := "x"
	require.NoError(t, WriteProcessed(store, "thing", []row{{Name: &name}}))
	assert.True(t, store.ProcessedExists("thing"))
}
