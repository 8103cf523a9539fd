package dataset

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parquetTestRow struct {
	Code  *string `parquet:"code,optional"`
	Label *string `parquet:"label,optional"`
	Count *int64  `parquet:"count,optional"`
}

func TestProcessedRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	code := "1"
	label := "Males"
	count := int64(601)
	rows := []parquetTestRow{
		{Code: &code, Label: &label, Count: &count},
		{Code: nil, Label: nil, Count: nil},
	}
	require.NoError(t, WriteProcessed(store, "lookup", rows))

	loaded, err := ReadProcessed[parquetTestRow](store, "lookup")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, rows[0], loaded[0])
	// Nullable fields survive the round trip as nils.
	assert.Nil(t, loaded[1].Code)
	assert.Nil(t, loaded[1].Count)
}

func TestWriteProcessed_Replaces(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	a := "a"
	b := "b"
	require.NoError(t, WriteProcessed(store, "lookup", []parquetTestRow{{Code: &a}, {Code: &b}}))
	require.NoError(t, WriteProcessed(store, "lookup", []parquetTestRow{{Code: &a}}))

	loaded, err := ReadProcessed[parquetTestRow](store, "lookup")
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestWriteProcessed_LeavesNoTempFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	a := "a"
	require.NoError(t, WriteProcessed(store, "lookup", []parquetTestRow{{Code: &a}}))

	entries, err := os.ReadDir(store.ProcessedDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "lookup.parquet", entries[0].Name())
}

func TestReadProcessed_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := ReadProcessed[parquetTestRow](store, "absent")
	assert.True(t, IsNotFound(err))
}

func TestWriteProcessed_EmptyRows(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, WriteProcessed(store, "empty", []parquetTestRow{}))

	loaded, err := ReadProcessed[parquetTestRow](store, "empty")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
