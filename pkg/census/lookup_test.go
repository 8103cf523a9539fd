package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auslabs/abslake/pkg/dataset"
)

func TestRowKey(t *testing.T) {
	t.Parallel()

	t.Run("distinguishes nil from empty string", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, rowKey(nil), rowKey(strPtr("")))
	})

	t.Run("distinguishes field boundaries", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t, rowKey(strPtr("ab"), strPtr("c")), rowKey(strPtr("a"), strPtr("bc")))
	})

	t.Run("equal rows share a key", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, rowKey(strPtr("1"), nil), rowKey(strPtr("1"), nil))
	})
}

func TestUniqueSorted(t *testing.T) {
	t.Parallel()

	t.Run("dedupes by full content and sorts nulls first", func(t *testing.T) {
		t.Parallel()

		rows := []SexLookupRow{
			{Sex: strPtr("2"), SexLabel: strPtr("Females")},
			{Sex: strPtr("1"), SexLabel: strPtr("Males")},
			{Sex: strPtr("1"), SexLabel: strPtr("Males")},
			{Sex: nil, SexLabel: strPtr("Unknown")},
		}
		out := uniqueSorted(rows, SexLookupRow.contentKey, compareSexLookups)

		require.Len(t, out, 3)
		assert.Nil(t, out[0].Sex)
		assert.Equal(t, "1", *out[1].Sex)
		assert.Equal(t, "2", *out[2].Sex)
	})

	t.Run("same code with different labels both survive", func(t *testing.T) {
		t.Parallel()

		rows := []SexLookupRow{
			{Sex: strPtr("1"), SexLabel: strPtr("Males")},
			{Sex: strPtr("1"), SexLabel: strPtr("Male")},
		}
		out := uniqueSorted(rows, SexLookupRow.contentKey, compareSexLookups)
		assert.Len(t, out, 2)
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		t.Parallel()
		out := uniqueSorted(nil, SexLookupRow.contentKey, compareSexLookups)
		assert.Empty(t, out)
	})
}

func TestMergeLookup(t *testing.T) {
	t.Parallel()

	rows := []SexLookupRow{
		{Sex: strPtr("1"), SexLabel: strPtr("Males")},
		{Sex: strPtr("2"), SexLabel: strPtr("Females")},
	}

	t.Run("missing target degenerates to a sorted write", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		merged, err := mergeLookup(store, "sex_lookup", rows, SexLookupRow.contentKey, compareSexLookups)
		require.NoError(t, err)
		assert.Equal(t, rows, merged)

		persisted, err := dataset.ReadProcessed[SexLookupRow](store, "sex_lookup")
		require.NoError(t, err)
		assert.Equal(t, rows, persisted)
	})

	t.Run("unions with existing rows", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		_, err := mergeLookup(store, "sex_lookup", rows, SexLookupRow.contentKey, compareSexLookups)
		require.NoError(t, err)

		extra := []SexLookupRow{
			{Sex: strPtr("3"), SexLabel: strPtr("Persons")},
			{Sex: strPtr("1"), SexLabel: strPtr("Males")},
		}
		merged, err := mergeLookup(store, "sex_lookup", extra, SexLookupRow.contentKey, compareSexLookups)
		require.NoError(t, err)

		require.Len(t, merged, 3)
		assert.Equal(t, "1", *merged[0].Sex)
		assert.Equal(t, "2", *merged[1].Sex)
		assert.Equal(t, "3", *merged[2].Sex)
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		first, err := mergeLookup(store, "sex_lookup", rows, SexLookupRow.contentKey, compareSexLookups)
		require.NoError(t, err)
		second, err := mergeLookup(store, "sex_lookup", rows, SexLookupRow.contentKey, compareSexLookups)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestCountDuplicateGeogIDs(t *testing.T) {
	t.Parallel()

	t.Run("counts ids with conflicting rows once each", func(t *testing.T) {
		t.Parallel()

		rows := []GeoLookupRow{
			{GeogID: strPtr("A"), GeogName: strPtr("One")},
			{GeogID: strPtr("A"), GeogName: strPtr("Two")},
			{GeogID: strPtr("A"), GeogName: strPtr("Three")},
			{GeogID: strPtr("B"), GeogName: strPtr("Four")},
		}
		assert.Equal(t, 1, countDuplicateGeogIDs(rows))
	})

	t.Run("nil ids are ignored", func(t *testing.T) {
		t.Parallel()

		rows := []GeoLookupRow{
			{GeogID: nil, GeogName: strPtr("One")},
			{GeogID: nil, GeogName: strPtr("Two")},
		}
		assert.Zero(t, countDuplicateGeogIDs(rows))
	})
}
