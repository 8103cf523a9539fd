package census

import (
	"slices"
	"strings"

	"github.com/auslabs/abslake/pkg/dataset"
)

// Lookup row types. Nullable fields are pointers so that missing codes or
// labels survive the round trip through Parquet.

type SexLookupRow struct {
	Sex      *string `parquet:"sex,optional" json:"sex"`
	SexLabel *string `parquet:"sex_label,optional" json:"sex_label"`
}

type AgeLookupRow struct {
	AgeGroup      *string `parquet:"age_group,optional" json:"age_group"`
	AgeGroupLabel *string `parquet:"age_group_label,optional" json:"age_group_label"`
}

type GeoLookupRow struct {
	GeogID   *string `parquet:"geog_id,optional" json:"geog_id"`
	GeogName *string `parquet:"geog_name,optional" json:"geog_name"`
	GeogType *string `parquet:"geog_type,optional" json:"geog_type"`
	State    *string `parquet:"state,optional" json:"state"`
}

type GeogTypeLookupRow struct {
	GeogType      *string `parquet:"geog_type,optional" json:"geog_type"`
	GeogTypeLabel *string `parquet:"geog_type_label,optional" json:"geog_type_label"`
}

type StateLookupRow struct {
	State      *string `parquet:"state,optional" json:"state"`
	StateLabel *string `parquet:"state_label,optional" json:"state_label"`
}

type HealthConditionLookupRow struct {
	LTHC            *string `parquet:"lthc,optional" json:"lthc"`
	HealthCondition *string `parquet:"health_condition,optional" json:"health_condition"`
}

// Content keys cover every column of the row, so de-duplication is by full
// row content: two rows with the same code but different labels both survive.

func (r SexLookupRow) contentKey() string    { return rowKey(r.Sex, r.SexLabel) }
func (r AgeLookupRow) contentKey() string    { return rowKey(r.AgeGroup, r.AgeGroupLabel) }
func (r GeoLookupRow) contentKey() string    { return rowKey(r.GeogID, r.GeogName, r.GeogType, r.State) }
func (r GeogTypeLookupRow) contentKey() string {
	return rowKey(r.GeogType, r.GeogTypeLabel)
}
func (r StateLookupRow) contentKey() string { return rowKey(r.State, r.StateLabel) }
func (r HealthConditionLookupRow) contentKey() string {
	return rowKey(r.LTHC, r.HealthCondition)
}

// Sort orders: ascending by the declared key column(s), nulls first, with the
// full content key as a tie-breaker so equal-key rows stay deterministic.

func compareSexLookups(a, b SexLookupRow) int {
	if c := compareNullStrings(a.Sex, b.Sex); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

func compareAgeLookups(a, b AgeLookupRow) int {
	if c := compareNullStrings(a.AgeGroup, b.AgeGroup); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

func compareGeoLookups(a, b GeoLookupRow) int {
	if c := compareNullStrings(a.GeogType, b.GeogType); c != 0 {
		return c
	}
	if c := compareNullStrings(a.GeogID, b.GeogID); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

func compareGeogTypeLookups(a, b GeogTypeLookupRow) int {
	if c := compareNullStrings(a.GeogType, b.GeogType); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

func compareStateLookups(a, b StateLookupRow) int {
	if c := compareNullStrings(a.State, b.State); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

func compareHealthConditionLookups(a, b HealthConditionLookupRow) int {
	if c := compareNullStrings(a.LTHC, b.LTHC); c != 0 {
		return c
	}
	return strings.Compare(a.contentKey(), b.contentKey())
}

// rowKey builds a content key over nullable fields, distinguishing nil from
// the empty string.
func rowKey(fields ...*string) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if f == nil {
			sb.WriteByte(0x00)
			continue
		}
		sb.WriteByte(0x01)
		sb.WriteString(*f)
	}
	return sb.String()
}

func compareNullStrings(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return strings.Compare(*a, *b)
	}
}

// uniqueSorted de-duplicates rows by full content key and sorts them by the
// declared key order. It is the shared shape of every lookup table.
func uniqueSorted[T any](rows []T, key func(T) string, cmp func(a, b T) int) []T {
	seen := make(map[string]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	slices.SortFunc(out, cmp)
	return out
}

// mergeLookup unions new lookup rows into a persisted lookup artifact:
// existing rows (if any) plus new rows, de-duplicated by full row content and
// sorted by the declared key. Re-merging the same rows is a no-op, so the
// operation is idempotent. A missing target degenerates to a sorted write.
func mergeLookup[T any](store *dataset.Store, name string, rows []T, key func(T) string, cmp func(a, b T) int) ([]T, error) {
	existing, err := dataset.ReadProcessed[T](store, name)
	if err != nil && !dataset.IsNotFound(err) {
		return nil, err
	}

	merged := uniqueSorted(append(existing, rows...), key, cmp)
	if err := dataset.WriteProcessed(store, name, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// countDuplicateGeogIDs counts geography ids that appear in more than one
// de-duplicated geo lookup row. The same id mapping to two different
// (name, type, state) triples is a data-quality anomaly in the source; both
// rows are preserved, this count only makes the condition observable.
func countDuplicateGeogIDs(rows []GeoLookupRow) int {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.GeogID == nil {
			continue
		}
		counts[*row.GeogID]++
	}
	duplicates := 0
	for _, n := range counts {
		if n > 1 {
			duplicates++
		}
	}
	return duplicates
}
