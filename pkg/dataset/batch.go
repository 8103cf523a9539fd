// Package dataset provides the storage adapter for abslake: a raw area
// holding CSV extracts as fetched from the ABS API, and a processed area
// holding the tidy Parquet artifacts produced by the census pipelines.
package dataset

// Row is a single record keyed by column name. Cell values are strings,
// integers, or nil for missing.
type Row map[string]any

// RecordBatch is an ordered set of rows sharing a column layout. It is the
// input shape consumed by the census transformation pipelines.
type RecordBatch struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the batch declares the named column.
func (b *RecordBatch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows in the batch.
func (b *RecordBatch) Len() int {
	return len(b.Rows)
}
