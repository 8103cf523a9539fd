package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV decodes CSV data into a RecordBatch. The first record is the
// column header; empty cells become nil values.
func ReadCSV(r io.Reader) (*RecordBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("csv data has no header row")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(record) || record[i] == "" {
				row[col] = nil
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return &RecordBatch{Columns: header, Rows: rows}, nil
}

// WriteCSV encodes the batch as CSV with a header row. Nil cells become
// empty fields.
func (b *RecordBatch) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(b.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(b.Columns))
	for _, row := range b.Rows {
		for i, col := range b.Columns {
			v := row[col]
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprint(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
