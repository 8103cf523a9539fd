package census

import (
	"fmt"
	"sort"
	"strings"

	"github.com/auslabs/abslake/pkg/dataset"
)

// ValidationError reports every required column absent from a raw extract.
// It is raised before any transformation or write happens, so a failed
// validation never produces partial output.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// requireColumns checks the batch for every required column and returns a
// ValidationError listing all absences. The optional DATAFLOW identifier
// column is never required.
func requireColumns(batch *dataset.RecordBatch, required []string) error {
	var missing []string
	for _, col := range required {
		if !batch.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ValidationError{Missing: missing}
	}
	return nil
}
