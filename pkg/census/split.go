// Package census implements the transformation pipelines that reshape raw
// ABS Census extracts into tidy fact tables and de-duplicated lookup tables.
//
// The raw exports encode every dimension value as a single "CODE: Label"
// string (the labels=both CSV format). Each pipeline splits those columns
// into code and label parts, projects a fact table keyed by dimension codes,
// and extracts one lookup table per dimension.
package census

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SplitCodeLabel splits a raw cell shaped like "CODE: Label" into its code
// and label parts. Only the first colon separates code from label. A nil or
// missing value yields (nil, nil); a value without a colon is all code. Empty
// parts after trimming become nil. The function is total: any value is
// stringified and split without error.
func SplitCodeLabel(value any) (code, label *string) {
	if value == nil {
		return nil, nil
	}
	if f, ok := value.(float64); ok && math.IsNaN(f) {
		return nil, nil
	}

	text := fmt.Sprint(value)
	left, right, found := strings.Cut(text, ":")
	if !found {
		return trimmedOrNil(left), nil
	}
	return trimmedOrNil(left), trimmedOrNil(right)
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// toNullableInt coerces a raw cell to a nullable integer. Values that fail
// numeric coercion become nil rather than an error; this is the lenient
// parsing policy for the year and persons measures.
func toNullableInt(value any) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		n := int64(v)
		return &n
	case int32:
		n := int64(v)
		return &n
	case int64:
		return &v
	case float64:
		if math.IsNaN(v) || v != math.Trunc(v) {
			return nil
		}
		n := int64(v)
		return &n
	case string:
		return parseNullableInt(v)
	default:
		return parseNullableInt(fmt.Sprint(v))
	}
}

func parseNullableInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	// Some exports emit integral values in float notation.
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && f == math.Trunc(f) {
		n := int64(f)
		return &n
	}
	return nil
}
