package census

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSplitCodeLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		code  *string
		label *string
	}{
		{"code and label", "3: Persons", strPtr("3"), strPtr("Persons")},
		{"no colon is all code", "SA2", strPtr("SA2"), nil},
		{"nil value", nil, nil, nil},
		{"empty string", "", nil, nil},
		{"whitespace only", "   ", nil, nil},
		{"label only", ": Persons", nil, strPtr("Persons")},
		{"code only with colon", "3: ", strPtr("3"), nil},
		{"first colon splits", "A: B: C", strPtr("A"), strPtr("B: C")},
		{"untrimmed parts", "  213051588 :  Truganina ", strPtr("213051588"), strPtr("Truganina")},
		{"numeric value", 2021, strPtr("2021"), nil},
		{"nan value", math.NaN(), nil, nil},
		{"bare colon", ":", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, label := SplitCodeLabel(tt.value)
			assert.Equal(t, tt.code, code, "code")
			assert.Equal(t, tt.label, label, "label")
		})
	}
}

func TestSplitCodeLabel_Idempotent(t *testing.T) {
	t.Parallel()

	// Re-splitting an already-split code yields the same code.
	code, _ := SplitCodeLabel("65_74: 65-74 years")
	require.NotNil(t, code)
	again, label := SplitCodeLabel(*code)
	require.NotNil(t, again)
	assert.Equal(t, *code, *again)
	assert.Nil(t, label)
}

func TestToNullableInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  *int64
	}{
		{"int string", "601", int64Ptr(601)},
		{"integral float string", "601.0", int64Ptr(601)},
		{"int", 601, int64Ptr(601)},
		{"int64", int64(601), int64Ptr(601)},
		{"integral float", 2021.0, int64Ptr(2021)},
		{"fractional float", 601.5, nil},
		{"non-numeric string", "n/a", nil},
		{"empty string", "", nil},
		{"nil", nil, nil},
		{"nan", math.NaN(), nil},
		{"negative", "-5", int64Ptr(-5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, toNullableInt(tt.value))
		})
	}
}

func int64Ptr(n int64) *int64 { return &n }
