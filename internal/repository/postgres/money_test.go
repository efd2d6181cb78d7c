package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"order amount", "149.90", 14990},
		{"commission below one unit", "0.07", 7},
		{"integer column value", "250", 25000},
		{"zero fee", "0.00", 0},
		{"rate product rounds half up", "12.345", 1235},
		{"rate product rounds down", "12.344", 1234},
		{"negative adjustment", "-3.10", -310},
		{"negative half cent", "-0.005", -1},
		{"padded driver output", " 42.00 ", 4200},
		{"decimal without float drift", "1.005", 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := numericStringToCents(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericStringToCents_Rejects(t *testing.T) {
	for _, input := range []string{"", "   ", "n/a", "USD 10", "1.2.3"} {
		_, err := numericStringToCents(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestCentsToNumericString(t *testing.T) {
	assert.Equal(t, "149.90", centsToNumericString(14990))
	assert.Equal(t, "0.07", centsToNumericString(7))
	assert.Equal(t, "0.00", centsToNumericString(0))
	assert.Equal(t, "-3.10", centsToNumericString(-310))
	assert.Equal(t, "9999999999.99", centsToNumericString(999999999999))
}

func TestSettlementTotalsSurviveStorage(t *testing.T) {
	gross, commission, fee := int64(1234567), int64(123457), int64(3090)
	for _, amount := range []int64{gross, commission, fee, gross - commission - fee} {
		stored, err := numericStringToCents(centsToNumericString(amount))
		require.NoError(t, err)
		assert.Equal(t, amount, stored)
	}
}
