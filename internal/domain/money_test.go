package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "integer", in: "30", want: "30.00"},
		{name: "one decimal", in: "30.5", want: "30.50"},
		{name: "two decimals", in: "30.50", want: "30.50"},
		{name: "surrounding whitespace", in: "  12.34 ", want: "12.34"},
		{name: "equivalent forms normalize", in: "007.10", want: "7.10"},
		{name: "three decimals rejected", in: "1.234", wantErr: ErrInvalidAmount},
		{name: "not a number", in: "abc", wantErr: ErrInvalidAmount},
		{name: "empty", in: "", wantErr: ErrInvalidAmount},
		{name: "zero", in: "0", wantErr: ErrNonPositiveAmount},
		{name: "zero with decimals", in: "0.00", wantErr: ErrNonPositiveAmount},
		{name: "negative", in: "-5", wantErr: ErrNonPositiveAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestParseAmount_NormalizedFormsCompareEqual(t *testing.T) {
	a, err := ParseAmount("30")
	require.NoError(t, err)
	b, err := ParseAmount("30.00")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(decimal.Zero))
	assert.Equal(t, "3.10", FormatAmount(decimal.RequireFromString("3.1")))
}
