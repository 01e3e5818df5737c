package utils

import (
	"math"
	"math/big"
	"testing"

	"fundchain/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBigInt(t *testing.T) {
	amount, _ := new(big.Int).SetString("1234500000000000000", 10)
	s, err := FormatBigInt(amount, 18)
	require.NoError(t, err)
	assert.Equal(t, "1.2345", s)

	s, err = FormatBigInt(big.NewInt(0), 18)
	require.NoError(t, err)
	assert.Equal(t, "0", s)

	s, err = FormatBigInt(big.NewInt(5), 2)
	require.NoError(t, err)
	assert.Equal(t, "0.05", s)

	s, err = FormatBigInt(big.NewInt(1000), 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", s)
}

func TestFormatBigIntFixed(t *testing.T) {
	amount, _ := new(big.Int).SetString("1234550000000000000", 10)
	assert.Equal(t, "1.2346", FormatBigIntFixed(amount, 18, 4))
	assert.Equal(t, "0.0000", FormatBigIntFixed(big.NewInt(1), 18, 4))
	assert.Equal(t, "12.50", FormatBigIntFixed(big.NewInt(1250), 2, 2))
	assert.Equal(t, "3.000", FormatBigIntFixed(big.NewInt(3), 0, 3))
	assert.Equal(t, "0.0000", FormatBigIntFixed(nil, 18, 4))
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in   string
		dec  uint8
		want string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"1", 8, "100000000"},
		{".25", 2, "25"},
		{"0.125", 2, "13"},
		{"0.124", 2, "12"},
		{"  42 ", 0, "42"},
		{"7.", 1, "70"},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in, tc.dec)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}

	for _, bad := range []string{"", ".", " . ", "-1", "abc", "1.2.3", "1e5", "+1"} {
		_, err := ParseUnits(bad, 18)
		_, ok := entity.IsInvalidInput(err)
		assert.True(t, ok, "expected invalid input for %q", bad)
	}
}

func TestFloatToUnitsIsDeterministic(t *testing.T) {
	a, err := FloatToUnits(1.5, 18)
	require.NoError(t, err)
	b, err := FloatToUnits(1.5, 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", a.String())
	assert.Equal(t, 0, a.Cmp(b))

	c, err := FloatToUnits(0.1, 18)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", c.String())
}

func TestFloatToUnitsRejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.5} {
		_, err := FloatToUnits(v, 18)
		_, ok := entity.IsInvalidInput(err)
		assert.True(t, ok, "expected invalid input for %v", v)
	}
}
