package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareRoundsToScale(t *testing.T) {
	a := MustParse("1.00004")
	b := MustParse("1.0000")
	assert.True(t, Equal(a, b, 4))
	assert.False(t, Equal(a, b, 5))
	assert.Equal(t, 1, Compare(MustParse("1.00005"), b, 4))
	assert.Equal(t, -1, Compare(MustParse("0.99"), b, 2))
}

func TestSumAndPercent(t *testing.T) {
	total := Sum(FromInt(100), MustParse("16.50"), MustParse("-0.50"))
	assert.True(t, total.Equal(FromInt(116)))
	assert.True(t, Percent(FromInt(100), FromInt(16)).Equal(FromInt(16)))
	assert.True(t, IsZero(MustParse("0.00001"), 4))
}

func TestForeign(t *testing.T) {
	assert.True(t, Foreign(FromInt(3500), FromInt(25)).Equal(FromInt(140)))
	assert.True(t, Foreign(FromInt(10), Zero).Equal(FromInt(10)))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("12,5")
	require.Error(t, err)
	require.Panics(t, func() { MustParse("abc") })
}
