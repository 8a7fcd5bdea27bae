package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCeilToUnit(t *testing.T) {
	assert.True(t, decimal.NewFromInt(250).Equal(CeilToUnit(decimal.RequireFromString("250"))))
	assert.True(t, decimal.NewFromInt(251).Equal(CeilToUnit(decimal.RequireFromString("250.01"))))
	assert.True(t, decimal.NewFromInt(34).Equal(CeilToUnit(decimal.RequireFromString("33.3333"))))
}

func TestCeilToThousand(t *testing.T) {
	cases := map[string]int64{
		"0":       0,
		"1":       1000,
		"1000":    1000,
		"1000.01": 2000,
		"12500":   13000,
	}
	for in, want := range cases {
		got := CeilToThousand(decimal.RequireFromString(in))
		assert.Truef(t, decimal.NewFromInt(want).Equal(got), "%s => %s", in, got)
	}
}

func TestRoundHalfUp2(t *testing.T) {
	assert.Equal(t, "33.34", RoundHalfUp2(decimal.RequireFromString("33.335")).StringFixed(2))
	assert.Equal(t, "33.33", RoundHalfUp2(decimal.RequireFromString("33.3333")).StringFixed(2))
}

func TestPercent(t *testing.T) {
	assert.True(t, decimal.NewFromInt(25).Equal(Percent(decimal.NewFromInt(50), 50)))
}
