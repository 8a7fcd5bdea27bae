package utils

import (
	"github.com/shopspring/decimal"
)

var thousand = decimal.NewFromInt(1000)

// CeilToUnit rounds up to the next whole currency unit.
func CeilToUnit(d decimal.Decimal) decimal.Decimal {
	return d.Ceil()
}

// CeilToThousand rounds up to the next multiple of 1000.
func CeilToThousand(d decimal.Decimal) decimal.Decimal {
	return d.Div(thousand).Ceil().Mul(thousand)
}

// RoundHalfUp2 rounds to cents, half away from zero.
func RoundHalfUp2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns d * pct / 100.
func Percent(d decimal.Decimal, pct int) decimal.Decimal {
	return d.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100))
}
