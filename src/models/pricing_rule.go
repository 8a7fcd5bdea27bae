package models

import (
	"courtbook/src/types"

	"github.com/shopspring/decimal"
)

type PricingRule struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	CourtID      uint            `gorm:"index" json:"court_id"`
	StartTime    types.TimeOfDay `gorm:"type:integer" json:"start_time"`
	EndTime      types.TimeOfDay `gorm:"type:integer" json:"end_time"`
	PricePerHour decimal.Decimal `gorm:"type:numeric(14,2)" json:"price_per_hour"`
	Priority     int             `gorm:"default:0" json:"priority"`
	DaysOfWeek   types.DaySet    `gorm:"type:varchar(32)" json:"days_of_week"`

	types.Timestamps
}

// Covers reports whether t falls in [StartTime, EndTime).
func (r *PricingRule) Covers(t types.TimeOfDay) bool {
	return r.StartTime <= t && t < r.EndTime
}

func (r *PricingRule) AppliesOn(day int) bool {
	return r.DaysOfWeek.Contains(day)
}
