package models

import "courtbook/src/types"

type Court struct {
	ID     uint              `gorm:"primarykey" json:"id"`
	Name   string            `gorm:"uniqueIndex" json:"name"`
	Status types.CourtStatus `gorm:"index;default:'active'" json:"status"`

	PricingRules []*PricingRule `json:"pricing_rules,omitempty"`

	types.Timestamps
}

// Bookable reports whether new bookings may be placed on the court.
func (c *Court) Bookable() bool {
	return c.Status == types.COURT_ACTIVE || c.Status == types.COURT_IN_USE
}
