package models

import (
	"courtbook/src/types"
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID             uint                `gorm:"primarykey" json:"id"`
	CourtID        uint                `gorm:"index:idx_bookings_court_status" json:"court_id"`
	CustomerID     uint                `gorm:"index" json:"customer_id"`
	StartDate      time.Time           `gorm:"type:date" json:"start_date"`
	EndDate        time.Time           `gorm:"type:date" json:"end_date"`
	StartTime      types.TimeOfDay     `gorm:"type:integer" json:"start_time"`
	EndTime        types.TimeOfDay     `gorm:"type:integer" json:"end_time"`
	DaysOfWeek     types.DaySet        `gorm:"type:varchar(32)" json:"days_of_week"`
	Status         types.BookingStatus `gorm:"index:idx_bookings_court_status;default:'pending_payment'" json:"status"`
	HoldExpiresAt  *time.Time          `gorm:"index" json:"hold_expires_at,omitempty"`
	PaymentMethod  types.PaymentMethod `json:"payment_method"`
	DepositPercent int                 `gorm:"default:100" json:"deposit_percent"`
	TotalPrice     decimal.Decimal     `gorm:"type:numeric(14,2)" json:"total_price"`
	Currency       string              `gorm:"default:'PHP'" json:"currency"`
	CancelReason   *string             `json:"cancel_reason,omitempty"`

	Court       *Court        `gorm:"foreignKey:court_id" json:"court,omitempty"`
	Occurrences []*Occurrence `json:"occurrences,omitempty"`
	Payments    []*Payment    `json:"payments,omitempty"`

	types.Timestamps
}

func (b *Booking) IsRecurring() bool {
	return !b.DaysOfWeek.IsEmpty()
}

// HoldDeadline is the explicit hold expiry, or CreatedAt plus holdMinutes when none was recorded.
func (b *Booking) HoldDeadline(holdMinutes int) time.Time {
	if b.HoldExpiresAt != nil {
		return b.HoldExpiresAt.UTC()
	}
	return b.CreatedAt.UTC().Add(time.Duration(holdMinutes) * time.Minute)
}

// Blocks reports whether the booking still reserves its slot at now.
func (b *Booking) Blocks(now time.Time, holdMinutes int) bool {
	switch b.Status {
	case types.BOOKING_ACTIVE:
		return true
	case types.BOOKING_PENDING_PAYMENT:
		return now.Before(b.HoldDeadline(holdMinutes))
	}
	return false
}
