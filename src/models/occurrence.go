package models

import (
	"courtbook/src/types"
	"time"

	"github.com/shopspring/decimal"
)

type Occurrence struct {
	ID             uint                   `gorm:"primarykey" json:"id"`
	BookingID      uint                   `gorm:"index" json:"booking_id"`
	CourtID        uint                   `gorm:"index:idx_occurrences_court_date" json:"court_id"`
	Date           time.Time              `gorm:"type:date;index:idx_occurrences_court_date" json:"date"`
	StartTime      types.TimeOfDay        `gorm:"type:integer" json:"start_time"`
	EndTime        types.TimeOfDay        `gorm:"type:integer" json:"end_time"`
	Status         types.OccurrenceStatus `gorm:"index;default:'pending_payment'" json:"status"`
	CourtAmount    decimal.Decimal        `gorm:"type:numeric(14,2)" json:"court_amount"`
	CheckedInAt    *time.Time             `json:"checked_in_at,omitempty"`
	CheckedOutAt   *time.Time             `json:"checked_out_at,omitempty"`
	OverdueMinutes int                    `json:"overdue_minutes"`
	LateFeeAmount  decimal.Decimal        `gorm:"type:numeric(14,2)" json:"late_fee_amount"`
	TotalAmount    decimal.Decimal        `gorm:"type:numeric(14,2)" json:"total_amount"`

	Booking       *Booking          `gorm:"foreignKey:booking_id" json:"booking,omitempty"`
	Items         []*OccurrenceItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	ServiceUsages []*ServiceUsage   `gorm:"constraint:OnDelete:CASCADE" json:"services,omitempty"`

	types.Timestamps
}

func (o *Occurrence) BookedMinutes() int {
	return int(o.EndTime - o.StartTime)
}

// IsTerminal reports whether no further transition can leave the status.
func (o *Occurrence) IsTerminal() bool {
	switch o.Status {
	case types.OCCURRENCE_COMPLETED, types.OCCURRENCE_CANCELLED, types.OCCURRENCE_NO_SHOW:
		return true
	}
	return false
}

type OccurrenceItem struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	OccurrenceID uint            `gorm:"index" json:"occurrence_id"`
	LineNo       int             `json:"line_no"`
	ProductID    uint            `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`

	types.Timestamps
}

func (i *OccurrenceItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ServiceUsage is billed per started hour between StartedAt and EndedAt (or now while running).
type ServiceUsage struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	OccurrenceID uint            `gorm:"index" json:"occurrence_id"`
	ServiceID    uint            `json:"service_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`

	types.Timestamps
}
