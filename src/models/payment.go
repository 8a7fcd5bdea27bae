package models

import (
	"courtbook/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID         uint                `gorm:"index" json:"booking_id"`
	OccurrenceID      *uint               `json:"occurrence_id,omitempty"`
	CustomerID        uint                `json:"customer_id"`
	Reference         string              `gorm:"uniqueIndex" json:"reference"`
	Kind              types.PaymentKind   `json:"kind"`
	Type              types.PaymentType   `json:"type"`
	Method            types.PaymentMethod `json:"method"`
	Amount            decimal.Decimal     `gorm:"type:numeric(14,2)" json:"amount"`
	Currency          string              `json:"currency"`
	Status            types.PaymentStatus `gorm:"index;default:'pending'" json:"status"`
	CheckoutSessionID *string             `gorm:"index" json:"checkout_session_id,omitempty"`
	CheckoutURL       *string             `json:"checkout_url,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	Metadata          types.JSONB         `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps
}
