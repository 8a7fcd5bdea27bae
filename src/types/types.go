package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBAny struct {
	Inner any
}

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		s, isString := value.(string)
		if !isString {
			return errors.New("type assertion to []byte failed")
		}
		b = []byte(s)
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBAny) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Inner)
}

func (a *JSONBAny) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &a.Inner)
}

func (a JSONBAny) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a.Inner)
	return string(valueString), err
}
func (a *JSONBAny) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		s, isString := value.(string)
		if !isString {
			return errors.New("type assertion to []byte failed")
		}
		b = []byte(s)
	}
	var inner any
	if err := json.Unmarshal(b, &inner); err != nil {
		return err
	}
	a.Inner = inner
	return nil
}

type CourtStatus string

const (
	COURT_ACTIVE      CourtStatus = "active"
	COURT_INACTIVE    CourtStatus = "inactive"
	COURT_MAINTENANCE CourtStatus = "maintenance"
	COURT_IN_USE      CourtStatus = "in_use"
	COURT_DELETED     CourtStatus = "deleted"
)

type BookingStatus string

const (
	BOOKING_PENDING_PAYMENT BookingStatus = "pending_payment"
	BOOKING_ACTIVE          BookingStatus = "active"
	BOOKING_CANCELLED       BookingStatus = "cancelled"
	BOOKING_COMPLETED       BookingStatus = "completed"
)

type OccurrenceStatus string

const (
	OCCURRENCE_PENDING_PAYMENT OccurrenceStatus = "pending_payment"
	OCCURRENCE_ACTIVE          OccurrenceStatus = "active"
	OCCURRENCE_CHECKED_IN      OccurrenceStatus = "checked_in"
	OCCURRENCE_COMPLETED       OccurrenceStatus = "completed"
	OCCURRENCE_CANCELLED       OccurrenceStatus = "cancelled"
	OCCURRENCE_NO_SHOW         OccurrenceStatus = "no_show"
)

type PaymentStatus string

const (
	PAYMENT_PENDING   PaymentStatus = "pending"
	PAYMENT_PAID      PaymentStatus = "paid"
	PAYMENT_CANCELLED PaymentStatus = "cancelled"
)

type PaymentKind string

const (
	PAYMENT_KIND_INITIAL  PaymentKind = "initial"
	PAYMENT_KIND_CHECKOUT PaymentKind = "checkout"
)

type PaymentType string

const (
	PAYMENT_TYPE_FULL    PaymentType = "full"
	PAYMENT_TYPE_DEPOSIT PaymentType = "deposit"
)

type PaymentMethod string

const (
	PAYMENT_METHOD_CASH     PaymentMethod = "cash"
	PAYMENT_METHOD_CARD     PaymentMethod = "card"
	PAYMENT_METHOD_TRANSFER PaymentMethod = "transfer"
)

// PaysImmediately reports whether the method settles at the counter.
func (m PaymentMethod) PaysImmediately() bool {
	return m == PAYMENT_METHOD_CASH
}

// HoldScope selects which hold duration applies to a pending payment.
type HoldScope string

const (
	HOLD_SCOPE_BOOKING    HoldScope = "booking"
	HOLD_SCOPE_MEMBERSHIP HoldScope = "membership"
)

type Metadata map[string]any

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type CreateCourtRequestBody struct {
	Name   string `json:"name" binding:"required"`
	Status string `json:"status,omitempty" binding:"omitempty,oneof=active inactive maintenance"`
}

type UpdateCourtStatusRequestBody struct {
	Action string `json:"action" binding:"required,oneof=maintenance activate deactivate"`
}

type CreatePricingRuleRequestBody struct {
	StartTime    string          `json:"start_time" binding:"required,hhmm"`
	EndTime      string          `json:"end_time" binding:"required,hhmm"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	Priority     int             `json:"priority"`
	DaysOfWeek   []int           `json:"days_of_week" binding:"required,min=1,dive,daycode"`
}

type CreateBookingRequestBody struct {
	CourtID        uint   `json:"court_id" binding:"required"`
	CustomerID     uint   `json:"customer_id" binding:"required"`
	StartDate      string `json:"start_date" binding:"required,isodate"`
	EndDate        string `json:"end_date,omitempty" binding:"omitempty,isodate"`
	StartTime      string `json:"start_time" binding:"required,hhmm"`
	EndTime        string `json:"end_time" binding:"required,hhmm"`
	DaysOfWeek     []int  `json:"days_of_week,omitempty" binding:"omitempty,dive,daycode"`
	PaymentMethod  string `json:"payment_method" binding:"required,oneof=cash card transfer"`
	DepositPercent int    `json:"deposit_percent,omitempty" binding:"omitempty,min=1,max=100"`
	HoldScope      string `json:"hold_scope,omitempty" binding:"omitempty,oneof=booking membership"`
}

type QuotePriceQuery struct {
	Date      string `form:"date" binding:"required,isodate"`
	StartTime string `form:"start" binding:"required,hhmm"`
	EndTime   string `form:"end" binding:"required,hhmm"`
}

type CancelRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type AddItemRequestBody struct {
	ProductID uint            `json:"product_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type StartServiceRequestBody struct {
	ServiceID uint            `json:"service_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateSettingRequestBody struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value" binding:"required"`
	Group string `json:"group" binding:"required"`
}

type CheckoutRequestBody struct {
	PaymentMethod string `json:"payment_method,omitempty" binding:"omitempty,oneof=cash card transfer"`
}
