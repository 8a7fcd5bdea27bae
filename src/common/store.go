package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OccurrenceUpdate lists the columns a status transition may write alongside the status.
type OccurrenceUpdate struct {
	Status         types.OccurrenceStatus
	CheckedInAt    *time.Time
	CheckedOutAt   *time.Time
	OverdueMinutes *int
	CourtAmount    *decimal.Decimal
	LateFeeAmount  *decimal.Decimal
	TotalAmount    *decimal.Decimal
}

// Store is the persistence collaborator. Every status write is conditional on the
// allowed from-statuses and reports whether a row actually changed.
type Store interface {
	// WithTx runs fn atomically. An error from fn rolls everything back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateCourt(ctx context.Context, court *models.Court) error
	GetCourt(ctx context.Context, id uint) (*models.Court, error)
	// LockCourt reads the court and holds a row lock until the surrounding transaction ends.
	LockCourt(ctx context.Context, id uint) (*models.Court, error)
	ListCourts(ctx context.Context) ([]*models.Court, error)
	UpdateCourtStatus(ctx context.Context, id uint, from []types.CourtStatus, to types.CourtStatus) (bool, error)

	CreatePricingRule(ctx context.Context, rule *models.PricingRule) error
	ListPricingRules(ctx context.Context, courtID uint) ([]*models.PricingRule, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	// ListBlockingCandidates returns active and pending bookings on the court whose dates meet [from, to].
	ListBlockingCandidates(ctx context.Context, courtID uint, from, to time.Time, excludeID uint) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint, from []types.BookingStatus, to types.BookingStatus, reason *string) (bool, error)
	// ExpireHolds cancels pending bookings whose effective hold deadline is at or before now.
	ExpireHolds(ctx context.Context, now time.Time, holdMinutes int) ([]uint, error)
	NextHoldExpiry(ctx context.Context, holdMinutes int) (*time.Time, error)

	CreateOccurrences(ctx context.Context, occurrences []*models.Occurrence) error
	GetOccurrence(ctx context.Context, id uint) (*models.Occurrence, error)
	ListOccurrences(ctx context.Context, bookingID uint) ([]*models.Occurrence, error)
	ListOccurrencesByStatus(ctx context.Context, status types.OccurrenceStatus, onOrBefore time.Time, limit int) ([]*models.Occurrence, error)
	CountCheckedIn(ctx context.Context, courtID uint, excludeID uint) (int64, error)
	UpdateOccurrence(ctx context.Context, id uint, from []types.OccurrenceStatus, update OccurrenceUpdate) (bool, error)
	UpdateOccurrencesOfBookings(ctx context.Context, bookingIDs []uint, from []types.OccurrenceStatus, to types.OccurrenceStatus) (int64, error)

	AddItem(ctx context.Context, item *models.OccurrenceItem) error
	AddServiceUsage(ctx context.Context, usage *models.ServiceUsage) error
	GetServiceUsage(ctx context.Context, id uint) (*models.ServiceUsage, error)
	EndServiceUsage(ctx context.Context, id uint, endedAt time.Time) (bool, error)
	EndRunningServices(ctx context.Context, occurrenceID uint, endedAt time.Time) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error)
	ListPayments(ctx context.Context, bookingID uint) ([]*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (bool, error)
	UpdatePaymentsOfBookings(ctx context.Context, bookingIDs []uint, kind types.PaymentKind, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (int64, error)

	GetSetting(ctx context.Context, group, key string) (*models.Setting, error)
	SaveSetting(ctx context.Context, setting *models.Setting) error

	CreateNotification(ctx context.Context, n *models.Notification) error
}
