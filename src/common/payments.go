package common

import (
	"context"
	"courtbook/src/lib"
	"courtbook/src/models"
	"courtbook/src/types"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// fullPaymentRatio is the share of the booking total at which an initial payment counts as full.
var fullPaymentRatio = decimal.NewFromFloat(0.99)

// CheckoutProvider opens a hosted card checkout for a pending payment.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req lib.CheckoutRequest) (*lib.CheckoutSession, error)
}

type PaymentRequest struct {
	BookingID    uint
	OccurrenceID *uint
	CustomerID   uint
	Reference    string
	Kind         types.PaymentKind
	Type         types.PaymentType
	Method       types.PaymentMethod
	Amount       decimal.Decimal
	Currency     string
	Description  string
}

// PaymentIssuer creates payment records. Cash is settled on the spot; card payments
// get a checkout session when a provider is configured.
type PaymentIssuer struct {
	Clock    lib.Clock
	Provider CheckoutProvider
}

func NewPaymentIssuer(clock lib.Clock, provider CheckoutProvider) *PaymentIssuer {
	return &PaymentIssuer{Clock: clock, Provider: provider}
}

// CreatePayment is idempotent by reference: an existing payment with the same
// reference is returned unchanged. Nothing is created for a non-positive amount.
func (p *PaymentIssuer) CreatePayment(ctx context.Context, store Store, req PaymentRequest) (*models.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, nil
	}
	existing, err := store.FindPaymentByReference(ctx, req.Reference)
	if err == nil {
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	payment := &models.Payment{
		BookingID:    req.BookingID,
		OccurrenceID: req.OccurrenceID,
		CustomerID:   req.CustomerID,
		Reference:    req.Reference,
		Kind:         req.Kind,
		Type:         req.Type,
		Method:       req.Method,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       types.PAYMENT_PENDING,
		Metadata: types.JSONB{
			"booking_id": req.BookingID,
			"reference":  req.Reference,
		},
	}
	if req.Method.PaysImmediately() {
		paidAt := lib.NowUTC(p.Clock)
		payment.Status = types.PAYMENT_PAID
		payment.PaidAt = &paidAt
	} else if req.Method == types.PAYMENT_METHOD_CARD && p.Provider != nil {
		session, err := p.Provider.CreateCheckoutSession(ctx, lib.CheckoutRequest{
			Reference:   req.Reference,
			Description: req.Description,
			Currency:    req.Currency,
			Amount:      req.Amount,
			Metadata: map[string]string{
				"reference":  req.Reference,
				"booking_id": fmt.Sprint(req.BookingID),
				"kind":       string(req.Kind),
			},
		})
		if err != nil {
			log.Printf("[Payments] Error opening checkout for %s: %s\n", req.Reference, err.Error())
			return nil, err
		}
		payment.CheckoutSessionID = &session.ID
		payment.CheckoutURL = &session.URL
	}

	if err := store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// InferPaymentType classifies a booking by its earliest non-cancelled payment.
func InferPaymentType(payments []*models.Payment, total decimal.Decimal) types.PaymentType {
	if !total.IsPositive() {
		return types.PAYMENT_TYPE_FULL
	}
	var first *models.Payment
	for _, p := range payments {
		if p.Status == types.PAYMENT_CANCELLED {
			continue
		}
		if first == nil || p.CreatedAt.Before(first.CreatedAt) {
			first = p
		}
	}
	if first == nil {
		return types.PAYMENT_TYPE_DEPOSIT
	}
	if first.Amount.GreaterThanOrEqual(total.Mul(fullPaymentRatio)) {
		return types.PAYMENT_TYPE_FULL
	}
	return types.PAYMENT_TYPE_DEPOSIT
}

func initialPaymentReference(bookingID uint) string {
	return fmt.Sprintf("booking:%d:initial", bookingID)
}

func checkoutPaymentReference(occurrenceID uint) string {
	return fmt.Sprintf("occurrence:%d:checkout", occurrenceID)
}
