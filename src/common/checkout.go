package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LATE_GRACE_MINUTES are free before any late fee accrues.
const LATE_GRACE_MINUTES = 15

type ServiceLine struct {
	UsageID   uint            `json:"usage_id"`
	ServiceID uint            `json:"service_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Running   bool            `json:"running"`
	Hours     int64           `json:"hours"`
	Amount    decimal.Decimal `json:"amount"`
}

type CheckoutSummary struct {
	OccurrenceID      uint                     `json:"occurrence_id"`
	CourtAmount       decimal.Decimal          `json:"court_amount"`
	Items             []*models.OccurrenceItem `json:"items"`
	ItemsSubtotal     decimal.Decimal          `json:"items_subtotal"`
	Services          []ServiceLine            `json:"services"`
	ServicesSubtotal  decimal.Decimal          `json:"services_subtotal"`
	OverdueMinutes    int                      `json:"overdue_minutes"`
	ChargeableMinutes int                      `json:"chargeable_minutes"`
	LateFeePercent    int                      `json:"late_fee_percent"`
	LateFeeAmount     decimal.Decimal          `json:"late_fee_amount"`
	Total             decimal.Decimal          `json:"total"`

	// Filled by QuoteCheckout and CheckOut from the booking's payments.
	PaymentType types.PaymentType `json:"payment_type,omitempty"`
	Credited    decimal.Decimal   `json:"credited"`
	Balance     decimal.Decimal   `json:"balance"`
}

// serviceHours bills every started hour.
func serviceHours(elapsed time.Duration) int64 {
	if elapsed <= 0 {
		return 0
	}
	return int64((elapsed + time.Hour - 1) / time.Hour)
}

// ComputeCheckout prices a checked-in occurrence as of now. Overdue minutes are measured
// from the booked end in the venue timezone; the first LATE_GRACE_MINUTES are free.
func ComputeCheckout(o *models.Occurrence, courtAmount decimal.Decimal, lateFeePercent int, now time.Time, loc *time.Location) (*CheckoutSummary, error) {
	if o.Status != types.OCCURRENCE_CHECKED_IN {
		return nil, TransitionError{Entity: "occurrence", Action: ACTION_CHECK_OUT, From: string(o.Status)}
	}
	s := &CheckoutSummary{
		OccurrenceID:     o.ID,
		CourtAmount:      courtAmount,
		Items:            o.Items,
		ItemsSubtotal:    decimal.Zero,
		Services:         []ServiceLine{},
		ServicesSubtotal: decimal.Zero,
		LateFeePercent:   lateFeePercent,
		LateFeeAmount:    decimal.Zero,
		Credited:         decimal.Zero,
		Balance:          decimal.Zero,
	}
	if s.Items == nil {
		s.Items = []*models.OccurrenceItem{}
	}

	end := utils.At(o.Date, o.EndTime, loc)
	if now.After(end) {
		s.OverdueMinutes = int(now.Sub(end) / time.Minute)
	}
	s.ChargeableMinutes = max(0, s.OverdueMinutes-LATE_GRACE_MINUTES)
	if booked := o.BookedMinutes(); s.ChargeableMinutes > 0 && booked > 0 && lateFeePercent > 0 {
		raw := courtAmount.
			Mul(decimal.NewFromInt(int64(s.ChargeableMinutes))).
			Mul(decimal.NewFromInt(int64(lateFeePercent))).
			Div(decimal.NewFromInt(int64(booked) * 100))
		s.LateFeeAmount = utils.CeilToThousand(utils.CeilToUnit(raw))
	}

	for _, item := range o.Items {
		s.ItemsSubtotal = s.ItemsSubtotal.Add(item.Subtotal())
	}

	for _, u := range o.ServiceUsages {
		line := ServiceLine{
			UsageID:   u.ID,
			ServiceID: u.ServiceID,
			Name:      u.Name,
			Quantity:  u.Quantity,
			UnitPrice: u.UnitPrice,
			StartedAt: u.StartedAt,
			EndedAt:   now,
			Running:   u.EndedAt == nil,
		}
		if u.EndedAt != nil {
			line.EndedAt = *u.EndedAt
		}
		line.Hours = serviceHours(line.EndedAt.Sub(u.StartedAt))
		line.Amount = utils.CeilToThousand(u.UnitPrice.
			Mul(decimal.NewFromInt(int64(u.Quantity))).
			Mul(decimal.NewFromInt(line.Hours)))
		s.ServicesSubtotal = s.ServicesSubtotal.Add(line.Amount)
		s.Services = append(s.Services, line)
	}

	s.Total = courtAmount.Add(s.ItemsSubtotal).Add(s.ServicesSubtotal).Add(s.LateFeeAmount)
	return s, nil
}

// summarize re-prices the occurrence against the live rule set and credits the share of
// the booking's paid initial payment that belongs to it.
func (e *Engine) summarize(ctx context.Context, store Store, occ *models.Occurrence, lateFeePercent int, now time.Time, loc *time.Location) (*CheckoutSummary, error) {
	rules, err := store.ListPricingRules(ctx, occ.CourtID)
	if err != nil {
		return nil, err
	}
	courtAmount := occ.CourtAmount
	if q, err := PriceWindow(rules, occ.Date, occ.StartTime, occ.EndTime, false); err == nil && q.Complete {
		courtAmount = q.Total
	}

	s, err := ComputeCheckout(occ, courtAmount, lateFeePercent, now, loc)
	if err != nil {
		return nil, err
	}

	siblings, err := store.ListOccurrences(ctx, occ.BookingID)
	if err != nil {
		return nil, err
	}
	liveTotal := decimal.Zero
	for _, sib := range siblings {
		switch {
		case sib.ID == occ.ID:
			liveTotal = liveTotal.Add(courtAmount)
		case sib.Status != types.OCCURRENCE_CANCELLED:
			liveTotal = liveTotal.Add(sib.CourtAmount)
		}
	}
	payments, err := store.ListPayments(ctx, occ.BookingID)
	if err != nil {
		return nil, err
	}
	paidInitial := decimal.Zero
	for _, p := range payments {
		if p.Kind == types.PAYMENT_KIND_INITIAL && p.Status == types.PAYMENT_PAID {
			paidInitial = paidInitial.Add(p.Amount)
		}
	}
	s.PaymentType = InferPaymentType(payments, liveTotal)
	if liveTotal.IsPositive() {
		s.Credited = utils.RoundHalfUp2(paidInitial.Mul(courtAmount).Div(liveTotal))
	}
	s.Credited = decimal.Min(s.Credited, s.Total)
	s.Balance = utils.CeilToUnit(s.Total.Sub(s.Credited))
	return s, nil
}

// QuoteCheckout previews the bill for a checked-in occurrence without changing anything.
func (e *Engine) QuoteCheckout(ctx context.Context, occurrenceID uint) (*CheckoutSummary, error) {
	occ, err := e.Store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	lateFeePercent := e.Settings.LateFeePercent(ctx)
	return e.summarize(ctx, e.Store, occ, lateFeePercent, e.now(), e.location())
}

type CheckoutResult struct {
	Summary    *CheckoutSummary   `json:"summary"`
	Occurrence *models.Occurrence `json:"occurrence"`
	Payment    *models.Payment    `json:"payment,omitempty"`
}

// CheckOut closes a checked-in occurrence: running services are stopped, the bill is
// frozen onto the occurrence, the court is released when no other session holds it, and
// the outstanding balance is issued as a checkout payment.
func (e *Engine) CheckOut(ctx context.Context, occurrenceID uint, method types.PaymentMethod) (*CheckoutResult, error) {
	current, err := e.Store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	loc := e.location()
	lateFeePercent := e.Settings.LateFeePercent(ctx)
	currency := e.Settings.Currency()

	result := &CheckoutResult{}
	var booking *models.Booking
	released, completed := false, false
	err = e.withCourtLock(ctx, current.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			occ, err := tx.GetOccurrence(ctx, occurrenceID)
			if err != nil {
				return err
			}
			if !ValidOccurrenceTransition(ACTION_CHECK_OUT, occ.Status) {
				return TransitionError{Entity: "occurrence", Action: ACTION_CHECK_OUT, From: string(occ.Status)}
			}
			booking, err = tx.GetBooking(ctx, occ.BookingID)
			if err != nil {
				return err
			}
			if err := tx.EndRunningServices(ctx, occ.ID, now); err != nil {
				return err
			}
			if occ, err = tx.GetOccurrence(ctx, occurrenceID); err != nil {
				return err
			}
			summary, err := e.summarize(ctx, tx, occ, lateFeePercent, now, loc)
			if err != nil {
				return err
			}

			from, to := occurrenceRule(ACTION_CHECK_OUT)
			ok, err := tx.UpdateOccurrence(ctx, occ.ID, from, OccurrenceUpdate{
				Status:         to,
				CheckedOutAt:   &now,
				OverdueMinutes: &summary.OverdueMinutes,
				CourtAmount:    &summary.CourtAmount,
				LateFeeAmount:  &summary.LateFeeAmount,
				TotalAmount:    &summary.Total,
			})
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "occurrence", Action: ACTION_CHECK_OUT, From: string(occ.Status)}
			}

			if released, err = releaseCourt(ctx, tx, occ.CourtID, occ.ID); err != nil {
				return err
			}

			if method == "" {
				method = booking.PaymentMethod
			}
			payment, err := e.Payments.CreatePayment(ctx, tx, PaymentRequest{
				BookingID:    booking.ID,
				OccurrenceID: &occ.ID,
				CustomerID:   booking.CustomerID,
				Reference:    checkoutPaymentReference(occ.ID),
				Kind:         types.PAYMENT_KIND_CHECKOUT,
				Type:         types.PAYMENT_TYPE_FULL,
				Method:       method,
				Amount:       summary.Balance,
				Currency:     currency,
				Description:  fmt.Sprintf("Checkout for booking #%d on %s", booking.ID, occ.Date.Format(utils.DATE_FORMAT)),
			})
			if err != nil {
				return err
			}

			if completed, err = settleBooking(ctx, tx, booking.ID); err != nil {
				return err
			}

			occ, err = tx.GetOccurrence(ctx, occ.ID)
			if err != nil {
				return err
			}
			result.Summary = summary
			result.Occurrence = occ
			result.Payment = payment
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.Notifier.Notify(Event{
		Type:         EVENT_OCCURRENCE_CHECKOUT,
		CourtID:      result.Occurrence.CourtID,
		BookingID:    result.Occurrence.BookingID,
		OccurrenceID: result.Occurrence.ID,
		Status:       string(result.Occurrence.Status),
		At:           now,
		Data:         types.JSONB{"total": result.Summary.Total.String(), "court_released": released},
	})
	if completed {
		e.Notifier.Notify(Event{
			Type:      EVENT_BOOKING_COMPLETED,
			CourtID:   booking.CourtID,
			BookingID: booking.ID,
			Status:    string(types.BOOKING_COMPLETED),
			At:        now,
		})
	}
	return result, nil
}
