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

type CreateBookingInput struct {
	CourtID        uint
	CustomerID     uint
	StartDate      time.Time
	EndDate        time.Time
	StartTime      types.TimeOfDay
	EndTime        types.TimeOfDay
	DaysOfWeek     types.DaySet
	PaymentMethod  types.PaymentMethod
	DepositPercent int
	HoldScope      types.HoldScope
}

// Validate normalizes the input in place and rejects anything malformed or in the past.
func (in *CreateBookingInput) Validate(now time.Time, loc *time.Location, maxDays int) error {
	if in.CourtID == 0 {
		return ValidationError{Field: "court_id", Msg: "court is required"}
	}
	if in.StartTime < 0 || in.EndTime > types.MinutesPerDay {
		return ValidationError{Field: "start_time", Msg: "time must be within the day"}
	}
	if in.StartTime >= in.EndTime {
		return ValidationError{Field: "end_time", Msg: "end time must be after start time"}
	}
	for _, d := range in.DaysOfWeek {
		if !utils.IsValidDayCode(d) {
			return ValidationError{Field: "days_of_week", Msg: fmt.Sprintf("invalid day code %d", d)}
		}
	}
	in.DaysOfWeek = types.NewDaySet(in.DaysOfWeek...)
	in.StartDate = utils.DateOf(in.StartDate)
	if in.EndDate.IsZero() || in.DaysOfWeek.IsEmpty() {
		if !in.EndDate.IsZero() && !utils.DateOf(in.EndDate).Equal(in.StartDate) {
			return ValidationError{Field: "end_date", Msg: "a one-off booking must start and end on the same date"}
		}
		in.EndDate = in.StartDate
	}
	in.EndDate = utils.DateOf(in.EndDate)
	if in.EndDate.Before(in.StartDate) {
		return ValidationError{Field: "end_date", Msg: "end date must not be before start date"}
	}
	if maxDays > 0 && int(in.EndDate.Sub(in.StartDate).Hours()/24) >= maxDays {
		return ValidationError{Field: "end_date", Msg: fmt.Sprintf("a booking may span at most %d days", maxDays)}
	}

	today := utils.DateOf(now.In(loc))
	if in.StartDate.Before(today) {
		return ValidationError{Field: "start_date", Msg: "start date is in the past"}
	}
	if !in.DaysOfWeek.IsEmpty() {
		matches := false
		utils.EachDate(in.StartDate, in.EndDate, func(d time.Time) bool {
			matches = in.DaysOfWeek.Contains(utils.CustomDayOfWeek(d))
			return !matches
		})
		if !matches {
			return ValidationError{Field: "days_of_week", Msg: "no date in the range falls on the selected days"}
		}
	} else if !utils.At(in.StartDate, in.StartTime, loc).After(now) {
		return ValidationError{Field: "start_time", Msg: "start time has already passed"}
	}

	if in.PaymentMethod == "" {
		in.PaymentMethod = types.PAYMENT_METHOD_CASH
	}
	if in.DepositPercent == 0 {
		in.DepositPercent = 100
	}
	if in.DepositPercent < 1 || in.DepositPercent > 100 {
		return ValidationError{Field: "deposit_percent", Msg: "deposit must be between 1 and 100 percent"}
	}
	if in.HoldScope == "" {
		in.HoldScope = types.HOLD_SCOPE_BOOKING
	}
	return nil
}

func (in *CreateBookingInput) slot() SlotRequest {
	return SlotRequest{
		CourtID:    in.CourtID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		DaysOfWeek: in.DaysOfWeek,
	}
}

type CreateBookingResult struct {
	Booking     *models.Booking      `json:"booking"`
	Occurrences []*models.Occurrence `json:"occurrences"`
	Payment     *models.Payment      `json:"payment,omitempty"`
}

// CreateBooking runs conflict detection, pricing, persistence, occurrence generation and
// the initial payment as one transaction under the court lock. Nothing is written on failure.
func (e *Engine) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingResult, error) {
	now := e.now()
	loc := e.location()
	if err := in.Validate(now, loc, e.MaxBookingDays); err != nil {
		return nil, err
	}
	holdMinutes := e.Settings.HoldMinutes(ctx, in.HoldScope)
	blockingMinutes := e.Settings.HoldMinutes(ctx, types.HOLD_SCOPE_BOOKING)
	currency := e.Settings.Currency()

	result := &CreateBookingResult{}
	err := e.withCourtLock(ctx, in.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			court, err := tx.LockCourt(ctx, in.CourtID)
			if err != nil {
				return err
			}
			if !court.Bookable() {
				return ValidationError{Field: "court_id", Msg: fmt.Sprintf("court %d is %s", court.ID, court.Status)}
			}

			req := in.slot()
			existing, err := e.findConflict(ctx, tx, req, now, blockingMinutes)
			if err != nil {
				return err
			}
			if existing != nil {
				return conflictError(req.asBooking(), existing)
			}

			booking := &models.Booking{
				CourtID:        in.CourtID,
				CustomerID:     in.CustomerID,
				StartDate:      in.StartDate,
				EndDate:        in.EndDate,
				StartTime:      in.StartTime,
				EndTime:        in.EndTime,
				DaysOfWeek:     in.DaysOfWeek,
				Status:         types.BOOKING_PENDING_PAYMENT,
				PaymentMethod:  in.PaymentMethod,
				DepositPercent: in.DepositPercent,
				Currency:       currency,
			}
			booking.CreatedAt = now
			if in.PaymentMethod.PaysImmediately() {
				booking.Status = types.BOOKING_ACTIVE
			} else {
				booking.HoldExpiresAt = ptr(now.Add(time.Duration(holdMinutes) * time.Minute))
			}

			rules, err := tx.ListPricingRules(ctx, in.CourtID)
			if err != nil {
				return err
			}
			occurrences := GenerateOccurrences(booking)
			total := decimal.Zero
			for _, occ := range occurrences {
				q, err := PriceWindow(rules, occ.Date, occ.StartTime, occ.EndTime, true)
				if err != nil {
					return err
				}
				occ.CourtAmount = q.Total
				occ.TotalAmount = q.Total
				total = total.Add(q.Total)
			}
			booking.TotalPrice = total

			if err := tx.CreateBooking(ctx, booking); err != nil {
				return err
			}
			for _, occ := range occurrences {
				occ.BookingID = booking.ID
				occ.CreatedAt = now
			}
			if err := tx.CreateOccurrences(ctx, occurrences); err != nil {
				return err
			}

			amount := utils.CeilToUnit(utils.Percent(total, in.DepositPercent))
			payType := types.PAYMENT_TYPE_DEPOSIT
			if amount.GreaterThanOrEqual(total.Mul(fullPaymentRatio)) {
				payType = types.PAYMENT_TYPE_FULL
			}
			payment, err := e.Payments.CreatePayment(ctx, tx, PaymentRequest{
				BookingID:   booking.ID,
				CustomerID:  booking.CustomerID,
				Reference:   initialPaymentReference(booking.ID),
				Kind:        types.PAYMENT_KIND_INITIAL,
				Type:        payType,
				Method:      in.PaymentMethod,
				Amount:      amount,
				Currency:    currency,
				Description: fmt.Sprintf("Court %s booking #%d", court.Name, booking.ID),
			})
			if err != nil {
				return err
			}

			result.Booking = booking
			result.Occurrences = occurrences
			result.Payment = payment
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.Notifier.Notify(Event{
		Type:      EVENT_BOOKING_CREATED,
		CourtID:   result.Booking.CourtID,
		BookingID: result.Booking.ID,
		Status:    string(result.Booking.Status),
		At:        now,
		Data:      types.JSONB{"occurrences": len(result.Occurrences), "total_price": result.Booking.TotalPrice.String()},
	})
	if result.Booking.Status == types.BOOKING_PENDING_PAYMENT {
		e.nudgeHolds()
	}
	return result, nil
}

// ConfirmPayment activates a pending booking, its pending occurrences and its initial payment.
// Confirming an already active booking is a no-op. A booking whose hold lapsed is still
// accepted when the slot is free.
func (e *Engine) ConfirmPayment(ctx context.Context, bookingID uint) (*models.Booking, error) {
	current, err := e.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	holdMinutes := e.Settings.HoldMinutes(ctx, types.HOLD_SCOPE_BOOKING)

	var booking *models.Booking
	changed := false
	err = e.withCourtLock(ctx, current.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			b, err := tx.GetBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			booking = b
			if b.Status == types.BOOKING_ACTIVE {
				return nil
			}
			if !ValidBookingTransition(ACTION_CONFIRM_PAYMENT, b.Status) {
				return TransitionError{Entity: "booking", Action: ACTION_CONFIRM_PAYMENT, From: string(b.Status)}
			}
			if !b.Blocks(now, holdMinutes) {
				req := SlotRequest{
					CourtID:          b.CourtID,
					StartDate:        b.StartDate,
					EndDate:          b.EndDate,
					StartTime:        b.StartTime,
					EndTime:          b.EndTime,
					DaysOfWeek:       b.DaysOfWeek,
					ExcludeBookingID: b.ID,
				}
				existing, err := e.findConflict(ctx, tx, req, now, holdMinutes)
				if err != nil {
					return err
				}
				if existing != nil {
					return conflictError(b, existing)
				}
			}

			from, to := bookingRule(ACTION_CONFIRM_PAYMENT)
			ok, err := tx.UpdateBookingStatus(ctx, b.ID, from, to, nil)
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "booking", Action: ACTION_CONFIRM_PAYMENT, From: string(b.Status)}
			}
			occFrom, occTo := occurrenceRule(ACTION_CONFIRM_PAYMENT)
			if _, err := tx.UpdateOccurrencesOfBookings(ctx, []uint{b.ID}, occFrom, occTo); err != nil {
				return err
			}
			if _, err := tx.UpdatePaymentsOfBookings(ctx, []uint{b.ID}, types.PAYMENT_KIND_INITIAL, []types.PaymentStatus{types.PAYMENT_PENDING}, types.PAYMENT_PAID, &now); err != nil {
				return err
			}
			booking.Status = to
			changed = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.Notifier.Notify(Event{
			Type:      EVENT_BOOKING_CONFIRMED,
			CourtID:   booking.CourtID,
			BookingID: booking.ID,
			Status:    string(booking.Status),
			At:        now,
		})
	}
	return booking, nil
}

// ConfirmCheckoutSession settles the payment behind a completed hosted checkout.
func (e *Engine) ConfirmCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	payment, err := e.Store.FindPaymentByCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if payment.Kind == types.PAYMENT_KIND_INITIAL {
		if _, err := e.ConfirmPayment(ctx, payment.BookingID); err != nil {
			return nil, err
		}
	} else {
		now := e.now()
		if _, err := e.Store.UpdatePaymentStatus(ctx, payment.ID, []types.PaymentStatus{types.PAYMENT_PENDING}, types.PAYMENT_PAID, &now); err != nil {
			return nil, err
		}
	}
	return e.Store.FindPaymentByCheckoutSession(ctx, sessionID)
}

// CancelBooking cancels a pending or active booking along with every occurrence that has
// not started and every pending payment. A booking with a checked-in occurrence must be
// checked out first.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint, reason string) (*models.Booking, error) {
	current, err := e.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	var booking *models.Booking
	err = e.withCourtLock(ctx, current.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			b, err := tx.GetBooking(ctx, bookingID)
			if err != nil {
				return err
			}
			if !ValidBookingTransition(ACTION_CANCEL, b.Status) {
				return TransitionError{Entity: "booking", Action: ACTION_CANCEL, From: string(b.Status)}
			}
			occurrences, err := tx.ListOccurrences(ctx, b.ID)
			if err != nil {
				return err
			}
			for _, occ := range occurrences {
				if occ.Status == types.OCCURRENCE_CHECKED_IN {
					return ValidationError{Field: "booking_id", Msg: fmt.Sprintf("occurrence %d is checked in; check it out first", occ.ID)}
				}
			}

			var why *string
			if reason != "" {
				why = &reason
			}
			from, to := bookingRule(ACTION_CANCEL)
			ok, err := tx.UpdateBookingStatus(ctx, b.ID, from, to, why)
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "booking", Action: ACTION_CANCEL, From: string(b.Status)}
			}
			occFrom, occTo := occurrenceRule(ACTION_CANCEL)
			if _, err := tx.UpdateOccurrencesOfBookings(ctx, []uint{b.ID}, occFrom, occTo); err != nil {
				return err
			}
			if _, err := tx.UpdatePaymentsOfBookings(ctx, []uint{b.ID}, "", []types.PaymentStatus{types.PAYMENT_PENDING}, types.PAYMENT_CANCELLED, nil); err != nil {
				return err
			}
			b.Status = to
			b.CancelReason = why
			booking = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(Event{
		Type:      EVENT_BOOKING_CANCELLED,
		CourtID:   booking.CourtID,
		BookingID: booking.ID,
		Status:    string(booking.Status),
		At:        now,
		Data:      types.JSONB{"reason": reason},
	})
	return booking, nil
}

type BookingDetail struct {
	*models.Booking
	PaymentType types.PaymentType `json:"payment_type"`
}

func (e *Engine) GetBooking(ctx context.Context, bookingID uint) (*BookingDetail, error) {
	booking, err := e.Store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	occurrences, err := e.Store.ListOccurrences(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	payments, err := e.Store.ListPayments(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	booking.Occurrences = occurrences
	booking.Payments = payments
	return &BookingDetail{
		Booking:     booking,
		PaymentType: InferPaymentType(payments, booking.TotalPrice),
	}, nil
}
