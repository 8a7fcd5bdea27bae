package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// releaseCourt flips an in-use court back to active once no other occurrence is checked in.
// The write is conditional so a court put into maintenance meanwhile stays there.
func releaseCourt(ctx context.Context, tx Store, courtID, occurrenceID uint) (bool, error) {
	count, err := tx.CountCheckedIn(ctx, courtID, occurrenceID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	from, to := courtRule(ACTION_RELEASE)
	return tx.UpdateCourtStatus(ctx, courtID, from, to)
}

// settleBooking closes an active booking once every occurrence is terminal: completed if
// any was played or missed, cancelled if all were cancelled.
func settleBooking(ctx context.Context, tx Store, bookingID uint) (bool, error) {
	occurrences, err := tx.ListOccurrences(ctx, bookingID)
	if err != nil {
		return false, err
	}
	allCancelled := true
	for _, occ := range occurrences {
		if !occ.IsTerminal() {
			return false, nil
		}
		allCancelled = allCancelled && occ.Status == types.OCCURRENCE_CANCELLED
	}
	if allCancelled {
		reason := "all occurrences cancelled"
		from, to := bookingRule(ACTION_CANCEL)
		ok, err := tx.UpdateBookingStatus(ctx, bookingID, from, to, &reason)
		if err != nil || !ok {
			return false, err
		}
		_, err = tx.UpdatePaymentsOfBookings(ctx, []uint{bookingID}, "", []types.PaymentStatus{types.PAYMENT_PENDING}, types.PAYMENT_CANCELLED, nil)
		return false, err
	}
	from, to := bookingRule(ACTION_COMPLETE)
	return tx.UpdateBookingStatus(ctx, bookingID, from, to, nil)
}

// CheckIn starts a session on an active occurrence and marks the court in use.
func (e *Engine) CheckIn(ctx context.Context, occurrenceID uint) (*models.Occurrence, error) {
	current, err := e.Store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	today := utils.DateOf(now.In(e.location()))

	var occ *models.Occurrence
	err = e.withCourtLock(ctx, current.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			o, err := tx.GetOccurrence(ctx, occurrenceID)
			if err != nil {
				return err
			}
			if !ValidOccurrenceTransition(ACTION_CHECK_IN, o.Status) {
				return TransitionError{Entity: "occurrence", Action: ACTION_CHECK_IN, From: string(o.Status)}
			}
			if today.Before(utils.DateOf(o.Date)) {
				return ValidationError{Field: "occurrence_id", Msg: fmt.Sprintf("occurrence is scheduled for %s", o.Date.Format(utils.DATE_FORMAT))}
			}
			court, err := tx.LockCourt(ctx, o.CourtID)
			if err != nil {
				return err
			}
			if !ValidCourtTransition(ACTION_CHECK_IN, court.Status) {
				return ValidationError{Field: "court_id", Msg: fmt.Sprintf("court %d is %s", court.ID, court.Status)}
			}

			from, to := occurrenceRule(ACTION_CHECK_IN)
			ok, err := tx.UpdateOccurrence(ctx, o.ID, from, OccurrenceUpdate{Status: to, CheckedInAt: &now})
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "occurrence", Action: ACTION_CHECK_IN, From: string(o.Status)}
			}
			courtFrom, courtTo := courtRule(ACTION_CHECK_IN)
			if _, err := tx.UpdateCourtStatus(ctx, court.ID, courtFrom, courtTo); err != nil {
				return err
			}
			occ, err = tx.GetOccurrence(ctx, o.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(Event{
		Type:         EVENT_OCCURRENCE_CHECKIN,
		CourtID:      occ.CourtID,
		BookingID:    occ.BookingID,
		OccurrenceID: occ.ID,
		Status:       string(occ.Status),
		At:           now,
	})
	return occ, nil
}

// closeOccurrence applies a terminal action to an occurrence that never started.
func (e *Engine) closeOccurrence(ctx context.Context, occurrenceID uint, action Action, eventType string) (*models.Occurrence, error) {
	current, err := e.Store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	now := e.now()

	var occ *models.Occurrence
	err = e.withCourtLock(ctx, current.CourtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			o, err := tx.GetOccurrence(ctx, occurrenceID)
			if err != nil {
				return err
			}
			if !ValidOccurrenceTransition(action, o.Status) {
				return TransitionError{Entity: "occurrence", Action: action, From: string(o.Status)}
			}
			from, to := occurrenceRule(action)
			ok, err := tx.UpdateOccurrence(ctx, o.ID, from, OccurrenceUpdate{Status: to})
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "occurrence", Action: action, From: string(o.Status)}
			}
			if _, err := settleBooking(ctx, tx, o.BookingID); err != nil {
				return err
			}
			occ, err = tx.GetOccurrence(ctx, o.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(Event{
		Type:         eventType,
		CourtID:      occ.CourtID,
		BookingID:    occ.BookingID,
		OccurrenceID: occ.ID,
		Status:       string(occ.Status),
		At:           now,
	})
	return occ, nil
}

func (e *Engine) MarkNoShow(ctx context.Context, occurrenceID uint) (*models.Occurrence, error) {
	return e.closeOccurrence(ctx, occurrenceID, ACTION_NO_SHOW, EVENT_OCCURRENCE_NO_SHOW)
}

func (e *Engine) CancelOccurrence(ctx context.Context, occurrenceID uint) (*models.Occurrence, error) {
	return e.closeOccurrence(ctx, occurrenceID, ACTION_CANCEL, EVENT_OCCURRENCE_CANCELLED)
}

type ItemInput struct {
	ProductID uint
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

var itemStatuses = []types.OccurrenceStatus{types.OCCURRENCE_ACTIVE, types.OCCURRENCE_CHECKED_IN}

// AddItem appends a product line to an occurrence that is booked or in progress.
func (e *Engine) AddItem(ctx context.Context, occurrenceID uint, in ItemInput) (*models.OccurrenceItem, error) {
	if in.Quantity < 1 {
		return nil, ValidationError{Field: "quantity", Msg: "quantity must be at least 1"}
	}
	if in.UnitPrice.IsNegative() {
		return nil, ValidationError{Field: "unit_price", Msg: "unit price must not be negative"}
	}
	var item *models.OccurrenceItem
	err := e.Store.WithTx(ctx, func(tx Store) error {
		occ, err := tx.GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if !slices.Contains(itemStatuses, occ.Status) {
			return ValidationError{Field: "occurrence_id", Msg: fmt.Sprintf("cannot add items to an occurrence in status %s", occ.Status)}
		}
		item = &models.OccurrenceItem{
			OccurrenceID: occ.ID,
			ProductID:    in.ProductID,
			Name:         in.Name,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
		}
		return tx.AddItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

type ServiceInput struct {
	ServiceID uint
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// StartService begins a time-billed service on a checked-in occurrence.
func (e *Engine) StartService(ctx context.Context, occurrenceID uint, in ServiceInput) (*models.ServiceUsage, error) {
	if in.Quantity < 1 {
		return nil, ValidationError{Field: "quantity", Msg: "quantity must be at least 1"}
	}
	if in.UnitPrice.IsNegative() {
		return nil, ValidationError{Field: "unit_price", Msg: "unit price must not be negative"}
	}
	now := e.now()
	var usage *models.ServiceUsage
	err := e.Store.WithTx(ctx, func(tx Store) error {
		occ, err := tx.GetOccurrence(ctx, occurrenceID)
		if err != nil {
			return err
		}
		if occ.Status != types.OCCURRENCE_CHECKED_IN {
			return ValidationError{Field: "occurrence_id", Msg: "services can only start after check-in"}
		}
		usage = &models.ServiceUsage{
			OccurrenceID: occ.ID,
			ServiceID:    in.ServiceID,
			Name:         in.Name,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			StartedAt:    now,
		}
		return tx.AddServiceUsage(ctx, usage)
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

func (e *Engine) EndService(ctx context.Context, usageID uint) (*models.ServiceUsage, error) {
	now := e.now()
	ok, err := e.Store.EndServiceUsage(ctx, usageID, now)
	if err != nil {
		return nil, err
	}
	usage, err := e.Store.GetServiceUsage(ctx, usageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ValidationError{Field: "usage_id", Msg: "service has already ended"}
	}
	return usage, nil
}
