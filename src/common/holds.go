package common

import (
	"context"
	"courtbook/src/lib"
	"courtbook/src/types"
	"errors"
	"log"
	"time"
)

// HoldReconciler cancels bookings whose payment hold has lapsed, together with their
// pending occurrences and payments. Conflict checks never depend on it having run.
type HoldReconciler struct {
	Store    Store
	Clock    lib.Clock
	Settings *Settings
	Notifier Notifier

	// The loop sleeps until the next known deadline, clamped to [MinInterval, MaxInterval].
	MinInterval  time.Duration
	MaxInterval  time.Duration
	ErrorBackoff time.Duration
	PassTimeout  time.Duration

	nudge chan struct{}
}

func NewHoldReconciler(store Store, clock lib.Clock, settings *Settings, notifier Notifier) *HoldReconciler {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &HoldReconciler{
		Store:        store,
		Clock:        clock,
		Settings:     settings,
		Notifier:     notifier,
		MinInterval:  time.Second,
		MaxInterval:  time.Minute,
		ErrorBackoff: 5 * time.Second,
		PassTimeout:  30 * time.Second,
		nudge:        make(chan struct{}, 1),
	}
}

// Nudge wakes the loop early, e.g. after a new hold was created.
func (h *HoldReconciler) Nudge() {
	select {
	case h.nudge <- struct{}{}:
	default:
	}
}

// RunOnce performs a single reconciliation pass and returns the next hold deadline, if any.
func (h *HoldReconciler) RunOnce(ctx context.Context) (*time.Time, error) {
	holdMinutes := h.Settings.HoldMinutes(ctx, types.HOLD_SCOPE_BOOKING)
	now := lib.NowUTC(h.Clock)

	var expired []uint
	err := h.Store.WithTx(ctx, func(tx Store) error {
		ids, err := tx.ExpireHolds(ctx, now, holdMinutes)
		if err != nil {
			return err
		}
		expired = ids
		if len(ids) == 0 {
			return nil
		}
		from, to := occurrenceRule(ACTION_EXPIRE)
		if _, err := tx.UpdateOccurrencesOfBookings(ctx, ids, from, to); err != nil {
			return err
		}
		_, err = tx.UpdatePaymentsOfBookings(ctx, ids, "", []types.PaymentStatus{types.PAYMENT_PENDING}, types.PAYMENT_CANCELLED, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(expired) > 0 {
		log.Printf("[Holds] Expired %d booking(s): %v\n", len(expired), expired)
		for _, id := range expired {
			booking, err := h.Store.GetBooking(ctx, id)
			if err != nil {
				continue
			}
			h.Notifier.Notify(Event{
				Type:      EVENT_BOOKING_EXPIRED,
				CourtID:   booking.CourtID,
				BookingID: booking.ID,
				Status:    string(booking.Status),
				At:        now,
			})
		}
	}

	return h.Store.NextHoldExpiry(ctx, holdMinutes)
}

func (h *HoldReconciler) safePass(ctx context.Context) (next *time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Holds] Recovered from panic: %v\n", r)
			next, err = nil, errPanic
		}
	}()
	passCtx, cancel := context.WithTimeout(ctx, h.PassTimeout)
	defer cancel()
	return h.RunOnce(passCtx)
}

var errPanic = errors.New("reconciliation pass panicked")

// wait computes the sleep before the next pass.
func (h *HoldReconciler) wait(next *time.Time, err error) time.Duration {
	if err != nil {
		return h.ErrorBackoff
	}
	if next == nil {
		return h.MaxInterval
	}
	d := next.Sub(lib.NowUTC(h.Clock))
	return min(max(d, h.MinInterval), h.MaxInterval)
}

// Run loops until ctx is cancelled. A failed pass is logged and retried after ErrorBackoff.
func (h *HoldReconciler) Run(ctx context.Context) {
	log.Println("[Holds] Reconciler started")
	for {
		next, err := h.safePass(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("[Holds] Reconciliation failed: %s\n", err.Error())
		}

		timer := h.Clock.NewTimer(h.wait(next, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("[Holds] Reconciler stopped")
			return
		case <-h.nudge:
			timer.Stop()
		case <-timer.Chan():
		}
	}
}
