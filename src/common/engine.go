package common

import (
	"context"
	"courtbook/src/config"
	"courtbook/src/lib"
	"fmt"
	"time"
)

// Nudger wakes the hold reconciler when a new hold is created.
type Nudger interface {
	Nudge()
}

type Engine struct {
	Store    Store
	Clock    lib.Clock
	Locker   lib.Locker
	Settings *Settings
	Payments *PaymentIssuer
	Notifier Notifier
	Holds    Nudger

	// NoShowGrace is how long after an occurrence ends it may still be checked in.
	NoShowGrace time.Duration
	// MaxBookingDays bounds the date span of a recurring booking.
	MaxBookingDays int
}

func NewEngine(store Store, clock lib.Clock) *Engine {
	return &Engine{
		Store:          store,
		Clock:          clock,
		Locker:         lib.NewKeyedMutex(),
		Settings:       NewSettings(store),
		Payments:       NewPaymentIssuer(clock, nil),
		Notifier:       NopNotifier{},
		NoShowGrace:    config.Seconds("NO_SHOW_GRACE_SECONDS", 15*60),
		MaxBookingDays: config.Int("MAX_BOOKING_DAYS", 366),
	}
}

func (e *Engine) now() time.Time {
	return lib.NowUTC(e.Clock)
}

func (e *Engine) location() *time.Location {
	return e.Settings.Location()
}

func courtLockKey(courtID uint) string {
	return fmt.Sprintf("court:%d", courtID)
}

// withCourtLock serializes fn against every other writer for the same court.
func (e *Engine) withCourtLock(ctx context.Context, courtID uint, fn func() error) error {
	unlock, err := e.Locker.Lock(ctx, courtLockKey(courtID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (e *Engine) nudgeHolds() {
	if e.Holds != nil {
		e.Holds.Nudge()
	}
}

func ptr[T any](v T) *T {
	return &v
}
