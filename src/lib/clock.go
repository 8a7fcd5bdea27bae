package lib

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the single source of "now" for the engine.
type Clock = clockwork.Clock

var clock Clock

func GetClock() Clock {
	if clock != nil {
		return clock
	}
	clock = clockwork.NewRealClock()
	return clock
}

// NowUTC reads c and normalizes to UTC.
func NowUTC(c Clock) time.Time {
	return c.Now().UTC()
}
