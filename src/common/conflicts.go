package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"fmt"
	"time"
)

// SlotRequest describes a proposed booking for conflict checks.
type SlotRequest struct {
	CourtID          uint
	StartDate        time.Time
	EndDate          time.Time
	StartTime        types.TimeOfDay
	EndTime          types.TimeOfDay
	DaysOfWeek       types.DaySet
	ExcludeBookingID uint
}

func (r SlotRequest) asBooking() *models.Booking {
	return &models.Booking{
		CourtID:    r.CourtID,
		StartDate:  utils.DateOf(r.StartDate),
		EndDate:    utils.DateOf(r.EndDate),
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		DaysOfWeek: r.DaysOfWeek,
	}
}

func appliesOn(b *models.Booking, date time.Time) bool {
	return b.DaysOfWeek.IsEmpty() || b.DaysOfWeek.Contains(utils.CustomDayOfWeek(date))
}

// FirstCommonDate returns the earliest date both bookings occupy, ignoring time of day.
// Only the first seven days of the date intersection need checking since
// applicability depends on weekday alone.
func FirstCommonDate(a, b *models.Booking) (time.Time, bool) {
	if !utils.DateRangesIntersect(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
		return time.Time{}, false
	}
	from := utils.MaxDate(utils.DateOf(a.StartDate), utils.DateOf(b.StartDate))
	to := utils.MinDate(utils.DateOf(a.EndDate), utils.DateOf(b.EndDate))
	if limit := from.AddDate(0, 0, 6); limit.Before(to) {
		to = limit
	}
	var found time.Time
	ok := false
	utils.EachDate(from, to, func(d time.Time) bool {
		if appliesOn(a, d) && appliesOn(b, d) {
			found, ok = d, true
			return false
		}
		return true
	})
	return found, ok
}

// Conflicts reports whether two bookings on the same court overlap in date, time and weekday.
// It is symmetric and does not look at status.
func Conflicts(a, b *models.Booking) bool {
	if a.CourtID != b.CourtID {
		return false
	}
	if !utils.TimeRangesIntersect(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
		return false
	}
	_, ok := FirstCommonDate(a, b)
	return ok
}

// findConflict returns the first live booking that collides with req, or nil.
// holdMinutes is read by the caller before any transaction opens.
func (e *Engine) findConflict(ctx context.Context, store Store, req SlotRequest, now time.Time, holdMinutes int) (*models.Booking, error) {
	candidates, err := store.ListBlockingCandidates(ctx, req.CourtID, utils.DateOf(req.StartDate), utils.DateOf(req.EndDate), req.ExcludeBookingID)
	if err != nil {
		return nil, err
	}
	proposed := req.asBooking()
	for _, existing := range candidates {
		if !existing.Blocks(now, holdMinutes) {
			continue
		}
		if Conflicts(proposed, existing) {
			return existing, nil
		}
	}
	return nil, nil
}

func conflictError(proposed, existing *models.Booking) ConflictError {
	date, _ := FirstCommonDate(proposed, existing)
	start := max(proposed.StartTime, existing.StartTime)
	end := min(proposed.EndTime, existing.EndTime)
	return ConflictError{
		Msg:       fmt.Sprintf("court %d is already booked on %s %s-%s (booking #%d)", existing.CourtID, date.Format(utils.DATE_FORMAT), start, end, existing.ID),
		BookingID: existing.ID,
	}
}

// FindConflict exposes the live-conflict lookup used by the booking pipeline.
func (e *Engine) FindConflict(ctx context.Context, req SlotRequest) (*models.Booking, error) {
	holdMinutes := e.Settings.HoldMinutes(ctx, types.HOLD_SCOPE_BOOKING)
	return e.findConflict(ctx, e.Store, req, e.now(), holdMinutes)
}

func (e *Engine) HasConflict(ctx context.Context, req SlotRequest) (bool, error) {
	existing, err := e.FindConflict(ctx, req)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}
