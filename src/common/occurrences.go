package common

import (
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"time"
)

// GenerateOccurrences expands an already validated booking into dated occurrences.
// A one-off booking yields exactly one; a recurring booking yields one per matching date.
func GenerateOccurrences(b *models.Booking) []*models.Occurrence {
	status := types.OCCURRENCE_PENDING_PAYMENT
	if b.PaymentMethod.PaysImmediately() {
		status = types.OCCURRENCE_ACTIVE
	}
	newOccurrence := func(d time.Time) *models.Occurrence {
		return &models.Occurrence{
			BookingID: b.ID,
			CourtID:   b.CourtID,
			Date:      d,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    status,
		}
	}
	if !b.IsRecurring() {
		return []*models.Occurrence{newOccurrence(utils.DateOf(b.StartDate))}
	}
	occs := []*models.Occurrence{}
	utils.EachDate(b.StartDate, b.EndDate, func(d time.Time) bool {
		if b.DaysOfWeek.Contains(utils.CustomDayOfWeek(d)) {
			occs = append(occs, newOccurrence(d))
		}
		return true
	})
	return occs
}
