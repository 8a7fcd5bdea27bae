package common

import (
	"context"
	"courtbook/src/config"
	"courtbook/src/lib"
	"courtbook/src/types"
	"courtbook/src/utils"
	"log"
)

const noShowBatchSize = 500

// SweepNoShows marks active occurrences as no-show once their booked end plus the
// grace period has passed without a check-in. Failures on one occurrence do not stop the sweep.
func (e *Engine) SweepNoShows(ctx context.Context) (int, error) {
	now := e.now()
	loc := e.location()
	today := utils.DateOf(now.In(loc))

	candidates, err := e.Store.ListOccurrencesByStatus(ctx, types.OCCURRENCE_ACTIVE, today, noShowBatchSize)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, occ := range candidates {
		deadline := utils.At(occ.Date, occ.EndTime, loc).Add(e.NoShowGrace)
		if now.Before(deadline) {
			continue
		}
		if _, err := e.MarkNoShow(ctx, occ.ID); err != nil {
			if !IsTransition(err) {
				log.Printf("[NoShow] Error marking occurrence %d: %s\n", occ.ID, err.Error())
			}
			continue
		}
		marked++
	}
	if marked > 0 {
		log.Printf("[NoShow] Marked %d occurrence(s) as no-show\n", marked)
	}
	return marked, nil
}

// ScheduleNoShowSweep registers the sweep on the shared scheduler.
func (e *Engine) ScheduleNoShowSweep() (*string, error) {
	interval := config.Seconds("NO_SHOW_SCAN_INTERVAL_SECONDS", 60)
	return lib.CreateCronJob("no-show-sweep", interval, func(ctx context.Context) {
		if _, err := e.SweepNoShows(ctx); err != nil {
			log.Printf("[NoShow] Sweep failed: %s\n", err.Error())
		}
	})
}
