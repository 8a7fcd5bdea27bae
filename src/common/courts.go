package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func (e *Engine) CreateCourt(ctx context.Context, name string, status types.CourtStatus) (*models.Court, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError{Field: "name", Msg: "name is required"}
	}
	if status == "" {
		status = types.COURT_ACTIVE
	}
	switch status {
	case types.COURT_ACTIVE, types.COURT_INACTIVE, types.COURT_MAINTENANCE:
	default:
		return nil, ValidationError{Field: "status", Msg: fmt.Sprintf("a new court cannot be %s", status)}
	}
	court := &models.Court{Name: name, Status: status}
	if err := e.Store.CreateCourt(ctx, court); err != nil {
		return nil, err
	}
	return court, nil
}

func (e *Engine) ListCourts(ctx context.Context) ([]*models.Court, error) {
	return e.Store.ListCourts(ctx)
}

func (e *Engine) GetCourt(ctx context.Context, courtID uint) (*models.Court, error) {
	court, err := e.Store.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}
	rules, err := e.Store.ListPricingRules(ctx, courtID)
	if err != nil {
		return nil, err
	}
	court.PricingRules = rules
	return court, nil
}

// ChangeCourtStatus applies an operator action. It races with check-in and check-out, so
// the write is conditional on the status read under the court lock.
func (e *Engine) ChangeCourtStatus(ctx context.Context, courtID uint, action Action) (*models.Court, error) {
	now := e.now()
	var court *models.Court
	err := e.withCourtLock(ctx, courtID, func() error {
		return e.Store.WithTx(ctx, func(tx Store) error {
			c, err := tx.LockCourt(ctx, courtID)
			if err != nil {
				return err
			}
			if !ValidCourtTransition(action, c.Status) {
				return TransitionError{Entity: "court", Action: action, From: string(c.Status)}
			}
			from, to := courtRule(action)
			ok, err := tx.UpdateCourtStatus(ctx, c.ID, from, to)
			if err != nil {
				return err
			}
			if !ok {
				return TransitionError{Entity: "court", Action: action, From: string(c.Status)}
			}
			c.Status = to
			court = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.Notifier.Notify(Event{
		Type:    EVENT_COURT_STATUS,
		CourtID: court.ID,
		Status:  string(court.Status),
		At:      now,
		Data:    types.JSONB{"action": string(action)},
	})
	return court, nil
}

type PricingRuleInput struct {
	CourtID      uint
	StartTime    types.TimeOfDay
	EndTime      types.TimeOfDay
	PricePerHour decimal.Decimal
	Priority     int
	DaysOfWeek   []int
}

func (e *Engine) AddPricingRule(ctx context.Context, in PricingRuleInput) (*models.PricingRule, error) {
	if in.StartTime < 0 || in.EndTime > types.MinutesPerDay || in.StartTime >= in.EndTime {
		return nil, ValidationError{Field: "end_time", Msg: "end time must be after start time"}
	}
	if in.PricePerHour.IsNegative() {
		return nil, ValidationError{Field: "price_per_hour", Msg: "price must not be negative"}
	}
	if len(in.DaysOfWeek) == 0 {
		return nil, ValidationError{Field: "days_of_week", Msg: "at least one day is required"}
	}
	for _, d := range in.DaysOfWeek {
		if !utils.IsValidDayCode(d) {
			return nil, ValidationError{Field: "days_of_week", Msg: fmt.Sprintf("invalid day code %d", d)}
		}
	}
	if _, err := e.Store.GetCourt(ctx, in.CourtID); err != nil {
		return nil, err
	}
	rule := &models.PricingRule{
		CourtID:      in.CourtID,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		PricePerHour: in.PricePerHour,
		Priority:     in.Priority,
		DaysOfWeek:   types.NewDaySet(in.DaysOfWeek...),
	}
	if err := e.Store.CreatePricingRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (e *Engine) ListPricingRules(ctx context.Context, courtID uint) ([]*models.PricingRule, error) {
	if _, err := e.Store.GetCourt(ctx, courtID); err != nil {
		return nil, err
	}
	return e.Store.ListPricingRules(ctx, courtID)
}
