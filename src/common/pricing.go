package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"courtbook/src/utils"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

type PriceSegment struct {
	RuleID       uint            `json:"rule_id"`
	Start        types.TimeOfDay `json:"start"`
	End          types.TimeOfDay `json:"end"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	// Amount is rounded half-up to cents for display only; Total never sums it.
	Amount decimal.Decimal `json:"amount"`
}

type Quote struct {
	Date     time.Time       `json:"date"`
	Start    types.TimeOfDay `json:"start"`
	End      types.TimeOfDay `json:"end"`
	Segments []PriceSegment  `json:"segments"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
	// Complete is false when a lenient walk stopped at a gap.
	Complete bool `json:"complete"`
}

// rulesForDay filters rules applicable on date and orders them by priority, then id.
func rulesForDay(rules []*models.PricingRule, date time.Time) []*models.PricingRule {
	day := utils.CustomDayOfWeek(date)
	applicable := []*models.PricingRule{}
	for _, r := range rules {
		if r.AppliesOn(day) && r.StartTime < r.EndTime {
			applicable = append(applicable, r)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		if applicable[i].Priority != applicable[j].Priority {
			return applicable[i].Priority < applicable[j].Priority
		}
		return applicable[i].ID < applicable[j].ID
	})
	return applicable
}

// PriceWindow walks [start, end) across the rules applicable on date. At each cursor the
// first rule by priority that covers it applies until it ends or a higher-priority rule
// begins. In strict mode any uncovered minute is a ConfigurationError; otherwise the walk
// stops at the gap and prices what it covered.
func PriceWindow(rules []*models.PricingRule, date time.Time, start, end types.TimeOfDay, strict bool) (*Quote, error) {
	if start >= end {
		return nil, ValidationError{Field: "end_time", Msg: "end time must be after start time"}
	}
	q := &Quote{
		Date:     utils.DateOf(date),
		Start:    start,
		End:      end,
		Segments: []PriceSegment{},
		Subtotal: decimal.Zero,
		Total:    decimal.Zero,
	}
	applicable := rulesForDay(rules, date)
	if len(applicable) == 0 {
		if strict {
			return nil, ConfigurationError{Msg: fmt.Sprintf("pricing not configured for %s", utils.DayName(utils.CustomDayOfWeek(date)))}
		}
		return q, nil
	}

	cursor := start
	for cursor < end {
		var rule *models.PricingRule
		for _, r := range applicable {
			if r.Covers(cursor) {
				rule = r
				break
			}
		}
		if rule == nil {
			if strict {
				return nil, ConfigurationError{Msg: fmt.Sprintf("pricing not configured for this time window %s-%s on %s", cursor, end, utils.DayName(utils.CustomDayOfWeek(date)))}
			}
			break
		}
		// The rule covering the cursor holds until it ends, even if a higher-priority rule starts inside.
		next := min(rule.EndTime, end)
		amount := rule.PricePerHour.Mul(decimal.NewFromInt(int64(next - cursor))).Div(minutesPerHour)
		q.Subtotal = q.Subtotal.Add(amount)
		q.Segments = append(q.Segments, PriceSegment{
			RuleID:       rule.ID,
			Start:        cursor,
			End:          next,
			PricePerHour: rule.PricePerHour,
			Amount:       utils.RoundHalfUp2(amount),
		})
		cursor = next
	}
	q.Complete = cursor >= end
	q.Total = utils.CeilToUnit(q.Subtotal)
	return q, nil
}

// ResolvePrice prices a booking window and fails on any gap in the rule set.
func (e *Engine) ResolvePrice(ctx context.Context, courtID uint, date time.Time, start, end types.TimeOfDay) (decimal.Decimal, error) {
	q, err := e.QuotePrice(ctx, courtID, date, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

// ResolveLenient is the checkout variant: it prices whatever part of the window is covered.
func (e *Engine) ResolveLenient(ctx context.Context, courtID uint, date time.Time, start, end types.TimeOfDay) (decimal.Decimal, error) {
	rules, err := e.Store.ListPricingRules(ctx, courtID)
	if err != nil {
		return decimal.Zero, err
	}
	q, err := PriceWindow(rules, date, start, end, false)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Total, nil
}

func (e *Engine) QuotePrice(ctx context.Context, courtID uint, date time.Time, start, end types.TimeOfDay) (*Quote, error) {
	if _, err := e.Store.GetCourt(ctx, courtID); err != nil {
		return nil, err
	}
	rules, err := e.Store.ListPricingRules(ctx, courtID)
	if err != nil {
		return nil, err
	}
	return PriceWindow(rules, date, start, end, true)
}
