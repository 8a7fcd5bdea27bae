package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// Monday 2024-01-01 08:00 UTC.
var monday = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type EngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	clock    *clockwork.FakeClock
	store    *MemoryStore
	notifier *recordingNotifier
	engine   *Engine
	court    *models.Court
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClockAt(monday)
	s.store = NewMemoryStore().WithNow(s.clock.Now)
	s.notifier = &recordingNotifier{}
	s.engine = NewEngine(s.store, s.clock)
	s.engine.Notifier = s.notifier
	s.engine.NoShowGrace = 15 * time.Minute

	court, err := s.engine.CreateCourt(s.ctx, "Court 1", "")
	s.Require().Nil(err)
	s.court = court
	s.addRule(court.ID, "08:00", "17:00", 100, 1, 2, 3, 4, 5, 6, 7, 8)
	s.addRule(court.ID, "17:00", "22:00", 150, 1, 2, 3, 4, 5, 6, 7, 8)
}

func tod(s string) types.TimeOfDay {
	v, err := types.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return v
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func (s *EngineTestSuite) addRule(courtID uint, start, end string, price int64, priority int, days ...int) *models.PricingRule {
	rule, err := s.engine.AddPricingRule(s.ctx, PricingRuleInput{
		CourtID:      courtID,
		StartTime:    tod(start),
		EndTime:      tod(end),
		PricePerHour: decimal.NewFromInt(price),
		Priority:     priority,
		DaysOfWeek:   days,
	})
	s.Require().Nil(err)
	return rule
}

func (s *EngineTestSuite) book(method types.PaymentMethod, day, start, end string, days ...int) (*CreateBookingResult, error) {
	in := CreateBookingInput{
		CourtID:       s.court.ID,
		CustomerID:    42,
		StartDate:     date(day),
		StartTime:     tod(start),
		EndTime:       tod(end),
		PaymentMethod: method,
	}
	if len(days) > 0 {
		in.EndDate = date("2024-01-10")
		in.DaysOfWeek = types.NewDaySet(days...)
	}
	return s.engine.CreateBooking(s.ctx, in)
}

func (s *EngineTestSuite) TestQuoteSpansTwoRules() {
	q, err := s.engine.QuotePrice(s.ctx, s.court.ID, date("2024-01-01"), tod("16:00"), tod("18:00"))
	s.Nil(err)
	s.True(q.Total.Equal(decimal.NewFromInt(250)))
	s.Len(q.Segments, 2)
	s.Equal(tod("17:00"), q.Segments[0].End)
}

func (s *EngineTestSuite) TestCashBookingIsActiveAndPaid() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	s.Equal(types.BOOKING_ACTIVE, res.Booking.Status)
	s.Nil(res.Booking.HoldExpiresAt)
	s.True(res.Booking.TotalPrice.Equal(decimal.NewFromInt(250)))
	s.Require().Len(res.Occurrences, 1)
	s.Equal(types.OCCURRENCE_ACTIVE, res.Occurrences[0].Status)
	s.Require().NotNil(res.Payment)
	s.Equal(types.PAYMENT_PAID, res.Payment.Status)
	s.Equal(types.PAYMENT_TYPE_FULL, res.Payment.Type)
	s.Equal(initialPaymentReference(res.Booking.ID), res.Payment.Reference)
	s.Contains(s.notifier.Types(), EVENT_BOOKING_CREATED)
}

func (s *EngineTestSuite) TestRecurringMonWed() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:00", "10:00", 2, 4)
	s.Require().Nil(err)
	s.Require().Len(res.Occurrences, 4)
	got := []string{}
	for _, occ := range res.Occurrences {
		got = append(got, occ.Date.Format("2006-01-02"))
		s.Equal(tod("09:00"), occ.StartTime)
		s.Equal(res.Booking.ID, occ.BookingID)
	}
	s.Equal([]string{"2024-01-01", "2024-01-03", "2024-01-08", "2024-01-10"}, got)
	s.True(res.Booking.TotalPrice.Equal(decimal.NewFromInt(400)))
}

func (s *EngineTestSuite) TestConflictIsRejected() {
	_, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "17:00", "19:00")
	s.True(IsConflict(err))
	s.Contains(err.Error(), "2024-01-01 17:00-18:00")

	// Back-to-back is fine.
	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "18:00", "19:00")
	s.Nil(err)
}

func (s *EngineTestSuite) TestRecurringConflictsWithOneOff() {
	_, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-08", "09:00", "10:00")
	s.Require().Nil(err)

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:30", "10:30", 2)
	s.True(IsConflict(err))

	// Tuesdays do not touch the Monday booking.
	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:30", "10:30", 3)
	s.Nil(err)
}

func (s *EngineTestSuite) TestPricingGapLeavesNothingBehind() {
	bare, err := s.engine.CreateCourt(s.ctx, "Court 2", "")
	s.Require().Nil(err)
	s.addRule(bare.ID, "08:00", "12:00", 100, 1, 2)

	_, err = s.engine.CreateBooking(s.ctx, CreateBookingInput{
		CourtID:   bare.ID,
		StartDate: date("2024-01-01"),
		StartTime: tod("11:00"),
		EndTime:   tod("13:00"),
	})
	s.True(IsConfiguration(err))
	s.Contains(err.Error(), "12:00-13:00")

	_, err = s.engine.CreateBooking(s.ctx, CreateBookingInput{
		CourtID:   bare.ID,
		StartDate: date("2024-01-02"),
		StartTime: tod("09:00"),
		EndTime:   tod("10:00"),
	})
	s.True(IsConfiguration(err))
	s.Contains(err.Error(), "Tuesday")

	candidates, err := s.store.ListBlockingCandidates(s.ctx, bare.ID, date("2024-01-01"), date("2024-12-31"), 0)
	s.Nil(err)
	s.Len(candidates, 0)
}

func (s *EngineTestSuite) TestValidation() {
	_, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "18:00", "16:00")
	s.True(IsValidation(err))

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2023-12-31", "16:00", "18:00")
	s.True(IsValidation(err))

	// 07:00 today has already passed at 08:00.
	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "07:00", "09:00")
	s.True(IsValidation(err))

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00", 9)
	s.True(IsValidation(err))

	_, err = s.engine.CreateBooking(s.ctx, CreateBookingInput{
		CourtID:   s.court.ID,
		StartDate: date("2024-01-01"),
		EndDate:   date("2024-01-02"),
		StartTime: tod("16:00"),
		EndTime:   tod("18:00"),
	})
	s.True(IsValidation(err))
}

func (s *EngineTestSuite) TestImplicitHoldStopsBlocking() {
	held := &models.Booking{
		CourtID:       s.court.ID,
		StartDate:     date("2024-01-01"),
		EndDate:       date("2024-01-01"),
		StartTime:     tod("16:00"),
		EndTime:       tod("18:00"),
		Status:        types.BOOKING_PENDING_PAYMENT,
		PaymentMethod: types.PAYMENT_METHOD_TRANSFER,
	}
	held.CreatedAt = s.clock.Now()
	s.Require().Nil(s.store.CreateBooking(s.ctx, held))

	req := SlotRequest{
		CourtID:   s.court.ID,
		StartDate: date("2024-01-01"),
		EndDate:   date("2024-01-01"),
		StartTime: tod("16:00"),
		EndTime:   tod("18:00"),
	}
	conflict, err := s.engine.HasConflict(s.ctx, req)
	s.Nil(err)
	s.True(conflict)

	s.clock.Advance(16 * time.Minute)
	conflict, err = s.engine.HasConflict(s.ctx, req)
	s.Nil(err)
	s.False(conflict)
}

func (s *EngineTestSuite) TestConfirmPayment() {
	res, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	s.Equal(types.BOOKING_PENDING_PAYMENT, res.Booking.Status)
	s.Require().NotNil(res.Booking.HoldExpiresAt)
	s.Equal(monday.Add(15*time.Minute), *res.Booking.HoldExpiresAt)
	s.Equal(types.PAYMENT_PENDING, res.Payment.Status)

	booking, err := s.engine.ConfirmPayment(s.ctx, res.Booking.ID)
	s.Nil(err)
	s.Equal(types.BOOKING_ACTIVE, booking.Status)

	detail, err := s.engine.GetBooking(s.ctx, res.Booking.ID)
	s.Require().Nil(err)
	s.Equal(types.OCCURRENCE_ACTIVE, detail.Occurrences[0].Status)
	s.Equal(types.PAYMENT_PAID, detail.Payments[0].Status)
	s.Equal(types.PAYMENT_TYPE_FULL, detail.PaymentType)

	_, err = s.engine.ConfirmPayment(s.ctx, res.Booking.ID)
	s.Nil(err)
}

func (s *EngineTestSuite) TestLateConfirmationNeedsFreeSlot() {
	res, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)

	s.clock.Advance(20 * time.Minute)
	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "17:00", "18:00")
	s.Require().Nil(err)

	_, err = s.engine.ConfirmPayment(s.ctx, res.Booking.ID)
	s.True(IsConflict(err))
}

func (s *EngineTestSuite) TestDepositPayment() {
	res, err := s.engine.CreateBooking(s.ctx, CreateBookingInput{
		CourtID:        s.court.ID,
		StartDate:      date("2024-01-01"),
		StartTime:      tod("16:00"),
		EndTime:        tod("18:00"),
		PaymentMethod:  types.PAYMENT_METHOD_TRANSFER,
		DepositPercent: 30,
	})
	s.Require().Nil(err)
	s.True(res.Payment.Amount.Equal(decimal.NewFromInt(75)))
	s.Equal(types.PAYMENT_TYPE_DEPOSIT, res.Payment.Type)
}

func (s *EngineTestSuite) TestMembershipHoldScope() {
	res, err := s.engine.CreateBooking(s.ctx, CreateBookingInput{
		CourtID:       s.court.ID,
		StartDate:     date("2024-01-01"),
		StartTime:     tod("16:00"),
		EndTime:       tod("18:00"),
		PaymentMethod: types.PAYMENT_METHOD_TRANSFER,
		HoldScope:     types.HOLD_SCOPE_MEMBERSHIP,
	})
	s.Require().Nil(err)
	s.Equal(monday.Add(5*time.Minute), *res.Booking.HoldExpiresAt)
}

func (s *EngineTestSuite) TestHoldMinutesFromSettings() {
	_, err := s.engine.Settings.Save(s.ctx, models.SETTING_GROUP_BOOKING, models.SETTING_HOLD_MINUTES, 30)
	s.Require().Nil(err)

	res, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	s.Equal(monday.Add(30*time.Minute), *res.Booking.HoldExpiresAt)
}

func (s *EngineTestSuite) TestReconcilerExpiresHolds() {
	res, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	reconciler := NewHoldReconciler(s.store, s.clock, s.engine.Settings, s.notifier)

	next, err := reconciler.RunOnce(s.ctx)
	s.Nil(err)
	s.Require().NotNil(next)
	s.Equal(monday.Add(15*time.Minute), *next)

	s.clock.Advance(15 * time.Minute)
	next, err = reconciler.RunOnce(s.ctx)
	s.Nil(err)
	s.Nil(next)

	detail, err := s.engine.GetBooking(s.ctx, res.Booking.ID)
	s.Require().Nil(err)
	s.Equal(types.BOOKING_CANCELLED, detail.Status)
	s.Equal("hold expired", *detail.CancelReason)
	s.Equal(types.OCCURRENCE_CANCELLED, detail.Occurrences[0].Status)
	s.Equal(types.PAYMENT_CANCELLED, detail.Payments[0].Status)
	s.Contains(s.notifier.Types(), EVENT_BOOKING_EXPIRED)

	_, err = s.engine.ConfirmPayment(s.ctx, res.Booking.ID)
	s.True(IsTransition(err))
}

func (s *EngineTestSuite) TestCheckInAndCheckout() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	occID := res.Occurrences[0].ID

	s.clock.Advance(8 * time.Hour)
	occ, err := s.engine.CheckIn(s.ctx, occID)
	s.Require().Nil(err)
	s.Equal(types.OCCURRENCE_CHECKED_IN, occ.Status)
	court, _ := s.store.GetCourt(s.ctx, s.court.ID)
	s.Equal(types.COURT_IN_USE, court.Status)

	_, err = s.engine.AddItem(s.ctx, occID, ItemInput{ProductID: 3, Name: "Shuttlecock", Quantity: 2, UnitPrice: decimal.NewFromInt(15)})
	s.Nil(err)
	_, err = s.engine.StartService(s.ctx, occID, ServiceInput{ServiceID: 5, Name: "Coach", Quantity: 1, UnitPrice: decimal.NewFromInt(100)})
	s.Nil(err)

	_, err = s.engine.CancelBooking(s.ctx, res.Booking.ID, "changed plans")
	s.True(IsValidation(err))

	// 18:40: 40 minutes over, 25 chargeable.
	s.clock.Advance(2*time.Hour + 40*time.Minute)
	quote, err := s.engine.QuoteCheckout(s.ctx, occID)
	s.Require().Nil(err)
	s.Equal(40, quote.OverdueMinutes)
	s.Equal(25, quote.ChargeableMinutes)
	s.True(quote.LateFeeAmount.Equal(decimal.NewFromInt(1000)))
	s.True(quote.ItemsSubtotal.Equal(decimal.NewFromInt(30)))
	s.Require().Len(quote.Services, 1)
	s.Equal(int64(3), quote.Services[0].Hours)
	s.True(quote.ServicesSubtotal.Equal(decimal.NewFromInt(1000)))
	s.True(quote.Total.Equal(decimal.NewFromInt(2280)))
	s.True(quote.Credited.Equal(decimal.NewFromInt(250)))
	s.True(quote.Balance.Equal(decimal.NewFromInt(2030)))

	out, err := s.engine.CheckOut(s.ctx, occID, "")
	s.Require().Nil(err)
	s.Equal(types.OCCURRENCE_COMPLETED, out.Occurrence.Status)
	s.Equal(40, out.Occurrence.OverdueMinutes)
	s.True(out.Occurrence.TotalAmount.Equal(decimal.NewFromInt(2280)))
	s.Require().NotNil(out.Payment)
	s.Equal(types.PAYMENT_KIND_CHECKOUT, out.Payment.Kind)
	s.Equal(types.PAYMENT_PAID, out.Payment.Status)
	s.True(out.Payment.Amount.Equal(decimal.NewFromInt(2030)))
	s.Require().Len(out.Occurrence.ServiceUsages, 1)
	s.NotNil(out.Occurrence.ServiceUsages[0].EndedAt)

	court, _ = s.store.GetCourt(s.ctx, s.court.ID)
	s.Equal(types.COURT_ACTIVE, court.Status)
	booking, _ := s.store.GetBooking(s.ctx, res.Booking.ID)
	s.Equal(types.BOOKING_COMPLETED, booking.Status)
	s.Contains(s.notifier.Types(), EVENT_BOOKING_COMPLETED)

	_, err = s.engine.CheckOut(s.ctx, occID, "")
	s.True(IsTransition(err))
}

func (s *EngineTestSuite) TestCheckoutWithinGraceHasNoFee() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)
	s.clock.Advance(8 * time.Hour)
	_, err = s.engine.CheckIn(s.ctx, res.Occurrences[0].ID)
	s.Require().Nil(err)

	s.clock.Advance(2*time.Hour + 15*time.Minute)
	out, err := s.engine.CheckOut(s.ctx, res.Occurrences[0].ID, "")
	s.Require().Nil(err)
	s.Equal(15, out.Summary.OverdueMinutes)
	s.True(out.Summary.LateFeeAmount.IsZero())
	s.True(out.Summary.Balance.IsZero())
	s.Nil(out.Payment)
}

func (s *EngineTestSuite) TestCourtStaysInUseWhileAnotherSessionRuns() {
	a, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:00", "10:00")
	s.Require().Nil(err)
	b, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "10:00", "11:00")
	s.Require().Nil(err)

	s.clock.Advance(time.Hour)
	_, err = s.engine.CheckIn(s.ctx, a.Occurrences[0].ID)
	s.Require().Nil(err)
	_, err = s.engine.CheckIn(s.ctx, b.Occurrences[0].ID)
	s.Require().Nil(err)

	_, err = s.engine.CheckOut(s.ctx, a.Occurrences[0].ID, "")
	s.Require().Nil(err)
	court, _ := s.store.GetCourt(s.ctx, s.court.ID)
	s.Equal(types.COURT_IN_USE, court.Status)

	_, err = s.engine.CheckOut(s.ctx, b.Occurrences[0].ID, "")
	s.Require().Nil(err)
	court, _ = s.store.GetCourt(s.ctx, s.court.ID)
	s.Equal(types.COURT_ACTIVE, court.Status)
}

func (s *EngineTestSuite) TestMaintenanceBlocksBookingAndCheckIn() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:00", "10:00")
	s.Require().Nil(err)

	_, err = s.engine.ChangeCourtStatus(s.ctx, s.court.ID, ACTION_MAINTENANCE)
	s.Require().Nil(err)

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "12:00", "13:00")
	s.True(IsValidation(err))
	_, err = s.engine.CheckIn(s.ctx, res.Occurrences[0].ID)
	s.True(IsValidation(err))

	_, err = s.engine.ChangeCourtStatus(s.ctx, s.court.ID, ACTION_RELEASE)
	s.True(IsTransition(err))
	_, err = s.engine.ChangeCourtStatus(s.ctx, s.court.ID, ACTION_ACTIVATE)
	s.Nil(err)
}

func (s *EngineTestSuite) TestSweepNoShows() {
	early, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:00", "10:00")
	s.Require().Nil(err)
	late, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)

	s.clock.Advance(2*time.Hour + 15*time.Minute)
	n, err := s.engine.SweepNoShows(s.ctx)
	s.Nil(err)
	s.Equal(1, n)

	occ, _ := s.store.GetOccurrence(s.ctx, early.Occurrences[0].ID)
	s.Equal(types.OCCURRENCE_NO_SHOW, occ.Status)
	occ, _ = s.store.GetOccurrence(s.ctx, late.Occurrences[0].ID)
	s.Equal(types.OCCURRENCE_ACTIVE, occ.Status)
	booking, _ := s.store.GetBooking(s.ctx, early.Booking.ID)
	s.Equal(types.BOOKING_COMPLETED, booking.Status)
}

func (s *EngineTestSuite) TestCancelOccurrencesCancelsBooking() {
	res, err := s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "09:00", "10:00", 2)
	s.Require().Nil(err)
	s.Require().Len(res.Occurrences, 2)

	_, err = s.engine.CancelOccurrence(s.ctx, res.Occurrences[0].ID)
	s.Nil(err)
	booking, _ := s.store.GetBooking(s.ctx, res.Booking.ID)
	s.Equal(types.BOOKING_ACTIVE, booking.Status)

	_, err = s.engine.CancelOccurrence(s.ctx, res.Occurrences[1].ID)
	s.Nil(err)
	booking, _ = s.store.GetBooking(s.ctx, res.Booking.ID)
	s.Equal(types.BOOKING_CANCELLED, booking.Status)
}

func (s *EngineTestSuite) TestCancelBooking() {
	res, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
	s.Require().Nil(err)

	booking, err := s.engine.CancelBooking(s.ctx, res.Booking.ID, "rain")
	s.Require().Nil(err)
	s.Equal(types.BOOKING_CANCELLED, booking.Status)

	detail, _ := s.engine.GetBooking(s.ctx, res.Booking.ID)
	s.Equal(types.OCCURRENCE_CANCELLED, detail.Occurrences[0].Status)
	s.Equal(types.PAYMENT_CANCELLED, detail.Payments[0].Status)

	_, err = s.book(types.PAYMENT_METHOD_CASH, "2024-01-01", "16:00", "18:00")
	s.Nil(err)

	_, err = s.engine.CancelBooking(s.ctx, res.Booking.ID, "")
	s.True(IsTransition(err))
}

func (s *EngineTestSuite) TestConcurrentBookingsForSameSlot() {
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, conflicts := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.book(types.PAYMENT_METHOD_TRANSFER, "2024-01-01", "16:00", "18:00")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()
	s.Equal(1, ok)
	s.Equal(9, conflicts)
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestNotFound(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), clockwork.NewFakeClockAt(monday))
	_, err := engine.GetBooking(context.Background(), 99)
	assert.True(t, IsNotFound(err))
	_, err = engine.QuotePrice(context.Background(), 99, monday, 600, 660)
	assert.True(t, IsNotFound(err))
}
