package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/types"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memData struct {
	seq           uint
	courts        map[uint]models.Court
	rules         map[uint]models.PricingRule
	bookings      map[uint]models.Booking
	occurrences   map[uint]models.Occurrence
	items         map[uint]models.OccurrenceItem
	usages        map[uint]models.ServiceUsage
	payments      map[uuid.UUID]models.Payment
	settings      map[string]models.Setting
	notifications []models.Notification
}

func (d *memData) clone() *memData {
	return &memData{
		seq:           d.seq,
		courts:        maps.Clone(d.courts),
		rules:         maps.Clone(d.rules),
		bookings:      maps.Clone(d.bookings),
		occurrences:   maps.Clone(d.occurrences),
		items:         maps.Clone(d.items),
		usages:        maps.Clone(d.usages),
		payments:      maps.Clone(d.payments),
		settings:      maps.Clone(d.settings),
		notifications: slices.Clone(d.notifications),
	}
}

func (d *memData) nextID() uint {
	d.seq++
	return d.seq
}

// MemoryStore keeps everything in process. It backs STORE_DRIVER=memory and the engine tests.
// A transaction holds the store mutex for its whole duration and restores a snapshot on error.
type MemoryStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		data: &memData{
			courts:      map[uint]models.Court{},
			rules:       map[uint]models.PricingRule{},
			bookings:    map[uint]models.Booking{},
			occurrences: map[uint]models.Occurrence{},
			items:       map[uint]models.OccurrenceItem{},
			usages:      map[uint]models.ServiceUsage{},
			payments:    map[uuid.UUID]models.Payment{},
			settings:    map[string]models.Setting{},
		},
		now: time.Now,
	}
}

// WithNow sets the clock used for CreatedAt and UpdatedAt defaults.
func (m *MemoryStore) WithNow(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) stamp(ts *types.Timestamps) {
	now := m.now().UTC()
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
}

func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	tx := &MemoryStore{mu: m.mu, data: m.data, inTx: true, now: m.now}
	if err := fn(tx); err != nil {
		*m.data = *snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) CreateCourt(ctx context.Context, court *models.Court) error {
	defer m.lock()()
	court.ID = m.data.nextID()
	if court.Status == "" {
		court.Status = types.COURT_ACTIVE
	}
	m.stamp(&court.Timestamps)
	m.data.courts[court.ID] = *court
	return nil
}

func (m *MemoryStore) GetCourt(ctx context.Context, id uint) (*models.Court, error) {
	defer m.lock()()
	court, ok := m.data.courts[id]
	if !ok {
		return nil, NotFoundError{Resource: "court", ID: id}
	}
	return &court, nil
}

func (m *MemoryStore) LockCourt(ctx context.Context, id uint) (*models.Court, error) {
	return m.GetCourt(ctx, id)
}

func (m *MemoryStore) ListCourts(ctx context.Context) ([]*models.Court, error) {
	defer m.lock()()
	courts := []*models.Court{}
	for _, c := range m.data.courts {
		if c.Status == types.COURT_DELETED {
			continue
		}
		court := c
		courts = append(courts, &court)
	}
	sort.Slice(courts, func(i, j int) bool { return courts[i].ID < courts[j].ID })
	return courts, nil
}

func (m *MemoryStore) UpdateCourtStatus(ctx context.Context, id uint, from []types.CourtStatus, to types.CourtStatus) (bool, error) {
	defer m.lock()()
	court, ok := m.data.courts[id]
	if !ok || !slices.Contains(from, court.Status) {
		return false, nil
	}
	court.Status = to
	m.stamp(&court.Timestamps)
	m.data.courts[id] = court
	return true, nil
}

func (m *MemoryStore) CreatePricingRule(ctx context.Context, rule *models.PricingRule) error {
	defer m.lock()()
	rule.ID = m.data.nextID()
	m.stamp(&rule.Timestamps)
	m.data.rules[rule.ID] = *rule
	return nil
}

func (m *MemoryStore) ListPricingRules(ctx context.Context, courtID uint) ([]*models.PricingRule, error) {
	defer m.lock()()
	rules := []*models.PricingRule{}
	for _, r := range m.data.rules {
		if r.CourtID != courtID {
			continue
		}
		rule := r
		rules = append(rules, &rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})
	return rules, nil
}

func (m *MemoryStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	defer m.lock()()
	booking.ID = m.data.nextID()
	m.stamp(&booking.Timestamps)
	stored := *booking
	stored.Court = nil
	stored.Occurrences = nil
	stored.Payments = nil
	m.data.bookings[booking.ID] = stored
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	defer m.lock()()
	booking, ok := m.data.bookings[id]
	if !ok {
		return nil, NotFoundError{Resource: "booking", ID: id}
	}
	return &booking, nil
}

func (m *MemoryStore) ListBlockingCandidates(ctx context.Context, courtID uint, from, to time.Time, excludeID uint) ([]*models.Booking, error) {
	defer m.lock()()
	out := []*models.Booking{}
	for _, b := range m.data.bookings {
		if b.CourtID != courtID || b.ID == excludeID {
			continue
		}
		if b.Status != types.BOOKING_ACTIVE && b.Status != types.BOOKING_PENDING_PAYMENT {
			continue
		}
		if b.StartDate.After(to) || b.EndDate.Before(from) {
			continue
		}
		booking := b
		out = append(out, &booking)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, id uint, from []types.BookingStatus, to types.BookingStatus, reason *string) (bool, error) {
	defer m.lock()()
	booking, ok := m.data.bookings[id]
	if !ok || !slices.Contains(from, booking.Status) {
		return false, nil
	}
	booking.Status = to
	if reason != nil {
		r := *reason
		booking.CancelReason = &r
	}
	m.stamp(&booking.Timestamps)
	m.data.bookings[id] = booking
	return true, nil
}

func (m *MemoryStore) ExpireHolds(ctx context.Context, now time.Time, holdMinutes int) ([]uint, error) {
	defer m.lock()()
	ids := []uint{}
	reason := "hold expired"
	from, to := bookingRule(ACTION_EXPIRE)
	for id, b := range m.data.bookings {
		if !slices.Contains(from, b.Status) {
			continue
		}
		if now.Before(b.HoldDeadline(holdMinutes)) {
			continue
		}
		b.Status = to
		b.CancelReason = &reason
		m.stamp(&b.Timestamps)
		m.data.bookings[id] = b
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MemoryStore) NextHoldExpiry(ctx context.Context, holdMinutes int) (*time.Time, error) {
	defer m.lock()()
	var next *time.Time
	for _, b := range m.data.bookings {
		if b.Status != types.BOOKING_PENDING_PAYMENT {
			continue
		}
		deadline := b.HoldDeadline(holdMinutes)
		if next == nil || deadline.Before(*next) {
			next = &deadline
		}
	}
	return next, nil
}

func (m *MemoryStore) CreateOccurrences(ctx context.Context, occurrences []*models.Occurrence) error {
	defer m.lock()()
	for _, occ := range occurrences {
		occ.ID = m.data.nextID()
		m.stamp(&occ.Timestamps)
		stored := *occ
		stored.Booking = nil
		stored.Items = nil
		stored.ServiceUsages = nil
		m.data.occurrences[occ.ID] = stored
	}
	return nil
}

func (m *MemoryStore) GetOccurrence(ctx context.Context, id uint) (*models.Occurrence, error) {
	defer m.lock()()
	occ, ok := m.data.occurrences[id]
	if !ok {
		return nil, NotFoundError{Resource: "occurrence", ID: id}
	}
	for _, it := range m.data.items {
		if it.OccurrenceID == id {
			item := it
			occ.Items = append(occ.Items, &item)
		}
	}
	sort.Slice(occ.Items, func(i, j int) bool { return occ.Items[i].LineNo < occ.Items[j].LineNo })
	for _, u := range m.data.usages {
		if u.OccurrenceID == id {
			usage := u
			occ.ServiceUsages = append(occ.ServiceUsages, &usage)
		}
	}
	sort.Slice(occ.ServiceUsages, func(i, j int) bool { return occ.ServiceUsages[i].ID < occ.ServiceUsages[j].ID })
	return &occ, nil
}

func (m *MemoryStore) ListOccurrences(ctx context.Context, bookingID uint) ([]*models.Occurrence, error) {
	defer m.lock()()
	out := []*models.Occurrence{}
	for _, o := range m.data.occurrences {
		if o.BookingID == bookingID {
			occ := o
			out = append(out, &occ)
		}
	}
	sortOccurrences(out)
	return out, nil
}

func sortOccurrences(occs []*models.Occurrence) {
	sort.Slice(occs, func(i, j int) bool {
		if !occs[i].Date.Equal(occs[j].Date) {
			return occs[i].Date.Before(occs[j].Date)
		}
		return occs[i].ID < occs[j].ID
	})
}

func (m *MemoryStore) ListOccurrencesByStatus(ctx context.Context, status types.OccurrenceStatus, onOrBefore time.Time, limit int) ([]*models.Occurrence, error) {
	defer m.lock()()
	out := []*models.Occurrence{}
	for _, o := range m.data.occurrences {
		if o.Status == status && !o.Date.After(onOrBefore) {
			occ := o
			out = append(out, &occ)
		}
	}
	sortOccurrences(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountCheckedIn(ctx context.Context, courtID uint, excludeID uint) (int64, error) {
	defer m.lock()()
	var count int64
	for _, o := range m.data.occurrences {
		if o.CourtID == courtID && o.ID != excludeID && o.Status == types.OCCURRENCE_CHECKED_IN {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) UpdateOccurrence(ctx context.Context, id uint, from []types.OccurrenceStatus, update OccurrenceUpdate) (bool, error) {
	defer m.lock()()
	occ, ok := m.data.occurrences[id]
	if !ok || !slices.Contains(from, occ.Status) {
		return false, nil
	}
	occ.Status = update.Status
	if update.CheckedInAt != nil {
		t := *update.CheckedInAt
		occ.CheckedInAt = &t
	}
	if update.CheckedOutAt != nil {
		t := *update.CheckedOutAt
		occ.CheckedOutAt = &t
	}
	if update.OverdueMinutes != nil {
		occ.OverdueMinutes = *update.OverdueMinutes
	}
	if update.CourtAmount != nil {
		occ.CourtAmount = *update.CourtAmount
	}
	if update.LateFeeAmount != nil {
		occ.LateFeeAmount = *update.LateFeeAmount
	}
	if update.TotalAmount != nil {
		occ.TotalAmount = *update.TotalAmount
	}
	m.stamp(&occ.Timestamps)
	m.data.occurrences[id] = occ
	return true, nil
}

func (m *MemoryStore) UpdateOccurrencesOfBookings(ctx context.Context, bookingIDs []uint, from []types.OccurrenceStatus, to types.OccurrenceStatus) (int64, error) {
	defer m.lock()()
	var n int64
	for id, o := range m.data.occurrences {
		if !slices.Contains(bookingIDs, o.BookingID) || !slices.Contains(from, o.Status) {
			continue
		}
		o.Status = to
		m.stamp(&o.Timestamps)
		m.data.occurrences[id] = o
		n++
	}
	return n, nil
}

func (m *MemoryStore) AddItem(ctx context.Context, item *models.OccurrenceItem) error {
	defer m.lock()()
	last := 0
	for _, it := range m.data.items {
		if it.OccurrenceID == item.OccurrenceID && it.LineNo > last {
			last = it.LineNo
		}
	}
	item.ID = m.data.nextID()
	item.LineNo = last + 1
	m.stamp(&item.Timestamps)
	m.data.items[item.ID] = *item
	return nil
}

func (m *MemoryStore) AddServiceUsage(ctx context.Context, usage *models.ServiceUsage) error {
	defer m.lock()()
	usage.ID = m.data.nextID()
	m.stamp(&usage.Timestamps)
	m.data.usages[usage.ID] = *usage
	return nil
}

func (m *MemoryStore) GetServiceUsage(ctx context.Context, id uint) (*models.ServiceUsage, error) {
	defer m.lock()()
	usage, ok := m.data.usages[id]
	if !ok {
		return nil, NotFoundError{Resource: "service usage", ID: id}
	}
	return &usage, nil
}

func (m *MemoryStore) EndServiceUsage(ctx context.Context, id uint, endedAt time.Time) (bool, error) {
	defer m.lock()()
	usage, ok := m.data.usages[id]
	if !ok || usage.EndedAt != nil {
		return false, nil
	}
	usage.EndedAt = &endedAt
	m.stamp(&usage.Timestamps)
	m.data.usages[id] = usage
	return true, nil
}

func (m *MemoryStore) EndRunningServices(ctx context.Context, occurrenceID uint, endedAt time.Time) error {
	defer m.lock()()
	for id, u := range m.data.usages {
		if u.OccurrenceID == occurrenceID && u.EndedAt == nil {
			t := endedAt
			u.EndedAt = &t
			m.stamp(&u.Timestamps)
			m.data.usages[id] = u
		}
	}
	return nil
}

func (m *MemoryStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	defer m.lock()()
	for _, p := range m.data.payments {
		if p.Reference == payment.Reference {
			return ConflictError{Msg: "duplicate payment reference " + payment.Reference}
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	m.stamp(&payment.Timestamps)
	m.data.payments[payment.ID] = *payment
	return nil
}

func (m *MemoryStore) findPayment(match func(p *models.Payment) bool) (*models.Payment, bool) {
	for _, p := range m.data.payments {
		payment := p
		if match(&payment) {
			return &payment, true
		}
	}
	return nil, false
}

func (m *MemoryStore) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	defer m.lock()()
	p, ok := m.findPayment(func(p *models.Payment) bool { return p.Reference == reference })
	if !ok {
		return nil, NotFoundError{Resource: "payment", ID: reference}
	}
	return p, nil
}

func (m *MemoryStore) FindPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	defer m.lock()()
	p, ok := m.findPayment(func(p *models.Payment) bool {
		return p.CheckoutSessionID != nil && *p.CheckoutSessionID == sessionID
	})
	if !ok {
		return nil, NotFoundError{Resource: "payment", ID: sessionID}
	}
	return p, nil
}

func (m *MemoryStore) ListPayments(ctx context.Context, bookingID uint) ([]*models.Payment, error) {
	defer m.lock()()
	out := []*models.Payment{}
	for _, p := range m.data.payments {
		if p.BookingID == bookingID {
			payment := p
			out = append(out, &payment)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Kind == types.PAYMENT_KIND_INITIAL && out[j].Kind != types.PAYMENT_KIND_INITIAL
	})
	return out, nil
}

func (m *MemoryStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (bool, error) {
	defer m.lock()()
	p, ok := m.data.payments[id]
	if !ok || !slices.Contains(from, p.Status) {
		return false, nil
	}
	p.Status = to
	if paidAt != nil {
		t := *paidAt
		p.PaidAt = &t
	}
	m.stamp(&p.Timestamps)
	m.data.payments[id] = p
	return true, nil
}

func (m *MemoryStore) UpdatePaymentsOfBookings(ctx context.Context, bookingIDs []uint, kind types.PaymentKind, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (int64, error) {
	defer m.lock()()
	var n int64
	for id, p := range m.data.payments {
		if !slices.Contains(bookingIDs, p.BookingID) || !slices.Contains(from, p.Status) {
			continue
		}
		if kind != "" && p.Kind != kind {
			continue
		}
		p.Status = to
		if paidAt != nil {
			t := *paidAt
			p.PaidAt = &t
		}
		m.stamp(&p.Timestamps)
		m.data.payments[id] = p
		n++
	}
	return n, nil
}

func settingKey(group, key string) string {
	return group + "." + key
}

func (m *MemoryStore) GetSetting(ctx context.Context, group, key string) (*models.Setting, error) {
	defer m.lock()()
	s, ok := m.data.settings[settingKey(group, key)]
	if !ok {
		return nil, NotFoundError{Resource: "setting", ID: settingKey(group, key)}
	}
	return &s, nil
}

func (m *MemoryStore) SaveSetting(ctx context.Context, setting *models.Setting) error {
	defer m.lock()()
	k := settingKey(setting.Group, setting.SettingKey)
	if existing, ok := m.data.settings[k]; ok {
		setting.ID = existing.ID
		setting.CreatedAt = existing.CreatedAt
	}
	if setting.ID == uuid.Nil {
		setting.ID = uuid.New()
	}
	m.stamp(&setting.Timestamps)
	m.data.settings[k] = *setting
	return nil
}

func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	defer m.lock()()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	m.stamp(&n.Timestamps)
	m.data.notifications = append(m.data.notifications, *n)
	return nil
}

// Notifications returns the persisted broadcast log.
func (m *MemoryStore) Notifications() []models.Notification {
	defer m.lock()()
	return slices.Clone(m.data.notifications)
}
