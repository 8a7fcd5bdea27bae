package common

import (
	"context"
	"courtbook/src/models"
	"courtbook/src/models/scopes"
	"courtbook/src/types"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError{Resource: resource, ID: id}
	}
	return err
}

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) CreateCourt(ctx context.Context, court *models.Court) error {
	return s.conn(ctx).Create(court).Error
}

func (s *GormStore) GetCourt(ctx context.Context, id uint) (*models.Court, error) {
	var court models.Court
	if err := s.conn(ctx).Scopes(scopes.WithID(id)).First(&court).Error; err != nil {
		return nil, notFound(err, "court", id)
	}
	return &court, nil
}

func (s *GormStore) LockCourt(ctx context.Context, id uint) (*models.Court, error) {
	var court models.Court
	if err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(scopes.WithID(id)).
		First(&court).
		Error; err != nil {
		return nil, notFound(err, "court", id)
	}
	return &court, nil
}

func (s *GormStore) ListCourts(ctx context.Context) ([]*models.Court, error) {
	var courts []*models.Court
	err := s.conn(ctx).
		Where("status <> ?", types.COURT_DELETED).
		Order("id").
		Find(&courts).
		Error
	return courts, err
}

func (s *GormStore) UpdateCourtStatus(ctx context.Context, id uint, from []types.CourtStatus, to types.CourtStatus) (bool, error) {
	res := s.conn(ctx).
		Model(&models.Court{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(from...)).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) CreatePricingRule(ctx context.Context, rule *models.PricingRule) error {
	return s.conn(ctx).Create(rule).Error
}

func (s *GormStore) ListPricingRules(ctx context.Context, courtID uint) ([]*models.PricingRule, error) {
	var rules []*models.PricingRule
	err := s.conn(ctx).
		Scopes(scopes.WithCourt(courtID)).
		Order("priority ASC, id ASC").
		Find(&rules).
		Error
	return rules, err
}

func (s *GormStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return s.conn(ctx).Omit(clause.Associations).Create(booking).Error
}

func (s *GormStore) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.conn(ctx).Scopes(scopes.WithID(id)).First(&booking).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &booking, nil
}

func (s *GormStore) ListBlockingCandidates(ctx context.Context, courtID uint, from, to time.Time, excludeID uint) ([]*models.Booking, error) {
	var bookings []*models.Booking
	q := s.conn(ctx).
		Scopes(
			scopes.WithCourt(courtID),
			scopes.WithStatus(types.BOOKING_ACTIVE, types.BOOKING_PENDING_PAYMENT),
			scopes.OverlappingDates(from, to),
		)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Order("id").Find(&bookings).Error
	return bookings, err
}

func (s *GormStore) UpdateBookingStatus(ctx context.Context, id uint, from []types.BookingStatus, to types.BookingStatus, reason *string) (bool, error) {
	changes := map[string]any{"status": to}
	if reason != nil {
		changes["cancel_reason"] = *reason
	}
	res := s.conn(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(from...)).
		Updates(changes)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) expiredHolds(ctx context.Context, now time.Time, holdMinutes int) *gorm.DB {
	cutoff := now.Add(-time.Duration(holdMinutes) * time.Minute)
	return s.conn(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithStatus(types.BOOKING_PENDING_PAYMENT)).
		Where("(hold_expires_at IS NOT NULL AND hold_expires_at <= ?) OR (hold_expires_at IS NULL AND created_at <= ?)", now, cutoff)
}

func (s *GormStore) ExpireHolds(ctx context.Context, now time.Time, holdMinutes int) ([]uint, error) {
	var ids []uint
	if err := s.expiredHolds(ctx, now, holdMinutes).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Pluck("id", &ids).
		Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	from, to := bookingRule(ACTION_EXPIRE)
	if err := s.conn(ctx).
		Model(&models.Booking{}).
		Scopes(scopes.WithIDs(ids...), scopes.WithStatus(from...)).
		Updates(map[string]any{"status": to, "cancel_reason": "hold expired"}).
		Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) NextHoldExpiry(ctx context.Context, holdMinutes int) (*time.Time, error) {
	var row struct {
		Explicit *time.Time
		Implicit *time.Time
	}
	err := s.conn(ctx).
		Model(&models.Booking{}).
		Select("MIN(hold_expires_at) AS explicit, MIN(CASE WHEN hold_expires_at IS NULL THEN created_at END) AS implicit").
		Scopes(scopes.WithStatus(types.BOOKING_PENDING_PAYMENT)).
		Scan(&row).
		Error
	if err != nil {
		return nil, err
	}
	var next *time.Time
	if row.Explicit != nil {
		t := row.Explicit.UTC()
		next = &t
	}
	if row.Implicit != nil {
		t := row.Implicit.UTC().Add(time.Duration(holdMinutes) * time.Minute)
		if next == nil || t.Before(*next) {
			next = &t
		}
	}
	return next, nil
}

func (s *GormStore) CreateOccurrences(ctx context.Context, occurrences []*models.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	return s.conn(ctx).Omit(clause.Associations).CreateInBatches(occurrences, 100).Error
}

func (s *GormStore) GetOccurrence(ctx context.Context, id uint) (*models.Occurrence, error) {
	var occ models.Occurrence
	if err := s.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		Preload("ServiceUsages", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Scopes(scopes.WithID(id)).
		First(&occ).
		Error; err != nil {
		return nil, notFound(err, "occurrence", id)
	}
	return &occ, nil
}

func (s *GormStore) ListOccurrences(ctx context.Context, bookingID uint) ([]*models.Occurrence, error) {
	var occs []*models.Occurrence
	err := s.conn(ctx).
		Scopes(scopes.WithBookingIDs(bookingID)).
		Order("date, id").
		Find(&occs).
		Error
	return occs, err
}

func (s *GormStore) ListOccurrencesByStatus(ctx context.Context, status types.OccurrenceStatus, onOrBefore time.Time, limit int) ([]*models.Occurrence, error) {
	var occs []*models.Occurrence
	q := s.conn(ctx).
		Scopes(scopes.WithStatus(status)).
		Where("date <= ?", onOrBefore).
		Order("date, end_time, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&occs).Error
	return occs, err
}

func (s *GormStore) CountCheckedIn(ctx context.Context, courtID uint, excludeID uint) (int64, error) {
	var count int64
	err := s.conn(ctx).
		Model(&models.Occurrence{}).
		Scopes(scopes.WithCourt(courtID), scopes.WithStatus(types.OCCURRENCE_CHECKED_IN)).
		Where("id <> ?", excludeID).
		Count(&count).
		Error
	return count, err
}

func (s *GormStore) UpdateOccurrence(ctx context.Context, id uint, from []types.OccurrenceStatus, update OccurrenceUpdate) (bool, error) {
	changes := map[string]any{"status": update.Status}
	if update.CheckedInAt != nil {
		changes["checked_in_at"] = *update.CheckedInAt
	}
	if update.CheckedOutAt != nil {
		changes["checked_out_at"] = *update.CheckedOutAt
	}
	if update.OverdueMinutes != nil {
		changes["overdue_minutes"] = *update.OverdueMinutes
	}
	if update.CourtAmount != nil {
		changes["court_amount"] = *update.CourtAmount
	}
	if update.LateFeeAmount != nil {
		changes["late_fee_amount"] = *update.LateFeeAmount
	}
	if update.TotalAmount != nil {
		changes["total_amount"] = *update.TotalAmount
	}
	res := s.conn(ctx).
		Model(&models.Occurrence{}).
		Scopes(scopes.WithID(id), scopes.WithStatus(from...)).
		Updates(changes)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) UpdateOccurrencesOfBookings(ctx context.Context, bookingIDs []uint, from []types.OccurrenceStatus, to types.OccurrenceStatus) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).
		Model(&models.Occurrence{}).
		Scopes(scopes.WithBookingIDs(bookingIDs...), scopes.WithStatus(from...)).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (s *GormStore) AddItem(ctx context.Context, item *models.OccurrenceItem) error {
	var last int
	if err := s.conn(ctx).
		Model(&models.OccurrenceItem{}).
		Where("occurrence_id = ?", item.OccurrenceID).
		Select("COALESCE(MAX(line_no), 0)").
		Scan(&last).
		Error; err != nil {
		return err
	}
	item.LineNo = last + 1
	return s.conn(ctx).Create(item).Error
}

func (s *GormStore) AddServiceUsage(ctx context.Context, usage *models.ServiceUsage) error {
	return s.conn(ctx).Create(usage).Error
}

func (s *GormStore) GetServiceUsage(ctx context.Context, id uint) (*models.ServiceUsage, error) {
	var usage models.ServiceUsage
	if err := s.conn(ctx).Scopes(scopes.WithID(id)).First(&usage).Error; err != nil {
		return nil, notFound(err, "service usage", id)
	}
	return &usage, nil
}

func (s *GormStore) EndServiceUsage(ctx context.Context, id uint, endedAt time.Time) (bool, error) {
	res := s.conn(ctx).
		Model(&models.ServiceUsage{}).
		Scopes(scopes.WithID(id)).
		Where("ended_at IS NULL").
		Update("ended_at", endedAt)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) EndRunningServices(ctx context.Context, occurrenceID uint, endedAt time.Time) error {
	return s.conn(ctx).
		Model(&models.ServiceUsage{}).
		Where("occurrence_id = ? AND ended_at IS NULL", occurrenceID).
		Update("ended_at", endedAt).
		Error
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return s.conn(ctx).Create(payment).Error
}

func (s *GormStore) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.conn(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, notFound(err, "payment", reference)
	}
	return &payment, nil
}

func (s *GormStore) FindPaymentByCheckoutSession(ctx context.Context, sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.conn(ctx).Where("checkout_session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, notFound(err, "payment", sessionID)
	}
	return &payment, nil
}

func (s *GormStore) ListPayments(ctx context.Context, bookingID uint) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := s.conn(ctx).
		Scopes(scopes.WithBookingIDs(bookingID)).
		Order("created_at ASC").
		Find(&payments).
		Error
	return payments, err
}

func (s *GormStore) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (bool, error) {
	changes := map[string]any{"status": to}
	if paidAt != nil {
		changes["paid_at"] = *paidAt
	}
	res := s.conn(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Scopes(scopes.WithStatus(from...)).
		Updates(changes)
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) UpdatePaymentsOfBookings(ctx context.Context, bookingIDs []uint, kind types.PaymentKind, from []types.PaymentStatus, to types.PaymentStatus, paidAt *time.Time) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, nil
	}
	changes := map[string]any{"status": to}
	if paidAt != nil {
		changes["paid_at"] = *paidAt
	}
	q := s.conn(ctx).
		Model(&models.Payment{}).
		Scopes(scopes.WithBookingIDs(bookingIDs...), scopes.WithStatus(from...))
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	res := q.Updates(changes)
	return res.RowsAffected, res.Error
}

func (s *GormStore) GetSetting(ctx context.Context, group, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.conn(ctx).
		Where(&models.Setting{Group: group, SettingKey: key}).
		First(&setting).
		Error; err != nil {
		return nil, notFound(err, "setting", group+"."+key)
	}
	return &setting, nil
}

func (s *GormStore) SaveSetting(ctx context.Context, setting *models.Setting) error {
	if setting.ID == uuid.Nil {
		setting.ID = uuid.New()
	}
	return s.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}, {Name: "group"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).
		Create(setting).
		Error
}

func (s *GormStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return s.conn(ctx).Create(n).Error
}
