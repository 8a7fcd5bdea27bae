package common

import (
	"context"
	"courtbook/src/types"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	return NewGormStore(gormDB), mock
}

func TestGormGetCourtNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "courts" WHERE .*id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}))

	_, err := store.GetCourt(context.Background(), 7)
	assert.True(t, IsNotFound(err))
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGormLockCourt(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "courts" WHERE .*id = \$1.*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status"}).AddRow(1, "Court 1", "in_use"))

	court, err := store.LockCourt(context.Background(), 1)
	assert.Nil(t, err)
	assert.Equal(t, types.COURT_IN_USE, court.Status)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGormConditionalStatusUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "bookings" SET .*id = \$\d+ AND status IN \(\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "bookings" SET .*id = \$\d+ AND status IN \(\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	from, to := bookingRule(ACTION_CONFIRM_PAYMENT)
	ok, err := store.UpdateBookingStatus(context.Background(), 5, from, to, nil)
	assert.Nil(t, err)
	assert.False(t, ok)

	ok, err = store.UpdateBookingStatus(context.Background(), 5, from, to, nil)
	assert.Nil(t, err)
	assert.True(t, ok)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGormExpireHolds(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT "id" FROM "bookings" WHERE .*hold_expires_at.*status IN .*FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(4))
	mock.ExpectExec(`UPDATE "bookings" SET "cancel_reason"=\$1.*id IN \(\$\d+,\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	ids, err := store.ExpireHolds(context.Background(), monday, 15)
	assert.Nil(t, err)
	assert.Equal(t, []uint{3, 4}, ids)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGormWithTxRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "courts" SET`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Store) error {
		_, err := tx.UpdateCourtStatus(context.Background(), 1, []types.CourtStatus{types.COURT_IN_USE}, types.COURT_ACTIVE)
		return err
	})
	assert.NotNil(t, err)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGormFindPaymentByReference(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE .*reference = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "reference", "status", "amount"}).
			AddRow("1f0c1c0e-8a44-4c1c-9d43-5d2b1f0e7a10", 9, "booking:9:initial", "pending", "250.00"))

	p, err := store.FindPaymentByReference(context.Background(), "booking:9:initial")
	assert.Nil(t, err)
	assert.Equal(t, uint(9), p.BookingID)
	assert.Equal(t, types.PAYMENT_PENDING, p.Status)
	assert.Equal(t, "250", p.Amount.String())
	assert.Nil(t, mock.ExpectationsWereMet())
}
