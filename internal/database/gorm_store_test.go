package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chachabrian/mooveit-dispatch/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB builds SQL against the postgres dialect without connecting.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=dispatch dbname=dispatch sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		TranslateError:       true,
	})
	require.NoError(t, err)
	return db
}

func TestGormStore_LocksRowsInsideTransaction(t *testing.T) {
	db := dryRunDB(t)
	ctx := context.Background()

	locked := &GormStore{db: db, locked: true}
	stmt := locked.query(ctx).First(&models.Booking{}, 7).Statement
	assert.Contains(t, stmt.SQL.String(), "FOR UPDATE")

	plain := NewGormStore(db)
	stmt = plain.query(ctx).First(&models.Booking{}, 7).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}

func TestGormStore_BookingFilterSQL(t *testing.T) {
	db := dryRunDB(t)
	driverID := uint(4)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return filterBookings(tx, BookingFilter{
			Statuses: []models.BookingStatus{models.BookingStatusAssigned, models.BookingStatusInProgress},
			DriverID: &driverID,
			From:     &from,
		}).Find(&[]models.Booking{})
	})

	assert.Contains(t, sql, "status IN")
	assert.Contains(t, sql, "driver_id = 4")
	assert.Contains(t, sql, "booked_at >=")
	assert.NotContains(t, sql, "booked_at <")
	assert.Contains(t, sql, "ORDER BY id")
	assert.Contains(t, sql, `"deleted_at" IS NULL`)
}

func TestGormStore_PaymentFilterSQL(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return filterPayments(tx, PaymentFilter{Method: models.PaymentCard}).Find(&[]models.Payment{})
	})

	assert.Contains(t, sql, "method =")
	assert.NotContains(t, sql, "status IN")
	assert.NotContains(t, sql, "paid_at")
}

func TestNotFound(t *testing.T) {
	err := notFound(gorm.ErrRecordNotFound, "booking", 3)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.EqualError(t, err, "not found: booking 3")

	other := errors.New("connection refused")
	assert.Equal(t, other, notFound(other, "booking", 3))
}

func TestConflict(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantState bool
	}{
		{"duplicate key", gorm.ErrDuplicatedKey, true},
		{"wrapped duplicate key", fmt.Errorf("save: %w", gorm.ErrDuplicatedKey), true},
		{"postgres unique violation", postgres.Dialector{}.Translate(&pgconn.PgError{Code: "23505"}), true},
		{"postgres check violation", postgres.Dialector{}.Translate(&pgconn.PgError{Code: "23514"}), false},
		{"other error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conflict(tt.err, "license %q already registered", "DL-1")
			if tt.wantState {
				assert.ErrorIs(t, err, models.ErrInvalidState)
				assert.Contains(t, err.Error(), `license "DL-1" already registered`)
			} else {
				assert.NotErrorIs(t, err, models.ErrInvalidState)
				assert.Equal(t, tt.err, err)
			}
		})
	}
}
