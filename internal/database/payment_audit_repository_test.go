package database

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPaymentAuditRepoTest(t *testing.T) (*PaymentAuditRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo := NewPaymentAuditRepository(&PostgresDB{DB: sqlx.NewDb(db, "sqlmock")}, logger)
	return repo, mock, func() { db.Close() }
}

func TestPaymentAuditRepository_Log(t *testing.T) {
	repo, mock, cleanup := setupPaymentAuditRepoTest(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userID := uuid.New()
		audit := models.NewPaymentAudit(models.PaymentEventPointsCredited).
			SetUser(userID).
			SetExternalRef("tx-300").
			SetAmount(decimal.NewFromInt(1200), "ETB").
			SetMetadata("10.0.0.1", "Mozilla/5.0", "desktop", "Linux")

		mock.ExpectExec(`INSERT INTO payment_audits`).
			WithArgs(audit.ID, &userID, audit.ExternalRef, models.PaymentEventPointsCredited,
				audit.Amount, audit.Currency, nil, nil, false,
				audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.Platform,
				nil, audit.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Log(ctx, audit)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fills Missing ID", func(t *testing.T) {
		audit := &models.PaymentAudit{EventType: models.PaymentEventError}

		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Log(ctx, audit)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, audit.ID)
		assert.False(t, audit.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Nil Entry", func(t *testing.T) {
		err := repo.Log(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnError(fmt.Errorf("relation does not exist"))

		err := repo.Log(ctx, models.NewPaymentAudit(models.PaymentEventVerifyFailed))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to log payment audit")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentAuditRepository_ListByExternalRef(t *testing.T) {
	repo, mock, cleanup := setupPaymentAuditRepoTest(t)
	defer cleanup()

	now := time.Now()
	columns := []string{
		"id", "user_id", "external_ref", "event_type",
		"amount", "currency", "gateway_status", "error_message", "is_duplicate",
		"ip_address", "user_agent", "device_type", "platform",
		"processing_time_ms", "created_at",
	}
	mock.ExpectQuery(`SELECT (.+) FROM payment_audits WHERE external_ref = \$1`).
		WithArgs("tx-400").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), uuid.New().String(), "tx-400", "payment_verified",
				"500", "ETB", "success", nil, false,
				"10.0.0.2", nil, "mobile", "Android",
				int64(84), now).
			AddRow(uuid.New().String(), uuid.New().String(), "tx-400", "duplicate_replay",
				nil, nil, nil, nil, true,
				nil, nil, nil, nil,
				nil, now.Add(time.Second)))

	audits, err := repo.ListByExternalRef(context.Background(), "tx-400")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, models.PaymentEventVerified, audits[0].EventType)
	require.NotNil(t, audits[0].Amount)
	assert.True(t, audits[0].Amount.Equal(decimal.NewFromInt(500)))
	require.NotNil(t, audits[0].ProcessingTimeMs)
	assert.Equal(t, 84, *audits[0].ProcessingTimeMs)
	assert.True(t, audits[1].IsDuplicate)
	assert.Nil(t, audits[1].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAuditRepository_CountFailuresSince(t *testing.T) {
	repo, mock, cleanup := setupPaymentAuditRepoTest(t)
	defer cleanup()

	userID := uuid.New()
	since := time.Now().Add(-15 * time.Minute)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payment_audits`).
		WithArgs(userID, models.PaymentEventVerifyFailed, models.PaymentEventError, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountFailuresSince(context.Background(), userID, since)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
