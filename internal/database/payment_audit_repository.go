package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, user_id, external_ref, event_type,
			amount, currency, gateway_status, error_message, is_duplicate,
			ip_address, user_agent, device_type, platform,
			processing_time_ms, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.UserID, audit.ExternalRef, audit.EventType,
		audit.Amount, audit.Currency, audit.GatewayStatus, audit.ErrorMessage, audit.IsDuplicate,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.Platform,
		audit.ProcessingTimeMs, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":   audit.EventType,
			"external_ref": audit.ExternalRef,
		}).Error("Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")

	return nil
}

// ListByExternalRef returns the audit trail of one payment, oldest first
func (r *PaymentAuditRepository) ListByExternalRef(ctx context.Context, externalRef string) ([]models.PaymentAudit, error) {
	audits := []models.PaymentAudit{}
	query := `
		SELECT id, user_id, external_ref, event_type,
			amount, currency, gateway_status, error_message, is_duplicate,
			ip_address, user_agent, device_type, platform,
			processing_time_ms, created_at
		FROM payment_audits
		WHERE external_ref = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, externalRef); err != nil {
		return nil, fmt.Errorf("failed to list payment audits: %w", err)
	}
	return audits, nil
}

// CountFailuresSince counts verification failures for a user since the given
// time
func (r *PaymentAuditRepository) CountFailuresSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM payment_audits
		WHERE user_id = $1
		AND event_type IN ($2, $3)
		AND created_at >= $4`

	err := r.db.GetContext(ctx, &count, query,
		userID, models.PaymentEventVerifyFailed, models.PaymentEventError, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count payment failures: %w", err)
	}
	return count, nil
}
