package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated       PaymentEventType = "payment_initiated"
	PaymentEventVerified        PaymentEventType = "payment_verified"
	PaymentEventVerifyFailed    PaymentEventType = "payment_verify_failed"
	PaymentEventPointsCredited  PaymentEventType = "points_credited"
	PaymentEventDuplicateReplay PaymentEventType = "duplicate_replay"
	PaymentEventError           PaymentEventType = "error"
)

// PaymentAudit is an immutable audit log entry for payment events
type PaymentAudit struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	UserID      *uuid.UUID       `json:"user_id,omitempty" db:"user_id"`
	ExternalRef *string          `json:"external_ref,omitempty" db:"external_ref"`
	EventType   PaymentEventType `json:"event_type" db:"event_type"`

	Amount   *decimal.Decimal `json:"amount,omitempty" db:"amount"`
	Currency *string          `json:"currency,omitempty" db:"currency"`

	GatewayStatus *string `json:"gateway_status,omitempty" db:"gateway_status"`
	ErrorMessage  *string `json:"error_message,omitempty" db:"error_message"`
	IsDuplicate   bool    `json:"is_duplicate" db:"is_duplicate"`

	// Request metadata
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`
	Platform   *string `json:"platform,omitempty" db:"platform"`

	ProcessingTimeMs *int      `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType) *PaymentAudit {
	return &PaymentAudit{
		ID:        uuid.New(),
		EventType: eventType,
		CreatedAt: time.Now(),
	}
}

// SetUser sets the paying user
func (pa *PaymentAudit) SetUser(userID uuid.UUID) *PaymentAudit {
	pa.UserID = &userID
	return pa
}

// SetExternalRef sets the gateway transaction reference
func (pa *PaymentAudit) SetExternalRef(ref string) *PaymentAudit {
	pa.ExternalRef = &ref
	return pa
}

// SetAmount sets the verified amount and currency
func (pa *PaymentAudit) SetAmount(amount decimal.Decimal, currency string) *PaymentAudit {
	pa.Amount = &amount
	if currency != "" {
		pa.Currency = &currency
	}
	return pa
}

// SetGatewayStatus sets the status reported by the gateway
func (pa *PaymentAudit) SetGatewayStatus(status string) *PaymentAudit {
	pa.GatewayStatus = &status
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string) *PaymentAudit {
	pa.ErrorMessage = &message
	return pa
}

// SetMetadata sets request metadata
func (pa *PaymentAudit) SetMetadata(ip, userAgent, deviceType, platform string) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if deviceType != "" {
		pa.DeviceType = &deviceType
	}
	if platform != "" {
		pa.Platform = &platform
	}
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	return pa
}

// MarkAsDuplicate marks this event as a replay of an already recorded payment
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}
