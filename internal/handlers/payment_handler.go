package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/config"
	"github.com/luxestay/hotel-booking-backend/internal/middleware"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/luxestay/hotel-booking-backend/pkg/chapa"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentGateway is the checkout provider used by PaymentHandler
type PaymentGateway interface {
	Initialize(ctx context.Context, req chapa.InitializeRequest) (string, error)
	Verify(ctx context.Context, txRef string) (*chapa.Verification, error)
}

// PaymentRecorder credits verified payments
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, userID uuid.UUID, externalRef string, amount decimal.Decimal) (*models.PaymentResult, error)
}

// PaymentAuditLog persists payment audit events
type PaymentAuditLog interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	ListByExternalRef(ctx context.Context, externalRef string) ([]models.PaymentAudit, error)
	CountFailuresSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

var bookingReferencePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// PaymentHandler handles checkout initialisation and verification
type PaymentHandler struct {
	gateway  PaymentGateway
	recorder PaymentRecorder
	audits   PaymentAuditLog
	config   config.PaymentConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(gateway PaymentGateway, recorder PaymentRecorder, audits PaymentAuditLog, cfg config.PaymentConfig, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway:  gateway,
		recorder: recorder,
		audits:   audits,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// InitializePaymentRequest represents a checkout request for a booking
type InitializePaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Email     string          `json:"email" binding:"required,email"`
	Reference string          `json:"reference" binding:"required"`
}

// InitializePaymentResponse carries the hosted checkout link
type InitializePaymentResponse struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

// VerifyPaymentRequest represents a verification request
type VerifyPaymentRequest struct {
	TxRef string `json:"tx_ref" binding:"required"`
}

// InitializePayment handles POST /api/v1/payments/initialize
func (h *PaymentHandler) InitializePayment(c *gin.Context) {
	start := time.Now()
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "User not authenticated", "MISSING_USER_CONTEXT")
		return
	}

	var req InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Missing required fields", "VALIDATION_ERROR")
		return
	}
	if !req.Amount.IsPositive() {
		respondFailure(c, http.StatusBadRequest, "amount must be greater than zero", "VALIDATION_ERROR")
		return
	}
	if !bookingReferencePattern.MatchString(req.Reference) {
		respondFailure(c, http.StatusBadRequest, "reference may only contain letters, digits, '.', '_' and '-'", "VALIDATION_ERROR")
		return
	}
	if h.config.SecretKey == "" {
		respondFailure(c, http.StatusServiceUnavailable, "Payment provider not configured", "PAYMENT_NOT_CONFIGURED")
		return
	}

	// The gateway requires a fresh tx_ref per checkout attempt
	txRef := fmt.Sprintf("%s-%d-%s", req.Reference, h.now().Unix(), strings.Split(uuid.NewString(), "-")[0])

	checkoutURL, err := h.gateway.Initialize(c.Request.Context(), chapa.InitializeRequest{
		Amount:      req.Amount,
		Currency:    h.config.Currency,
		Email:       req.Email,
		TxRef:       txRef,
		CallbackURL: h.config.CallbackURL,
		ReturnURL:   h.config.ReturnURL,
		Customization: &chapa.Customization{
			Title:       "Booking Payment",
			Description: "Payment for booking " + req.Reference,
		},
	})

	audit := h.newAudit(c, models.PaymentEventInitiated, userCtx.UserID, txRef).
		SetAmount(req.Amount, h.config.Currency)
	if err != nil {
		h.logger.WithError(err).WithField("tx_ref", txRef).Warn("Checkout initialisation failed")
		h.safeLogPayment(c.Request.Context(), audit.SetError(err.Error()).SetProcessingTime(start))
		respondFailure(c, http.StatusBadGateway, "Failed to initialise payment", "GATEWAY_ERROR")
		return
	}
	h.safeLogPayment(c.Request.Context(), audit.SetProcessingTime(start))

	respondOK(c, InitializePaymentResponse{CheckoutURL: checkoutURL, TxRef: txRef})
}

// VerifyPayment handles POST /api/v1/payments/verify. A successful
// verification credits the verified amount to the caller's points ledger.
// Verifying the same tx_ref again returns the stored result.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "User not authenticated", "MISSING_USER_CONTEXT")
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "tx_ref is required", "VALIDATION_ERROR")
		return
	}
	txRef := strings.TrimSpace(req.TxRef)

	log := h.logger.WithFields(logrus.Fields{
		"user_id": userCtx.UserID,
		"tx_ref":  txRef,
	})

	if h.config.VerifyFailureLimit > 0 {
		failures, err := h.audits.CountFailuresSince(ctx, userCtx.UserID, h.now().Add(-h.config.VerifyFailureWindow))
		if err != nil {
			log.WithError(err).Warn("Failed to count verify failures, continuing")
		} else if failures >= h.config.VerifyFailureLimit {
			log.WithField("failures", failures).Warn("Payment verification throttled")
			respondFailure(c, http.StatusTooManyRequests, "Too many failed verification attempts, please try again later", "VERIFY_THROTTLED")
			return
		}
	}

	owned, err := h.initiatedBy(ctx, txRef, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !owned {
		respondFailure(c, http.StatusNotFound, "Unknown payment reference", "NOT_FOUND")
		return
	}

	verification, err := h.gateway.Verify(ctx, txRef)
	if err != nil {
		audit := h.newAudit(c, models.PaymentEventVerifyFailed, userCtx.UserID, txRef).SetError(err.Error())
		if verification != nil {
			audit.SetGatewayStatus(verification.Status)
		}

		var apiErr *chapa.APIError
		switch {
		case errors.Is(err, chapa.ErrPaymentNotSuccessful), errors.As(err, &apiErr):
			log.WithError(err).Info("Payment verification failed")
			h.safeLogPayment(ctx, audit.SetProcessingTime(start))
			respondFailure(c, http.StatusBadRequest, "Payment verification failed", "PAYMENT_NOT_VERIFIED")
		default:
			log.WithError(err).Error("Payment gateway unreachable")
			audit.EventType = models.PaymentEventError
			h.safeLogPayment(ctx, audit.SetProcessingTime(start))
			respondFailure(c, http.StatusBadGateway, "Payment gateway unavailable", "GATEWAY_ERROR")
		}
		return
	}

	h.safeLogPayment(ctx, h.newAudit(c, models.PaymentEventVerified, userCtx.UserID, txRef).
		SetAmount(verification.Amount, verification.Currency).
		SetGatewayStatus(verification.Status).
		SetProcessingTime(start))

	result, err := h.recorder.RecordPayment(ctx, userCtx.UserID, txRef, verification.Amount)
	if err != nil {
		h.safeLogPayment(ctx, h.newAudit(c, models.PaymentEventError, userCtx.UserID, txRef).
			SetAmount(verification.Amount, verification.Currency).
			SetError(err.Error()).
			SetProcessingTime(start))
		respondError(c, h.logger, err)
		return
	}

	event := models.PaymentEventPointsCredited
	if result.Duplicate {
		event = models.PaymentEventDuplicateReplay
	}
	audit := h.newAudit(c, event, userCtx.UserID, txRef).
		SetAmount(verification.Amount, verification.Currency).
		SetProcessingTime(start)
	if result.Duplicate {
		audit.MarkAsDuplicate()
	}
	h.safeLogPayment(ctx, audit)

	respondOK(c, result)
}

// initiatedBy reports whether userID started the checkout for txRef
func (h *PaymentHandler) initiatedBy(ctx context.Context, txRef string, userID uuid.UUID) (bool, error) {
	audits, err := h.audits.ListByExternalRef(ctx, txRef)
	if err != nil {
		return false, models.NewPersistenceError("list payment audits", err)
	}
	for _, a := range audits {
		if a.EventType == models.PaymentEventInitiated && a.UserID != nil && *a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (h *PaymentHandler) newAudit(c *gin.Context, event models.PaymentEventType, userID uuid.UUID, txRef string) *models.PaymentAudit {
	client := clientInfo(c)
	return models.NewPaymentAudit(event).
		SetUser(userID).
		SetExternalRef(txRef).
		SetMetadata(client.IP, client.UserAgent, client.DeviceType, client.Platform)
}
