package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/luxestay/hotel-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// logAuditError logs audit failures without failing the request
func logAuditError(logger *logrus.Logger, audit *models.PaymentAudit, err error) {
	if err == nil {
		return
	}
	fields := logrus.Fields{"event_type": audit.EventType}
	if audit.ExternalRef != nil {
		fields["tx_ref"] = *audit.ExternalRef
	}
	logger.WithError(err).WithFields(fields).Error("Failed to write payment audit")
}

func (h *PaymentHandler) safeLogPayment(ctx context.Context, audit *models.PaymentAudit) {
	// Audit writes outlive a cancelled request
	logAuditError(h.logger, audit, h.audits.Log(context.WithoutCancel(ctx), audit))
}

func clientInfo(c *gin.Context) utils.ClientInfo {
	return utils.ClientInfoFromRequest(c)
}
