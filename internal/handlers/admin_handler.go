package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxestay/hotel-booking-backend/internal/middleware"
	"github.com/sirupsen/logrus"
)

// JobScheduler is the cron surface exposed to admins
type JobScheduler interface {
	RunReconcileTiersNow()
	GetJobStatus() map[string]interface{}
}

// AdminHandler serves background job management for admins
type AdminHandler struct {
	scheduler JobScheduler
	logger    *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(scheduler JobScheduler, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{scheduler: scheduler, logger: logger}
}

// RunTierReconciliation handles POST /api/v1/admin/cron/reconcile-tiers.
// The run outlives the request; progress is reported in the job logs.
func (h *AdminHandler) RunTierReconciliation(c *gin.Context) {
	if userCtx, ok := middleware.GetUserContext(c); ok {
		h.logger.WithField("user_id", userCtx.UserID).Info("Tier reconciliation triggered manually")
	}
	go h.scheduler.RunReconcileTiersNow()

	c.JSON(http.StatusAccepted, SuccessResponse{
		Status: "success",
		Data:   gin.H{"message": "Tier reconciliation triggered"},
	})
}

// GetCronStatus handles GET /api/v1/admin/cron/status
func (h *AdminHandler) GetCronStatus(c *gin.Context) {
	respondOK(c, h.scheduler.GetJobStatus())
}
