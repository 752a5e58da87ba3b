package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luxestay/hotel-booking-backend/internal/middleware"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/luxestay/hotel-booking-backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MembershipEngine is the subset of MembershipService the handler needs
type MembershipEngine interface {
	GetLeaderboard(ctx context.Context, period models.LeaderboardPeriod, size int, earnersOnly bool) (*models.Leaderboard, error)
	GetUserPoints(ctx context.Context, userID uuid.UUID) (*models.UserPoints, error)
	RedeemPoints(ctx context.Context, userID uuid.UUID, points decimal.Decimal, note string) (*models.RedemptionResult, error)
	GetMembership(ctx context.Context, name models.TierName, withMembers bool) (*models.MembershipDetails, error)
	Catalog() *services.TierCatalog
}

// MembershipHandler serves leaderboards and loyalty views
type MembershipHandler struct {
	engine MembershipEngine
	logger *logrus.Logger
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(engine MembershipEngine, logger *logrus.Logger) *MembershipHandler {
	return &MembershipHandler{engine: engine, logger: logger}
}

// RedeemRequest represents a points redemption
type RedeemRequest struct {
	Points decimal.Decimal `json:"points"`
	Note   string          `json:"note" binding:"max=255"`
}

// GetLeaderboard handles GET /api/v1/leaderboard
func (h *MembershipHandler) GetLeaderboard(c *gin.Context) {
	period := models.LeaderboardPeriod(strings.ToLower(c.DefaultQuery("period", string(models.LeaderboardWeekly))))

	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondFailure(c, http.StatusBadRequest, "size must be an integer", "VALIDATION_ERROR")
			return
		}
		size = n
	}

	earnersOnly := false
	if raw := c.Query("earners_only"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondFailure(c, http.StatusBadRequest, "earners_only must be a boolean", "VALIDATION_ERROR")
			return
		}
		earnersOnly = b
	}

	board, err := h.engine.GetLeaderboard(c.Request.Context(), period, size, earnersOnly)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, board)
}

// GetMyPoints handles GET /api/v1/membership/me
func (h *MembershipHandler) GetMyPoints(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "User not authenticated", "MISSING_USER_CONTEXT")
		return
	}

	view, err := h.engine.GetUserPoints(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, view)
}

// RedeemPoints handles POST /api/v1/membership/redeem
func (h *MembershipHandler) RedeemPoints(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondFailure(c, http.StatusUnauthorized, "User not authenticated", "MISSING_USER_CONTEXT")
		return
	}

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Invalid request body", "VALIDATION_ERROR")
		return
	}

	result, err := h.engine.RedeemPoints(c.Request.Context(), userCtx.UserID, req.Points, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, result)
}

// ListTiers handles GET /api/v1/membership/tiers
func (h *MembershipHandler) ListTiers(c *gin.Context) {
	respondOK(c, h.engine.Catalog().Tiers())
}

// GetTier handles GET /api/v1/membership/tiers/:name
func (h *MembershipHandler) GetTier(c *gin.Context) {
	raw := c.Param("name")
	name, err := models.ParseTierName(raw)
	if err != nil {
		respondError(c, h.logger, &models.NotFoundError{Entity: "membership tier", ID: raw})
		return
	}

	withUsers := false
	if v := c.Query("with_users"); v != "" {
		if withUsers, err = strconv.ParseBool(v); err != nil {
			respondFailure(c, http.StatusBadRequest, "with_users must be a boolean", "VALIDATION_ERROR")
			return
		}
	}

	details, err := h.engine.GetMembership(c.Request.Context(), name, withUsers)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, details)
}
