package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/luxestay/hotel-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse wraps a successful payload
type SuccessResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Data: data})
}

func respondFailure(c *gin.Context, status int, message, code string) {
	c.JSON(status, ErrorResponse{Status: "error", Message: message, Code: code})
}

// respondError maps engine errors onto HTTP status codes. Unexpected errors
// are logged and reported without detail.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		respondFailure(c, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, models.ErrNotFound):
		respondFailure(c, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.Is(err, models.ErrDuplicateTransaction):
		respondFailure(c, http.StatusConflict, err.Error(), "DUPLICATE_TRANSACTION")
	case models.IsRetryable(err):
		logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("Retryable failure")
		respondFailure(c, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry", "SERVICE_UNAVAILABLE")
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
		c.Error(err)
		respondFailure(c, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
	}
}
