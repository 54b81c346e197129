package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "brainvibe/backend/pkg/errors"
)

// respondError writes err with the status its kind maps to
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= 500 {
		s.logger.Error("Request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var exists *apperrors.ErrProjectExists
	var invalidStatus *apperrors.ErrInvalidStatus
	var invalidID *apperrors.ErrInvalidIdentifier

	switch {
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.As(err, &exists):
		return http.StatusConflict
	case errors.As(err, &invalidStatus), errors.As(err, &invalidID):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrLLMUnavailable):
		return http.StatusServiceUnavailable
	case apperrors.IsErrorType(err, apperrors.ErrorTypeLLM):
		return http.StatusBadGateway
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
