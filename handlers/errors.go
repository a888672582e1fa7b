package handlers

import (
	"errors"
	"net/http"

	"github.com/AlexJ236/Impulso-Digital/checkout"
	"github.com/AlexJ236/Impulso-Digital/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// respondError maps orchestrator errors to status codes. Upstream detail is
// logged and never written to the response.
func respondError(c *gin.Context, span trace.Span, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, checkout.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
	default:
		span.RecordError(err)
		logger.Error(op+" failed",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
