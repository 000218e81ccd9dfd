package http

import (
	"net/http"

	"quizit-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "error_type"}. Internal failures are logged and their
// cause is hidden from the client.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	kind := domain.KindOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		message = "internal error"
		kind = domain.KindInternal
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message, "error_type": kind.String()})
}

func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":      "invalid request body: " + err.Error(),
		"error_type": domain.KindValidation.String(),
	})
}
