package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"council-game-demo/client/pkg/logger"
)

// StatusFor maps an application error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case CodeStreamActive, CodeAlreadyVoted:
		return http.StatusConflict
	case CodeSessionNotFound:
		return http.StatusNotFound
	case CodeInvalidPhase, CodeGhostMode:
		return http.StatusBadRequest
	case CodeTransportFailed, CodeEngineError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromError converts any error into an AppError, wrapping unknown errors
// as transport failures.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewTransportError(err)
}

// ErrorHandler returns a middleware that catches and formats application errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Check if there are any errors
		if len(c.Errors) > 0 {
			// Get the first error
			err := c.Errors[0].Err

			// Convert to AppError if it's not already
			appErr := FromError(err)
			status := StatusFor(appErr.Code)

			// Log the error
			log := logger.GetGlobal()
			if v, ok := c.Get("logger"); ok {
				if reqLog, ok := v.(*logger.Logger); ok {
					log = reqLog
				}
			}
			log.Error("Request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"status_code", status,
				"error_code", appErr.Code,
				"message", appErr.Message,
			)

			// Respond with the error
			c.AbortWithStatusJSON(status, gin.H{
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
			})
		}
	}
}

// RecoveryWithLogger returns a middleware that recovers from panics with
// structured logging
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Get stack trace
				stack := string(debug.Stack())

				// Log the error with stack trace
				log := logger.GetGlobal()
				log.Error("Panic recovered",
					"error", fmt.Sprintf("%v", err),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"stack", stack,
				)

				// Create a standard response
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"code":  "SERVER_PANIC",
				})
			}
		}()
		c.Next()
	}
}
