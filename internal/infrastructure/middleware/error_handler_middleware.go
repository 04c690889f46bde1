package middleware

import (
	stderrors "errors"
	"net/http"

	"astrelay/internal/core/domain"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware translates errors pushed onto the gin context
// into structured JSON responses.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = mapDomainError(err)
		}

		if appErr != nil {
			logger.Errorw("application error",
				"code", appErr.Code,
				"message", appErr.Message,
				"status", appErr.HTTPStatus,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)

			c.JSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
				"details": appErr.Context,
			})
			return
		}

		logger.Errorw("unhandled error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   string(errors.ErrCodeInternal),
			"message": "Internal server error",
		})
	}
}

// mapDomainError lets handlers push raw domain errors without wrapping
// each one at the call site.
func mapDomainError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, domain.ErrUserNotFound),
		stderrors.Is(err, domain.ErrPostNotFound),
		stderrors.Is(err, domain.ErrStreamNotFound),
		stderrors.Is(err, domain.ErrConstellationNotFound):
		return errors.NewNotFoundError("resource")
	case stderrors.Is(err, domain.ErrUserExists):
		return errors.NewConflictError("user already exists")
	case stderrors.Is(err, domain.ErrStaleRevision):
		return errors.NewConflictError("a newer revision exists")
	case stderrors.Is(err, domain.ErrActionThrottled):
		return errors.NewThrottledError("action cooldown active")
	case stderrors.Is(err, domain.ErrUnknownAction):
		return errors.NewInvalidInputError("unknown action type")
	case stderrors.Is(err, domain.ErrStreamNotLive):
		return errors.NewConflictError("stream is not live")
	case stderrors.Is(err, domain.ErrNotAvatarOwner):
		return errors.NewForbiddenError("cannot modify another user's avatar")
	case stderrors.Is(err, domain.ErrNotStreamHost):
		return errors.NewForbiddenError("only the host can end the stream")
	default:
		return nil
	}
}

// RecoveryMiddleware recovers from panics and returns proper error responses
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error":   string(errors.ErrCodeInternal),
					"message": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
