package middleware

import (
	"course-forum-backend/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorMonitorMiddleware traces every error a handler recorded with c.Error
// and feeds it to analytics.
func ErrorMonitorMiddleware(analytics *errors.ErrorAnalytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			traced := errors.NewTracedError(e.Err, errors.ErrorContext{
				RequestID: c.GetString(ContextRequestID),
				UserID:    c.GetString(ContextUserID),
				Path:      c.FullPath(),
				Method:    c.Request.Method,
			})
			analytics.Record(traced)

			fields := []zap.Field{
				zap.Int("error_code", int(traced.Code)),
				zap.String("error_message", traced.Message),
				zap.Error(traced.Err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("request_id", traced.Context.RequestID),
			}
			if errors.StatusOf(traced.AppError) >= 500 {
				zap.L().Error("request failed", append(fields, zap.String("stack", traced.Stack))...)
			} else {
				zap.L().Info("request rejected", fields...)
			}
		}
	}
}
