package middleware

import (
	"context"
	"strings"
	"time"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/service"
	"course-forum-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "user_id"
	ContextActor  = "actor"
)

// RequestTimeout bounds every authenticated request.
const RequestTimeout = 5 * time.Second

// AuthMiddleware verifies the bearer token issued by the auth provider and
// stores the resolved Actor on the context. WebSocket clients, which cannot
// set headers, may pass the token as ?token=.
func AuthMiddleware(userService service.UserServiceInterface, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.Logger.Debug("auth middleware",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method))

		token, ok := bearerToken(c)
		if !ok {
			abort(c, errors.New(errors.ErrUnauthorized, "authentication required"))
			return
		}

		userID, err := util.ValidateToken(token, secret)
		if err != nil {
			abort(c, errors.Wrap(errors.ErrInvalidToken, "invalid or expired token", err))
			return
		}

		// Streaming connections outlive any request deadline.
		ctx, cancel := c.Request.Context(), context.CancelFunc(func() {})
		if !isWebSocketUpgrade(c) {
			ctx, cancel = context.WithTimeout(ctx, RequestTimeout)
		}
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		actor, err := userService.ResolveActor(ctx, userID)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextActor, actor)

		select {
		case <-ctx.Done():
			abort(c, errors.New(errors.ErrTimeout, "request timed out"))
			return
		default:
			c.Next()
		}
	}
}

// ActorFrom returns the Actor stored by AuthMiddleware, or nil.
func ActorFrom(c *gin.Context) *model.Actor {
	v, ok := c.Get(ContextActor)
	if !ok {
		return nil
	}
	actor, _ := v.(*model.Actor)
	return actor
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if isWebSocketUpgrade(c) {
			if token := c.Query("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func isWebSocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

func abort(c *gin.Context, err error) {
	errors.HandleError(c, err)
	c.Abort()
}
