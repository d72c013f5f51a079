package middleware

import (
	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminMiddleware admits only actors with the admin role. It must run after
// AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil {
			abort(c, errors.New(errors.ErrUnauthorized, "authentication required"))
			return
		}
		if actor.Role != model.RoleAdmin {
			util.Logger.Warn("non-admin access to admin route",
				zap.String("user_id", actor.UserID),
				zap.String("path", c.Request.URL.Path))
			abort(c, errors.New(errors.ErrForbidden, "admin access required"))
			return
		}
		c.Next()
	}
}
