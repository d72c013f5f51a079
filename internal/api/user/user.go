package user

import (
	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/middleware"
	"course-forum-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserServiceInterface
}

func NewUserHandler(userService service.UserServiceInterface) *UserHandler {
	return &UserHandler{userService}
}

// GetMe returns the signed-in user.
func (h *UserHandler) GetMe(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "authentication required"))
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), actor.UserID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, gin.H{"user": user}, "")
}
