package forum

import (
	"net/http"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/middleware"
	"course-forum-backend/internal/model"

	"github.com/gin-gonic/gin"
)

// The action endpoints take {postId, userId, ...} and answer failures with
// {"error": "..."}. userId must name the caller.

type actionBase struct {
	PostID string `json:"postId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

type pinAction struct {
	actionBase
	Pinned *bool `json:"pinned"`
}

type deleteAction struct {
	actionBase
	Reason string `json:"reason" binding:"max=500"`
}

type voteAction struct {
	actionBase
	ReplyID string         `json:"replyId"`
	Vote    model.VoteType `json:"vote" binding:"required,oneof=upvote downvote"`
}

type replyAction struct {
	actionBase
	Content       string  `json:"content" binding:"required,notblank"`
	ParentReplyID *string `json:"parentReplyId"`
}

// actionActor checks the body's userId against the verified caller.
func actionActor(c *gin.Context, base actionBase) (*model.Actor, bool) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		errors.HandleActionError(c, errors.New(errors.ErrUnauthorized, "authentication required"))
		return nil, false
	}
	if base.UserID != actor.UserID {
		errors.HandleActionError(c, errors.New(errors.ErrForbidden, "userId does not match the signed-in user"))
		return nil, false
	}
	return actor, true
}

// PinAction pins a post, or sets the explicit pinned value when given.
func (h *ForumHandler) PinAction(c *gin.Context) {
	var req pinAction
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleActionError(c, errors.Wrap(errors.ErrValidation, "postId and userId are required", err))
		return
	}
	actor, ok := actionActor(c, req.actionBase)
	if !ok {
		return
	}

	pinned := true
	if req.Pinned != nil {
		pinned = *req.Pinned
	}
	post, err := h.forumService.SetPinned(c.Request.Context(), actor, req.PostID, pinned)
	if err != nil {
		errors.HandleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"postId": post.ID, "isPinned": post.IsPinned})
}

func (h *ForumHandler) DeleteAction(c *gin.Context) {
	var req deleteAction
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleActionError(c, errors.Wrap(errors.ErrValidation, "postId and userId are required", err))
		return
	}
	actor, ok := actionActor(c, req.actionBase)
	if !ok {
		return
	}

	if err := h.forumService.DeletePost(c.Request.Context(), actor, req.PostID, req.Reason); err != nil {
		errors.HandleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"postId": req.PostID, "deleted": true})
}

// VoteAction votes on the post, or on one of its replies when replyId is set.
func (h *ForumHandler) VoteAction(c *gin.Context) {
	var req voteAction
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleActionError(c, errors.Wrap(errors.ErrValidation, "postId, userId and a valid vote are required", err))
		return
	}
	actor, ok := actionActor(c, req.actionBase)
	if !ok {
		return
	}

	var result *model.VoteResult
	var err error
	if req.ReplyID != "" {
		result, err = h.forumService.VoteReply(c.Request.Context(), actor, req.PostID, req.ReplyID, req.Vote)
	} else {
		result, err = h.forumService.VotePost(c.Request.Context(), actor, req.PostID, req.Vote)
	}
	if err != nil {
		errors.HandleActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ForumHandler) ReplyAction(c *gin.Context) {
	var req replyAction
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleActionError(c, errors.Wrap(errors.ErrValidation, "postId, userId and content are required", err))
		return
	}
	actor, ok := actionActor(c, req.actionBase)
	if !ok {
		return
	}

	reply, err := h.forumService.AddReply(c.Request.Context(), actor, req.PostID, req.Content, req.ParentReplyID)
	if err != nil {
		errors.HandleActionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}
