package forum

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"course-forum-backend/internal/errors"
	"course-forum-backend/internal/middleware"
	"course-forum-backend/internal/model"
	"course-forum-backend/internal/realtime"
	"course-forum-backend/internal/service"
	"course-forum-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxUploadMemory bounds the in-memory part of a multipart post.
const maxUploadMemory = 32 << 20

type ForumHandler struct {
	forumService service.ForumServiceInterface
}

func NewForumHandler(forumService service.ForumServiceInterface) *ForumHandler {
	return &ForumHandler{forumService: forumService}
}

type createPostRequest struct {
	CourseID string `json:"course_id" form:"course_id"`
	Title    string `json:"title" form:"title" binding:"required,notblank,max=255"`
	Content  string `json:"content" form:"content" binding:"required,notblank"`
}

type editPostRequest struct {
	Title   string `json:"title" binding:"required,notblank,max=255"`
	Content string `json:"content" binding:"required,notblank"`
}

type deletePostRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type pinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

type voteRequest struct {
	Vote model.VoteType `json:"vote" binding:"required,oneof=upvote downvote"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

type replyRequest struct {
	Content       string  `json:"content" binding:"required,notblank"`
	ParentReplyID *string `json:"parent_reply_id"`
}

type editReplyRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

func (h *ForumHandler) ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	filter := model.PostFilter{
		CourseID: c.Query("course_id"),
		Page:     page,
		PageSize: pageSize,
	}.Normalize()

	posts, total, err := h.forumService.ListPosts(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"posts":     posts,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	}, "")
}

// CreatePost accepts multipart form data (with optional images[] files) or
// a JSON body.
func (h *ForumHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	input := service.CreatePostInput{}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
			util.Logger.Warn("failed to parse multipart form", zap.Error(err))
			errors.HandleError(c, errors.Wrap(errors.ErrBadRequest, "invalid form data", err))
			return
		}
		if err := c.ShouldBind(&req); err != nil {
			errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid post data", err))
			return
		}
		if form := c.Request.MultipartForm; form != nil {
			input.Images = append(form.File["images[]"], form.File["images"]...)
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid post data", err))
		return
	}

	input.CourseID = req.CourseID
	input.Title = req.Title
	input.Content = req.Content

	post, err := h.forumService.CreatePost(c.Request.Context(), middleware.ActorFrom(c), input)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleStatus(c, http.StatusCreated, post, "post created")
}

func (h *ForumHandler) GetPost(c *gin.Context) {
	post, err := h.forumService.GetPost(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, post, "")
}

func (h *ForumHandler) EditPost(c *gin.Context) {
	var req editPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid post data", err))
		return
	}

	post, err := h.forumService.EditPost(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Title, req.Content)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, post, "post updated")
}

// DeletePost takes an optional reason from a JSON body or the reason query
// parameter.
func (h *ForumHandler) DeletePost(c *gin.Context) {
	var req deletePostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid delete request", err))
			return
		}
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	if err := h.forumService.DeletePost(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Reason); err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, nil, "post deleted")
}

func (h *ForumHandler) PinPost(c *gin.Context) {
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid pin request", err))
		return
	}

	post, err := h.forumService.SetPinned(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), *req.Pinned)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, post, "")
}

func (h *ForumHandler) VotePost(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid vote", err))
		return
	}

	result, err := h.forumService.VotePost(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Vote)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, result, "")
}

func (h *ForumHandler) ReactPost(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid reaction", err))
		return
	}

	reaction, err := h.forumService.ReactPost(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Emoji)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, gin.H{"reaction": reaction}, "")
}

func (h *ForumHandler) ListReplies(c *gin.Context) {
	tree, err := h.forumService.ListReplyTree(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, tree, "")
}

func (h *ForumHandler) AddReply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid reply", err))
		return
	}

	reply, err := h.forumService.AddReply(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.Content, req.ParentReplyID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleStatus(c, http.StatusCreated, reply, "reply created")
}

func (h *ForumHandler) EditReply(c *gin.Context) {
	var req editReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid reply", err))
		return
	}

	reply, err := h.forumService.EditReply(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), c.Param("replyId"), req.Content)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, reply, "reply updated")
}

func (h *ForumHandler) DeleteReply(c *gin.Context) {
	if err := h.forumService.DeleteReply(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), c.Param("replyId")); err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, nil, "reply deleted")
}

func (h *ForumHandler) VoteReply(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid vote", err))
		return
	}

	result, err := h.forumService.VoteReply(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), c.Param("replyId"), req.Vote)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, result, "")
}

// Subscribe upgrades to a WebSocket that streams the post and its reply tree.
func (h *ForumHandler) Subscribe(c *gin.Context) {
	// The subscription outlives the request once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	messages, initial, err := h.forumService.Subscribe(ctx, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	if err := realtime.Serve(c.Writer, c.Request, messages, initial, cancel); err != nil {
		util.Logger.Warn("websocket upgrade failed", zap.String("post_id", c.Param("id")), zap.Error(err))
	}
}

// RegisterRoutes mounts the forum routes on an authenticated group.
func (h *ForumHandler) RegisterRoutes(rg *gin.RouterGroup) {
	posts := rg.Group("/posts")
	posts.GET("", h.ListPosts)
	posts.POST("", h.CreatePost)
	posts.GET("/:id", h.GetPost)
	posts.PUT("/:id", h.EditPost)
	posts.DELETE("/:id", h.DeletePost)
	posts.PUT("/:id/pin", h.PinPost)
	posts.POST("/:id/vote", h.VotePost)
	posts.POST("/:id/reactions", h.ReactPost)
	posts.GET("/:id/subscribe", h.Subscribe)

	posts.GET("/:id/replies", h.ListReplies)
	posts.POST("/:id/replies", h.AddReply)
	posts.PUT("/:id/replies/:replyId", h.EditReply)
	posts.DELETE("/:id/replies/:replyId", h.DeleteReply)
	posts.POST("/:id/replies/:replyId/vote", h.VoteReply)

	actions := rg.Group("/actions")
	actions.POST("/pin", h.PinAction)
	actions.POST("/delete", h.DeleteAction)
	actions.POST("/vote", h.VoteAction)
	actions.POST("/reply", h.ReplyAction)
}
