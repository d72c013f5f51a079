package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

// SuccessResponse is the JSON body of a successful request.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

var errorStatusMap = map[ErrorCode]int{
	ErrInternal: http.StatusInternalServerError,
	ErrDatabase: http.StatusInternalServerError,
	ErrStorage:  http.StatusInternalServerError,
	ErrTimeout:  http.StatusRequestTimeout,

	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrInvalidToken: http.StatusUnauthorized,

	ErrBadRequest:       http.StatusBadRequest,
	ErrValidation:       http.StatusBadRequest,
	ErrResourceNotFound: http.StatusNotFound,
	ErrResourceExists:   http.StatusConflict,
	ErrResourceConflict: http.StatusConflict,

	ErrPostNotFound:   http.StatusNotFound,
	ErrReplyNotFound:  http.StatusNotFound,
	ErrCourseNotFound: http.StatusNotFound,
	ErrUserNotFound:   http.StatusNotFound,
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if status, ok := errorStatusMap[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an ErrorResponse and records it on the context.
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		resp := ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
		}
		// Internal causes are logged, not returned.
		if appErr.Err != nil && StatusOf(appErr) < http.StatusInternalServerError {
			resp.Error = appErr.Err.Error()
		}
		c.JSON(StatusOf(appErr), resp)
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    ErrInternal,
		Message: "Internal Server Error",
	})
}

// HandleActionError writes err as {"error": "..."}, the body used by the
// moderation action endpoints.
func HandleActionError(c *gin.Context, err error) {
	_ = c.Error(err)

	message := "Internal Server Error"
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(StatusOf(err), gin.H{"error": message})
}

// HandleSuccess writes a 200 SuccessResponse.
func HandleSuccess(c *gin.Context, data interface{}, message string) {
	HandleStatus(c, http.StatusOK, data, message)
}

// HandleStatus writes a SuccessResponse with the given status.
func HandleStatus(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, SuccessResponse{
		Code:    status,
		Message: message,
		Data:    data,
	})
}
