package admin

import (
	"net/http"

	"course-forum-backend/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the admin-only diagnostics.
type AdminHandler struct {
	statsService *service.StatsService
}

func NewAdminHandler(statsService *service.StatsService) *AdminHandler {
	return &AdminHandler{statsService}
}

// GetErrorStats returns the counters collected by the error monitor.
func (h *AdminHandler) GetErrorStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": h.statsService.GetErrorStats(),
	})
}

// GetSystemStats returns live subscription figures and error counters.
func (h *AdminHandler) GetSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": h.statsService.GetSystemStats(),
	})
}
