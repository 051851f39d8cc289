package handlers

import (
	"net/http"

	"threadspire/internal/services"
	"threadspire/internal/utils"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

func NewAnalyticsHandler(svc *services.Services) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc.Analytics}
}

// RecordView serves POST /api/threads/:id/views.
func (h *AnalyticsHandler) RecordView(c *gin.Context) {
	row, err := h.analytics.RecordView(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *AnalyticsHandler) Stats(c *gin.Context) {
	stats, err := h.analytics.GetThreadAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AnalyticsHandler) ViewsByDay(c *gin.Context) {
	days := utils.IntInRange(c.Query("days"), 30, 1, 365)
	series, err := h.analytics.GetThreadViewsByDay(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": series})
}

func (h *AnalyticsHandler) Interactions(c *gin.Context) {
	limit := utils.IntInRange(c.Query("limit"), 100, 1, 1000)
	rows, err := h.analytics.GetThreadInteractions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": rows})
}
