package handlers

import (
	"net/http"

	"threadspire/internal/middleware"
	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes maintenance jobs to the configured operators.
type AdminHandler struct {
	search  *services.SearchService
	ranking *services.RankingService
	admins  map[string]bool
}

func NewAdminHandler(svc *services.Services, adminIDs []string) *AdminHandler {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &AdminHandler{search: svc.Search, ranking: svc.Ranking, admins: admins}
}

func (h *AdminHandler) checkAdmin(c *gin.Context) bool {
	id, _ := c.Get(middleware.CurrentUserKey)
	userID, _ := id.(string)
	if !h.admins[userID] {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "forbidden", "message": "admin only"}})
		return false
	}
	return true
}

// Reindex pushes every searchable thread to the search engine.
func (h *AdminHandler) Reindex(c *gin.Context) {
	if !h.checkAdmin(c) {
		return
	}
	n, err := h.search.Reindex(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": n})
}

// RecomputeRankings refreshes trend scores without waiting for the cron.
func (h *AdminHandler) RecomputeRankings(c *gin.Context) {
	if !h.checkAdmin(c) {
		return
	}
	if err := h.ranking.RecomputeRecent(c.Request.Context()); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
