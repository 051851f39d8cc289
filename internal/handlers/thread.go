package handlers

import (
	"net/http"
	"strings"

	"threadspire/internal/services"
	"threadspire/internal/utils"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	threads   *services.ThreadService
	forks     *services.ForkService
	search    *services.SearchService
	analytics *services.AnalyticsService
}

func NewThreadHandler(svc *services.Services) *ThreadHandler {
	return &ThreadHandler{
		threads:   svc.Threads,
		forks:     svc.Forks,
		search:    svc.Search,
		analytics: svc.Analytics,
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// List serves GET /api/threads.
func (h *ThreadHandler) List(c *gin.Context) {
	f := services.ThreadFilter{
		Page:          utils.IntInRange(c.Query("page"), 1, 1, 0),
		Limit:         utils.IntInRange(c.Query("limit"), 10, 1, 100),
		SortBy:        c.DefaultQuery("sort_by", "created_at"),
		SortOrder:     c.DefaultQuery("sort_order", "desc"),
		Tags:          splitTags(c.Query("tags")),
		UserID:        c.Query("user_id"),
		OnlyPublished: c.DefaultQuery("only_published", "true") != "false",
	}
	page, err := h.threads.GetThreads(c.Request.Context(), f)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ThreadHandler) Get(c *gin.Context) {
	t, err := h.threads.GetThreadByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ThreadHandler) Create(c *gin.Context) {
	var in services.CreateThreadInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.threads.CreateThread(c.Request.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *ThreadHandler) Update(c *gin.Context) {
	var in services.UpdateThreadInput
	if !bindJSON(c, &in) {
		return
	}
	t, err := h.threads.UpdateThread(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ThreadHandler) Delete(c *gin.Context) {
	if err := h.threads.DeleteThread(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ThreadHandler) Fork(c *gin.Context) {
	id, err := h.forks.ForkThread(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *ThreadHandler) Lineage(c *gin.Context) {
	nodes, err := h.threads.Lineage(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lineage": nodes})
}

func (h *ThreadHandler) Forks(c *gin.Context) {
	forks, err := h.threads.Forks(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": forks})
}

func (h *ThreadHandler) Search(c *gin.Context) {
	limit := utils.IntInRange(c.Query("limit"), 10, 1, 50)
	results, err := h.search.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": results, "query": c.Query("q")})
}

func (h *ThreadHandler) Trending(c *gin.Context) {
	threads, err := h.analytics.TrendingThreads(c.Request.Context(), utils.IntInRange(c.Query("limit"), 10, 1, 50))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

func (h *ThreadHandler) Featured(c *gin.Context) {
	threads, err := h.analytics.FeaturedThreads(c.Request.Context(), utils.IntInRange(c.Query("limit"), 10, 1, 50))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// Related serves GET /api/threads/:id/related.
func (h *ThreadHandler) Related(c *gin.Context) {
	limit := utils.IntInRange(c.Query("limit"), 3, 1, 20)
	threads, err := h.threads.Related(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// Stream pushes the thread as server-sent events: a snapshot first, then
// the re-read thread after every change.
func (h *ThreadHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := c.Param("id")
	if err := h.threads.CheckReadable(ctx, threadID); err != nil {
		Fail(c, err)
		return
	}

	updates, cancel := h.threads.Subscribe(ctx, threadID)
	defer cancel()
	detail, err := h.threads.GetThreadByID(ctx, threadID)
	if err != nil {
		Fail(c, err)
		return
	}

	openStream(c, "thread", services.ThreadEvent{Type: services.ThreadSnapshot, ThreadID: threadID, Thread: detail})
	pump(c, "thread", updates)
}
