package handlers

import (
	"html/template"
	"net/http"

	"threadspire/internal/logger"
	"threadspire/internal/services"
	"threadspire/internal/utils"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the server-rendered reader pages.
type PageHandler struct {
	threads   *services.ThreadService
	analytics *services.AnalyticsService
	log       *logger.Logger
}

func NewPageHandler(svc *services.Services, log *logger.Logger) *PageHandler {
	return &PageHandler{threads: svc.Threads, analytics: svc.Analytics, log: log.With("handler", "PageHandler")}
}

type segmentView struct {
	ID      string
	Index   int
	Content template.HTML
}

func (h *PageHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	page, err := h.threads.GetThreads(ctx, services.ThreadFilter{
		Page:          utils.IntInRange(c.Query("page"), 1, 1, 0),
		Limit:         20,
		OnlyPublished: true,
		Tags:          splitTags(c.Query("tag")),
	})
	if err != nil {
		_ = c.Error(err)
		RenderError(c, http.StatusInternalServerError, "Could not load threads")
		return
	}
	featured, err := h.analytics.FeaturedThreads(ctx, 5)
	if err != nil {
		h.log.Warn("featured threads failed", "error", err)
		featured = nil
	}
	Render(c, http.StatusOK, "thread/list.html", gin.H{
		"Title":    "Latest threads",
		"Page":     page,
		"Featured": featured,
		"NextPage": page.Page + 1,
		"HasMore":  int64(page.Page*page.Limit) < page.Total,
	})
}

// Thread renders one thread and counts the visit.
func (h *PageHandler) Thread(c *gin.Context) {
	ctx := c.Request.Context()
	t, err := h.threads.GetThreadByID(ctx, c.Param("id"))
	if err != nil {
		status, _ := StatusOf(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		RenderError(c, status, http.StatusText(status))
		return
	}

	stats, err := h.analytics.RecordView(ctx, t.ID)
	if err != nil {
		h.log.Warn("record view failed", "threadID", t.ID, "error", err)
	}

	segments := make([]segmentView, len(t.Segments))
	for i, seg := range t.Segments {
		segments[i] = segmentView{ID: seg.ID, Index: seg.OrderIndex, Content: utils.EnhanceHTMLContent(seg.Content)}
	}
	related, err := h.threads.Related(ctx, t.ID, 3)
	if err != nil {
		h.log.Warn("related threads failed", "threadID", t.ID, "error", err)
	}
	Render(c, http.StatusOK, "thread/detail.html", gin.H{
		"Related":       related,
		"Title":         t.Title,
		"Thread":        t,
		"Segments":      segments,
		"Stats":         stats,
		"ReactionTypes": services.ReactionTypes,
	})
}
