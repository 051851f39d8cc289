package handlers

import (
	"encoding/json"
	"net/http"

	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

type DraftHandler struct {
	drafts   *services.DraftService
	previews *services.PreviewService
}

func NewDraftHandler(svc *services.Services) *DraftHandler {
	return &DraftHandler{drafts: svc.Drafts, previews: svc.Previews}
}

// draftBody keeps content raw: drafts store whatever the editor sends and
// normalize it on read.
type draftBody struct {
	Title   *string         `json:"title"`
	Content json.RawMessage `json:"content"`
}

func (h *DraftHandler) List(c *gin.Context) {
	drafts, err := h.drafts.ListDrafts(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

func (h *DraftHandler) Get(c *gin.Context) {
	d, err := h.drafts.GetDraftByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DraftHandler) Create(c *gin.Context) {
	var body draftBody
	if !bindJSON(c, &body) {
		return
	}
	title := ""
	if body.Title != nil {
		title = *body.Title
	}
	d, err := h.drafts.CreateDraft(c.Request.Context(), title, body.Content)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DraftHandler) Update(c *gin.Context) {
	var body draftBody
	if !bindJSON(c, &body) {
		return
	}
	d, err := h.drafts.UpdateDraft(c.Request.Context(), c.Param("id"), body.Title, body.Content)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.drafts.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DraftHandler) Publish(c *gin.Context) {
	t, err := h.drafts.PublishDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// Preview renders an unsaved thread. Anonymous callers may preview.
func (h *DraftHandler) Preview(c *gin.Context) {
	var in services.CreateThreadInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.previews.GeneratePreview(c.Request.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *DraftHandler) SavePreview(c *gin.Context) {
	var in services.CreateThreadInput
	if !bindJSON(c, &in) {
		return
	}
	d, err := h.previews.SavePreviewAsDraft(c.Request.Context(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}
