package handlers

import (
	"net/http"

	"threadspire/internal/auth"
	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

type CollectionHandler struct {
	collections *services.CollectionService
}

func NewCollectionHandler(svc *services.Services) *CollectionHandler {
	return &CollectionHandler{collections: svc.Collections}
}

func (h *CollectionHandler) Create(c *gin.Context) {
	var body struct {
		Name      string `json:"name"`
		IsPrivate bool   `json:"is_private"`
	}
	if !bindJSON(c, &body) {
		return
	}
	col, err := h.collections.CreateCollection(c.Request.Context(), body.Name, body.IsPrivate)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	col, err := h.collections.GetCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *CollectionHandler) Update(c *gin.Context) {
	var in services.CollectionUpdate
	if !bindJSON(c, &in) {
		return
	}
	col, err := h.collections.UpdateCollection(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.collections.DeleteCollection(c.Request.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CollectionHandler) AddThread(c *gin.Context) {
	var body struct {
		ThreadID string `json:"thread_id"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if err := h.collections.AddThreadToCollection(c.Request.Context(), c.Param("id"), body.ThreadID); err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CollectionHandler) RemoveThread(c *gin.Context) {
	err := h.collections.RemoveThreadFromCollection(c.Request.Context(), c.Param("id"), c.Param("threadId"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CollectionHandler) Contains(c *gin.Context) {
	in, err := h.collections.IsThreadInCollection(c.Request.Context(), c.Param("id"), c.Param("threadId"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"in_collection": in})
}

// ListForUser serves GET /api/users/:id/collections.
func (h *CollectionHandler) ListForUser(c *gin.Context) {
	cols, err := h.collections.ListUserCollections(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": cols})
}

// Stream pushes changes to the caller's collections as server-sent events,
// starting with the current list.
func (h *CollectionHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	updates, cancel, err := h.collections.Subscribe(ctx)
	if err != nil {
		Fail(c, err)
		return
	}
	defer cancel()

	userID, _ := auth.UserID(ctx)
	list, err := h.collections.ListUserCollections(ctx, userID)
	if err != nil {
		Fail(c, err)
		return
	}

	openStream(c, "collections", list)
	pump(c, "collection", updates)
}
