package handlers

import (
	"net/http"

	"threadspire/internal/services"
	"threadspire/internal/utils"

	"github.com/gin-gonic/gin"
)

type BookmarkHandler struct {
	bookmarks *services.BookmarkService
}

func NewBookmarkHandler(svc *services.Services) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: svc.Bookmarks}
}

// Toggle bookmarks the thread or removes the bookmark.
func (h *BookmarkHandler) Toggle(c *gin.Context) {
	on, err := h.bookmarks.ToggleBookmark(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": on})
}

func (h *BookmarkHandler) List(c *gin.Context) {
	page := utils.IntInRange(c.Query("page"), 1, 1, 10000)
	limit := utils.IntInRange(c.Query("limit"), 10, 1, 100)
	threads, err := h.bookmarks.ListBookmarks(c.Request.Context(), page, limit)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads, "page": page, "limit": limit})
}
