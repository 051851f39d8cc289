package handlers

import (
	"net/http"

	"threadspire/internal/services"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactions *services.ReactionService
	threads   *services.ThreadService
}

func NewReactionHandler(svc *services.Services) *ReactionHandler {
	return &ReactionHandler{reactions: svc.Reactions, threads: svc.Threads}
}

type reactionBody struct {
	Type      string  `json:"type"`
	SegmentID *string `json:"segment_id"`
}

// readBody accepts the reaction either as a JSON body or as query
// parameters, which is what DELETE clients usually send.
func readBody(c *gin.Context) (reactionBody, bool) {
	var body reactionBody
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &body) {
			return body, false
		}
	}
	if body.Type == "" {
		body.Type = c.Query("type")
	}
	if body.SegmentID == nil {
		body.SegmentID = segmentParam(c)
	}
	return body, true
}

func (h *ReactionHandler) Counts(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := c.Param("id")
	if err := h.threads.CheckReadable(ctx, threadID); err != nil {
		Fail(c, err)
		return
	}
	counts, err := h.reactions.GetReactionCounts(ctx, threadID, segmentParam(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (h *ReactionHandler) Mine(c *gin.Context) {
	types, err := h.reactions.GetUserReactions(c.Request.Context(), c.Param("id"), segmentParam(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": types})
}

func (h *ReactionHandler) Users(c *gin.Context) {
	users, err := h.reactions.GetReactionUsers(c.Request.Context(), c.Param("id"), c.Query("type"), segmentParam(c))
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Add toggles a reaction: the same type twice removes it.
func (h *ReactionHandler) Add(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	state, err := h.reactions.AddReaction(c.Request.Context(), c.Param("id"), body.Type, body.SegmentID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ReactionHandler) Remove(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	state, err := h.reactions.RemoveReaction(c.Request.Context(), c.Param("id"), body.Type, body.SegmentID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Stream pushes reaction counts of one target as server-sent events: the
// current snapshot first, then one event per change.
func (h *ReactionHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	threadID := c.Param("id")
	segmentID := segmentParam(c)
	if err := h.threads.CheckReadable(ctx, threadID); err != nil {
		Fail(c, err)
		return
	}

	updates, cancel := h.reactions.Subscribe(threadID, segmentID)
	defer cancel()
	initial, err := h.reactions.GetReactionCounts(ctx, threadID, segmentID)
	if err != nil {
		Fail(c, err)
		return
	}

	openStream(c, "counts", initial)
	pump(c, "counts", updates)
}
