package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sriram-PR/card-directory/pkg/directory"
)

const healthPingTimeout = 2 * time.Second

type reportRequest struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	if err := h.dir.Ping(ctx); err != nil {
		h.log.Warnf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// search ignores the categoryLevel1..3 query parameters; cards carry no
// level columns to filter on.
func (h *handlers) search(c *gin.Context) {
	cards, err := h.dir.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		h.respondError(c, err, "search failed")
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *handlers) getCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	card, err := h.dir.GetCard(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err, "card not found", "failed to load card")
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *handlers) submitReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ID <= 0 || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and content are required"})
		return
	}
	id, err := h.dir.SubmitFeedback(c.Request.Context(), req.ID, req.Content)
	if err != nil {
		h.respondLookupError(c, err, "card not found", "failed to submit report")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "report submitted", "feedbackId": id})
}

func (h *handlers) categoryTree(c *gin.Context) {
	tree, err := h.dir.CategoryTree()
	if err != nil {
		h.respondError(c, err, "category tree unavailable")
		return
	}
	c.JSON(http.StatusOK, tree)
}

func (h *handlers) listCards(c *gin.Context) {
	cards, err := h.dir.ListCards(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list cards")
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *handlers) getAdminCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	card, err := h.dir.GetAdminCard(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, err, "card not found", "failed to load card")
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *handlers) createCard(c *gin.Context) {
	var in directory.CardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	id, err := h.dir.CreateCard(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err, "failed to create card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "card created", "id": id})
}

func (h *handlers) updateCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in directory.CardInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := h.dir.UpdateCard(c.Request.Context(), id, in); err != nil {
		h.respondLookupError(c, err, "card not found", "failed to update card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "card updated"})
}

func (h *handlers) deleteCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.dir.DeleteCard(c.Request.Context(), id); err != nil {
		h.respondLookupError(c, err, "card not found", "failed to delete card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "card deleted"})
}

// categoryNode returns one node of the static tree, matched by code or name
func (h *handlers) categoryNode(c *gin.Context) {
	match, err := h.dir.Category(c.Param("code"))
	if err != nil {
		h.respondLookupError(c, err, "category not found", "category tree unavailable")
		return
	}
	c.JSON(http.StatusOK, match)
}

func (h *handlers) storedCategories(c *gin.Context) {
	categories, err := h.dir.StoredCategories(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *handlers) listFeedback(c *gin.Context) {
	feedback, err := h.dir.ListFeedback(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "failed to list feedback")
		return
	}
	c.JSON(http.StatusOK, feedback)
}

func (h *handlers) updateFeedback(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in directory.FeedbackInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := h.dir.UpdateFeedback(c.Request.Context(), id, in); err != nil {
		h.respondLookupError(c, err, "feedback not found", "failed to update feedback")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "feedback updated"})
}
