package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sriram-PR/card-directory/pkg/utils"
)

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

type enqueueRequest struct {
	URLs []string `json:"urls"`
}

func (h *handlers) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URLs == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "urls must be an array of URLs"})
		return
	}
	added := h.crawl.Enqueue(req.URLs)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   fmt.Sprintf("added %d URLs to the crawl queue", added),
		"added":     added,
		"queueSize": h.crawl.Status().QueueDepth,
	})
}

func (h *handlers) clearQueue(c *gin.Context) {
	removed := h.crawl.ClearQueue()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "crawl queue cleared",
		"removed":   removed,
		"queueSize": h.crawl.Status().QueueDepth,
	})
}

func (h *handlers) startCrawl(c *gin.Context) {
	runID, err := h.crawl.Start(h.runCtx)
	if errors.Is(err, utils.ErrAlreadyRunning) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "a crawl is already running"})
		return
	}
	if err != nil {
		h.respondError(c, err, "failed to start crawl")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "crawl started",
		"runId":     runID,
		"queueSize": h.crawl.Status().QueueDepth,
	})
}

func (h *handlers) stopCrawl(c *gin.Context) {
	message := "crawl stopped"
	wasRunning := h.crawl.Stop()
	if !wasRunning {
		message = "no crawl was running"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "wasRunning": wasRunning})
}

func (h *handlers) crawlStatus(c *gin.Context) {
	st := h.crawl.Status()
	c.JSON(http.StatusOK, gin.H{
		"isCrawling":     st.Running,
		"stopping":       st.Stopping,
		"queueSize":      st.QueueDepth,
		"processedCount": st.SeenCount,
		"runId":          st.RunID,
		"startedAt":      st.StartedAt,
		"run": gin.H{
			"processed":  st.Processed,
			"saved":      st.Saved,
			"duplicates": st.Duplicates,
			"failures":   st.Failures,
			"lastUrl":    st.LastURL,
		},
		"recordedOutcomes": st.Recorded,
	})
}

// crawlOutcomes lists recent outcomes, or the latest one for ?url=
func (h *handlers) crawlOutcomes(c *gin.Context) {
	if rawURL := c.Query("url"); rawURL != "" {
		outcome, found, err := h.crawl.LatestOutcome(rawURL)
		if err != nil {
			h.respondError(c, err, "failed to read crawl outcome")
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "no outcome recorded for url"})
			return
		}
		c.JSON(http.StatusOK, outcome)
		return
	}

	limit := defaultOutcomeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxOutcomeLimit)
	}
	outcomes, err := h.crawl.RecentOutcomes(limit)
	if err != nil {
		h.respondError(c, err, "failed to read crawl outcomes")
		return
	}
	c.JSON(http.StatusOK, outcomes)
}
