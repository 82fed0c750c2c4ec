// Package api exposes the directory, admin and crawl-control surfaces over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/crawler"
	"github.com/Sriram-PR/card-directory/pkg/directory"
	"github.com/Sriram-PR/card-directory/pkg/metrics"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// CrawlController is the crawl surface the API drives
type CrawlController interface {
	Enqueue(urls []string) int
	Start(ctx context.Context) (string, error)
	Stop() bool
	Status() crawler.Status
	ClearQueue() int
	RecentOutcomes(limit int) ([]models.CrawlOutcome, error)
	LatestOutcome(url string) (*models.CrawlOutcome, bool, error)
}

// Deps wires the router to its collaborators
type Deps struct {
	Directory *directory.Service
	Crawl     CrawlController
	Metrics   *metrics.Metrics    // Optional request metrics
	Gatherer  prometheus.Gatherer // Serves /metrics when non-nil

	// RunContext bounds crawl runs started over HTTP. Request contexts end
	// with the response, so runs cannot use them.
	RunContext context.Context
}

type handlers struct {
	dir    *directory.Service
	crawl  CrawlController
	runCtx context.Context
	log    *logrus.Entry
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Deps, log *logrus.Entry) *gin.Engine {
	log = log.WithField("component", "api")
	runCtx := deps.RunContext
	if runCtx == nil {
		runCtx = context.Background()
	}
	h := &handlers{dir: deps.Directory, crawl: deps.Crawl, runCtx: runCtx, log: log}

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(loggerMiddleware(log, deps.Metrics))

	router.GET("/health", h.health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.GET("/search", h.search)
	api.GET("/card/:id", h.getCard)
	api.POST("/report", h.submitReport)
	api.GET("/categories", h.categoryTree)
	api.GET("/categories/:code", h.categoryNode)

	admin := api.Group("/admin")
	admin.GET("/cards", h.listCards)
	admin.POST("/cards", h.createCard)
	admin.GET("/cards/:id", h.getAdminCard)
	admin.PUT("/cards/:id", h.updateCard)
	admin.DELETE("/cards/:id", h.deleteCard)
	admin.GET("/categories", h.storedCategories)
	admin.GET("/feedback", h.listFeedback)
	admin.PUT("/feedback/:id", h.updateFeedback)

	crawl := admin.Group("/crawl")
	crawl.POST("/queue", h.enqueue)
	crawl.DELETE("/queue", h.clearQueue)
	crawl.POST("/start", h.startCrawl)
	crawl.POST("/stop", h.stopCrawl)
	crawl.GET("/status", h.crawlStatus)
	crawl.GET("/outcomes", h.crawlOutcomes)

	return router
}

// respondError maps an error onto a status code and a JSON error body
func (h *handlers) respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, utils.ErrValidation):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, utils.ErrNotFound):
		status = http.StatusNotFound
	}

	entry := h.log.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"error_type": utils.CategorizeError(err),
	})
	if status == http.StatusInternalServerError {
		entry.Errorf("%s: %v", message, err)
	} else {
		entry.Debugf("%s: %v", message, err)
	}
	c.JSON(status, gin.H{"error": message})
}

// respondLookupError reports a missing row with notFound and any other
// failure with failed
func (h *handlers) respondLookupError(c *gin.Context, err error, notFound, failed string) {
	if errors.Is(err, utils.ErrNotFound) {
		failed = notFound
	}
	h.respondError(c, err, failed)
}

// idParam parses a positive integer path parameter
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
