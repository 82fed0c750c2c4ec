// Package crawler owns the crawl queue and drains it through the ingest pipeline.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/extract"
	"github.com/Sriram-PR/card-directory/pkg/ingest"
	"github.com/Sriram-PR/card-directory/pkg/metrics"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/storage"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

const (
	defaultDelay      = 2 * time.Second
	recentOutcomesCap = 100
)

// PageFetcher retrieves a page body
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// CandidateSaver persists extracted candidates
type CandidateSaver interface {
	Save(ctx context.Context, candidate *models.CandidateRecord) ingest.SaveResult
}

// Options holds optional Coordinator collaborators and tuning
type Options struct {
	Delay   time.Duration         // Pause after each URL (0 = default 2s, negative = none)
	Ledger  storage.OutcomeLedger // Optional persistent outcome record
	Metrics *metrics.Metrics      // Optional
}

// Status is a point-in-time snapshot of the Coordinator
type Status struct {
	Running    bool       `json:"running"`
	Stopping   bool       `json:"stopping"` // Stop requested, in-flight URL still finishing
	QueueDepth int        `json:"queueDepth"`
	SeenCount  int        `json:"seenCount"`
	RunID      string     `json:"runId,omitempty"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	Processed  int        `json:"processed"` // Counters below are for the current or last run
	Saved      int        `json:"saved"`
	Duplicates int        `json:"duplicates"`
	Failures   int        `json:"failures"`
	LastURL    string     `json:"lastUrl,omitempty"`
	Recorded   int        `json:"recordedOutcomes"` // Ledger size, or the in-memory ring without one
}

// Coordinator holds the URL queue and runs at most one drain loop at a time.
// Each dequeued URL goes through fetch, extract, duplicate check and save,
// followed by a fixed pause. All state is guarded by mu.
type Coordinator struct {
	fetcher   PageFetcher
	extractor extract.Extractor
	saver     CandidateSaver
	ledger    storage.OutcomeLedger
	metrics   *metrics.Metrics
	delay     time.Duration
	log       *logrus.Entry

	mu        sync.Mutex
	running   bool
	queue     []string
	queued    map[string]struct{}
	seen      map[string]struct{} // Every URL ever dequeued; never shrinks
	runID     string
	startedAt time.Time
	stats     runStats
	lastURL   string
	recent    []models.CrawlOutcome // Newest last, bounded by recentOutcomesCap
	stopCh    chan struct{}         // Closed by Stop to cut the pause short
	done      chan struct{}         // Closed when the drain loop returns
}

type runStats struct {
	processed, saved, duplicates, failures int
}

// NewCoordinator creates an idle Coordinator with an empty queue
func NewCoordinator(fetcher PageFetcher, extractor extract.Extractor, saver CandidateSaver, opts Options, log *logrus.Entry) *Coordinator {
	delay := opts.Delay
	switch {
	case delay == 0:
		delay = defaultDelay
	case delay < 0:
		delay = 0
	}
	return &Coordinator{
		fetcher:   fetcher,
		extractor: extractor,
		saver:     saver,
		ledger:    opts.Ledger,
		metrics:   opts.Metrics,
		delay:     delay,
		log:       log.WithField("component", "coordinator"),
		queued:    make(map[string]struct{}),
		seen:      make(map[string]struct{}),
	}
}

// Enqueue appends URLs that are neither queued nor already seen, keeping
// their order. Repeats within urls collapse. Returns how many were added.
func (c *Coordinator) Enqueue(urls []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, ok := c.queued[u]; ok {
			continue
		}
		if _, ok := c.seen[u]; ok {
			continue
		}
		c.queue = append(c.queue, u)
		c.queued[u] = struct{}{}
		added++
	}

	c.metrics.Enqueued(added)
	c.metrics.SetQueueDepth(len(c.queue))
	if added > 0 {
		c.log.WithFields(logrus.Fields{"added": added, "queue_depth": len(c.queue)}).Info("URLs enqueued")
	}
	return added
}

// Start launches a drain loop in its own goroutine and returns its run id.
// ctx bounds the whole run; cancelling it ends the loop after the current URL.
// Fails with utils.ErrAlreadyRunning while a run is active. After Stop, a new
// run may start at once; it dequeues nothing until the stopped loop has
// finished its in-flight URL.
func (c *Coordinator) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return "", fmt.Errorf("%w: run %s is active", utils.ErrAlreadyRunning, c.runID)
	}

	prev := c.done
	c.running = true
	c.runID = uuid.NewString()
	c.startedAt = time.Now()
	c.stats = runStats{}
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})

	runLog := c.log.WithField("run_id", c.runID)
	runLog.WithField("queue_depth", len(c.queue)).Info("Crawl run started")
	c.metrics.SetRunning(true)

	go c.drain(ctx, c.runID, prev, c.stopCh, c.done, runLog)
	return c.runID, nil
}

// Stop requests the active loop to end. The URL being processed completes;
// no further URL is dequeued. Returns false when nothing was running.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return false
	}
	c.running = false
	close(c.stopCh)
	c.metrics.SetRunning(false)
	c.log.WithField("run_id", c.runID).Info("Crawl stop requested")
	return true
}

// Wait blocks until the current (or last) drain loop has returned
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// ClearQueue drops every pending URL and returns how many were removed.
// Seen URLs stay seen.
func (c *Coordinator) ClearQueue() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.queue)
	c.queue = nil
	c.queued = make(map[string]struct{})
	c.metrics.SetQueueDepth(0)
	if n > 0 {
		c.log.WithField("removed", n).Info("Crawl queue cleared")
	}
	return n
}

// Status returns a snapshot of the queue and run counters
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Running:    c.running,
		QueueDepth: len(c.queue),
		SeenCount:  len(c.seen),
		RunID:      c.runID,
		Processed:  c.stats.processed,
		Saved:      c.stats.saved,
		Duplicates: c.stats.duplicates,
		Failures:   c.stats.failures,
		LastURL:    c.lastURL,
		Recorded:   len(c.recent),
	}
	if c.ledger != nil {
		s.Recorded = c.ledger.Count()
	}
	if !c.startedAt.IsZero() {
		started := c.startedAt
		s.StartedAt = &started
	}
	if !c.running && c.done != nil {
		select {
		case <-c.done:
		default:
			s.Stopping = true
		}
	}
	return s
}

// RecentOutcomes returns up to limit outcomes, newest first. The ledger is
// used when configured, otherwise the in-memory tail of this process.
func (c *Coordinator) RecentOutcomes(limit int) ([]models.CrawlOutcome, error) {
	if c.ledger != nil {
		return c.ledger.RecentOutcomes(limit)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := []models.CrawlOutcome{}
	for i := len(c.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, c.recent[i])
	}
	return out, nil
}

// LatestOutcome returns the newest outcome recorded for rawURL. Without a
// ledger only the in-memory ring is searched.
func (c *Coordinator) LatestOutcome(rawURL string) (*models.CrawlOutcome, bool, error) {
	if c.ledger != nil {
		return c.ledger.LatestOutcome(rawURL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.recent) - 1; i >= 0; i-- {
		if c.recent[i].URL == rawURL {
			outcome := c.recent[i]
			return &outcome, true, nil
		}
	}
	return nil, false, nil
}

// drain is the loop body of one run. prev, when non-nil, is the done channel
// of the previous run, which must finish before this one dequeues.
func (c *Coordinator) drain(ctx context.Context, runID string, prev <-chan struct{}, stopCh, done chan struct{}, runLog *logrus.Entry) {
	defer close(done)

	// Wait even if this run is stopped early: done must not close while an
	// older loop is still processing, or a later run could overlap it.
	if prev != nil {
		<-prev
	}

	for {
		next, ok := c.dequeue(ctx, runID)
		if !ok {
			break
		}

		c.record(runID, c.process(ctx, runID, next), runLog)

		if !c.pause(ctx, stopCh) {
			break
		}
	}

	c.mu.Lock()
	if c.runID == runID && c.running {
		c.running = false
		c.metrics.SetRunning(false)
	}
	stats := c.stats
	if c.runID != runID {
		stats = runStats{}
	}
	c.mu.Unlock()

	runLog.WithFields(logrus.Fields{
		"processed":  stats.processed,
		"saved":      stats.saved,
		"duplicates": stats.duplicates,
		"failures":   stats.failures,
	}).Info("Crawl run finished")
}

// dequeue pops the head URL and marks it seen. It reports false, and marks
// the coordinator idle, when the run should end. A run that has been
// superseded by a newer Start never dequeues.
func (c *Coordinator) dequeue(ctx context.Context, runID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.runID != runID {
		return "", false
	}
	if ctx.Err() != nil || len(c.queue) == 0 {
		c.running = false
		c.metrics.SetRunning(false)
		return "", false
	}

	next := c.queue[0]
	c.queue[0] = ""
	c.queue = c.queue[1:]
	delete(c.queued, next)
	c.seen[next] = struct{}{}
	c.lastURL = next
	c.metrics.SetQueueDepth(len(c.queue))
	return next, true
}

// pause waits the inter-URL delay. Returns false if the run was stopped or
// its context cancelled meanwhile.
func (c *Coordinator) pause(ctx context.Context, stopCh <-chan struct{}) bool {
	if c.delay <= 0 {
		select {
		case <-stopCh:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// process runs the pipeline for one URL. It never panics; a panic anywhere
// in the pipeline becomes a failed outcome.
func (c *Coordinator) process(ctx context.Context, runID, rawURL string) (outcome models.CrawlOutcome) {
	outcome = models.CrawlOutcome{URL: rawURL, RunID: runID}
	taskLog := c.log.WithFields(logrus.Fields{"run_id": runID, "url": rawURL})

	defer func() {
		if r := recover(); r != nil {
			outcome.Result = models.OutcomeFailed
			outcome.ErrorType = "Internal_Panic"
			outcome.Message = fmt.Sprintf("panic: %v", r)
			outcome.CardID = 0
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("Recovered panic while processing URL")
		}
		outcome.ProcessedAt = time.Now()
	}()

	fail := func(err error) models.CrawlOutcome {
		outcome.Result = models.OutcomeFailed
		outcome.ErrorType = utils.CategorizeError(err)
		outcome.Message = err.Error()
		return outcome
	}

	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, rawURL)
	c.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return fail(err)
	}

	source, err := url.Parse(rawURL)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", utils.ErrParsing, err))
	}

	candidate, err := c.extractor.Extract(body, source)
	if err != nil {
		return fail(err)
	}

	res := c.saver.Save(ctx, candidate)
	switch {
	case res.Accepted:
		outcome.Result = models.OutcomeSaved
		outcome.CardID = res.CardID
		outcome.Message = candidate.Name
	case res.Reason == ingest.ReasonAlreadyExists:
		outcome.Result = models.OutcomeDuplicate
		outcome.ErrorType = utils.CategorizeError(res.Err)
		if res.Err != nil {
			outcome.Message = res.Err.Error()
		}
	default:
		err := res.Err
		if err == nil {
			err = fmt.Errorf("%w: save rejected (%s)", utils.ErrDatabase, res.Reason)
		}
		return fail(err)
	}
	return outcome
}

// record folds an outcome into the run counters, metrics, ledger and log.
// Counters only move for the current run.
func (c *Coordinator) record(runID string, outcome models.CrawlOutcome, runLog *logrus.Entry) {
	c.mu.Lock()
	if c.runID == runID {
		c.stats.processed++
		switch outcome.Result {
		case models.OutcomeSaved:
			c.stats.saved++
		case models.OutcomeDuplicate:
			c.stats.duplicates++
		default:
			c.stats.failures++
		}
	}
	c.recent = append(c.recent, outcome)
	if len(c.recent) > recentOutcomesCap {
		c.recent = c.recent[len(c.recent)-recentOutcomesCap:]
	}
	c.mu.Unlock()

	errorType := outcome.ErrorType
	if errorType == "" {
		errorType = "None"
	}
	c.metrics.Processed(outcome.Result.String(), errorType)

	if c.ledger != nil {
		if err := c.ledger.RecordOutcome(outcome); err != nil {
			runLog.WithField("url", outcome.URL).Warnf("Failed to record outcome: %v", err)
		}
	}

	entry := runLog.WithFields(logrus.Fields{"url": outcome.URL, "result": outcome.Result})
	switch outcome.Result {
	case models.OutcomeSaved:
		entry.WithField("card_id", outcome.CardID).Info("URL processed")
	case models.OutcomeDuplicate:
		entry.Info("URL skipped, card already exists")
	default:
		entry.WithField("error_type", outcome.ErrorType).Warnf("URL failed: %s", outcome.Message)
	}
}
