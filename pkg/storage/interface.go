package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/card-directory/pkg/models"
)

// CardStore handles directory rows
type CardStore interface {
	// SearchCards returns cards whose text columns contain keyword, ordered by id.
	// An empty keyword matches every card.
	SearchCards(ctx context.Context, keyword string) ([]models.Card, error)

	// ListCards returns every card ordered by id
	ListCards(ctx context.Context) ([]models.Card, error)

	// GetCard returns the card with the given id or an error wrapping utils.ErrNotFound
	GetCard(ctx context.Context, id int64) (*models.Card, error)

	// InsertCard stores card under id max(id)+1 and returns the new id.
	// card.ID is ignored. The read of max(id) and the write are not serialized
	// against other writers.
	InsertCard(ctx context.Context, card *models.Card) (int64, error)

	// UpdateCard overwrites the editable columns of card.ID and bumps last_updated.
	// An unset card.Status keeps the stored status.
	UpdateCard(ctx context.Context, card *models.Card) error

	// DeleteCard removes a card. Feedback rows keep existing with a NULL card id.
	DeleteCard(ctx context.Context, id int64) error

	// CountMatching counts cards whose website equals website OR whose name equals name
	CountMatching(ctx context.Context, website, name string) (int, error)

	// Categories returns the distinct non-empty stored categories, sorted
	Categories(ctx context.Context) ([]string, error)
}

// FeedbackUpdate carries the triage fields an admin may set on a report
type FeedbackUpdate struct {
	Status      models.FeedbackStatus
	ProcessedBy *string
	Resolution  *string
}

// FeedbackStore handles error reports filed against cards
type FeedbackStore interface {
	// CreateFeedback files a new report; a missing card yields utils.ErrNotFound
	CreateFeedback(ctx context.Context, cardID int64, content string) (int64, error)

	// ListFeedback returns every report, newest first, joined with the card name
	ListFeedback(ctx context.Context) ([]models.Feedback, error)

	// UpdateFeedback applies an admin decision and stamps processed_at
	UpdateFeedback(ctx context.Context, id int64, update FeedbackUpdate) error
}

// OutcomeLedger records the per-URL result of each pipeline run
type OutcomeLedger interface {
	RecordOutcome(outcome models.CrawlOutcome) error

	// RecentOutcomes returns up to limit outcomes, newest first
	RecentOutcomes(limit int) ([]models.CrawlOutcome, error)

	// LatestOutcome returns the most recent outcome for url, if any
	LatestOutcome(url string) (*models.CrawlOutcome, bool, error)

	// Count returns the number of recorded outcomes
	Count() int
}

// LedgerAdmin handles lifecycle operations of the outcome ledger
type LedgerAdmin interface {
	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the ledger
	Close() error
}

// DirectoryStore combines the relational store interfaces
type DirectoryStore interface {
	CardStore
	FeedbackStore
	Ping(ctx context.Context) error
	Close() error
}
