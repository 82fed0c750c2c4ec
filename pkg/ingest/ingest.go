// Package ingest decides whether extracted candidates are new and persists them.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// Save rejection reasons
const (
	ReasonAlreadyExists = "already_exists"
	ReasonStorageError  = "storage_error"
	ReasonInvalid       = "invalid_candidate"
)

// CardCounter is the slice of the card store the duplicate check needs
type CardCounter interface {
	CountMatching(ctx context.Context, website, name string) (int, error)
}

// CardInserter is the slice of the card store the gateway writes through
type CardInserter interface {
	InsertCard(ctx context.Context, card *models.Card) (int64, error)
}

// DuplicateChecker reports whether a candidate is already in the directory
type DuplicateChecker struct {
	store CardCounter
	log   *logrus.Entry
}

// NewDuplicateChecker creates a DuplicateChecker over store
func NewDuplicateChecker(store CardCounter, log *logrus.Entry) *DuplicateChecker {
	return &DuplicateChecker{store: store, log: log.WithField("component", "duplicate_checker")}
}

// IsDuplicate returns true when a stored card has the same website or the
// same name as candidate. Names compare exactly, no normalization.
// A storage failure also returns true so that nothing is inserted blind.
func (d *DuplicateChecker) IsDuplicate(ctx context.Context, candidate *models.CandidateRecord) bool {
	n, err := d.store.CountMatching(ctx, candidate.Website, candidate.Name)
	if err != nil {
		d.log.WithFields(logrus.Fields{
			"website":    candidate.Website,
			"error_type": utils.CategorizeError(err),
		}).Errorf("Duplicate check failed, treating candidate as duplicate: %v", err)
		return true
	}
	return n > 0
}

// SaveResult reports what happened to a candidate handed to the Gateway
type SaveResult struct {
	Accepted bool
	Reason   string // Empty when accepted
	CardID   int64  // Set when accepted
	Err      error  // Cause when not accepted
}

// Gateway writes new candidates as pending directory rows
type Gateway struct {
	store   CardInserter
	checker *DuplicateChecker
	log     *logrus.Entry
}

// NewGateway creates a Gateway that checks duplicates through checker
func NewGateway(store CardInserter, checker *DuplicateChecker, log *logrus.Entry) *Gateway {
	return &Gateway{store: store, checker: checker, log: log.WithField("component", "persistence_gateway")}
}

// Save persists candidate unless it duplicates an existing card
func (g *Gateway) Save(ctx context.Context, candidate *models.CandidateRecord) SaveResult {
	if candidate == nil || strings.TrimSpace(candidate.Name) == "" {
		return SaveResult{Reason: ReasonInvalid, Err: fmt.Errorf("%w: candidate has no name", utils.ErrValidation)}
	}

	if g.checker.IsDuplicate(ctx, candidate) {
		return SaveResult{
			Reason: ReasonAlreadyExists,
			Err:    fmt.Errorf("%w: %s (%s)", utils.ErrAlreadyExists, candidate.Name, candidate.Website),
		}
	}

	id, err := g.store.InsertCard(ctx, CardFromCandidate(candidate))
	if err != nil {
		g.log.WithField("website", candidate.Website).Errorf("Insert failed: %v", err)
		return SaveResult{Reason: ReasonStorageError, Err: err}
	}

	g.log.WithFields(logrus.Fields{"card_id": id, "name": candidate.Name}).Info("Saved pending card")
	return SaveResult{Accepted: true, CardID: id}
}

// CardFromCandidate maps a candidate onto the stored row shape: empty
// optional fields become NULL, lists are joined and the category defaults.
func CardFromCandidate(c *models.CandidateRecord) *models.Card {
	category := strings.TrimSpace(c.Category)
	if category == "" {
		category = models.UnclassifiedCategory
	}
	return &models.Card{
		Name:        strings.TrimSpace(c.Name),
		Description: models.NullableString(c.Description),
		Website:     models.NullableString(c.Website),
		Phone:       models.JoinList(c.Phones),
		Email:       models.JoinList(c.Emails),
		Address:     models.NullableString(c.Address),
		Category:    &category,
		Status:      models.CardStatusPending,
	}
}
