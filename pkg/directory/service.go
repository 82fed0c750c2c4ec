// Package directory implements the public and admin operations over the card
// directory: search, lookup, CRUD, feedback triage and category listings.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/category"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/storage"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

// CardView is the JSON shape of a card returned to clients
type CardView struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Description    *string           `json:"description"`
	Website        *string           `json:"website"`
	Phone          []string          `json:"phone"`
	Email          []string          `json:"email"`
	Address        *string           `json:"address"`
	QRCode         *string           `json:"qrCode"`
	Category       string            `json:"category"`
	CategoryPath   *string           `json:"categoryPath"` // Root-to-node names when category is in the static tree
	SearchKeywords *string           `json:"searchKeywords,omitempty"`
	Status         models.CardStatus `json:"status,omitempty"`
	LastUpdated    *time.Time        `json:"lastUpdated"`
}

// CardInput is an admin create or update request. An empty Status publishes
// a new card and leaves the stored status of an updated one untouched, so
// editing a crawled card does not approve it.
type CardInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Website        string   `json:"website"`
	Phone          []string `json:"phone"`
	Email          []string `json:"email"`
	Address        string   `json:"address"`
	QRCode         string   `json:"qrCode"`
	Category       string   `json:"category"`
	SearchKeywords string   `json:"searchKeywords"`
	Status         string   `json:"status"`
}

// CategoryMatch is one node of the static tree with its root-to-node path
type CategoryMatch struct {
	Node models.CategoryNode `json:"node"`
	Path string              `json:"path"`
}

// FeedbackInput is an admin triage decision
type FeedbackInput struct {
	Status      string `json:"status"`
	ProcessedBy string `json:"processedBy"`
	Resolution  string `json:"resolution"`
}

// Service answers directory queries against a DirectoryStore
type Service struct {
	store storage.DirectoryStore
	log   *logrus.Entry
}

// NewService creates a Service over store
func NewService(store storage.DirectoryStore, log *logrus.Entry) *Service {
	return &Service{store: store, log: log.WithField("component", "directory")}
}

// PublicView maps a card for end users: unclassified cards show the default
// category and admin-only columns are hidden.
func PublicView(c *models.Card) CardView {
	v := adminView(c)
	v.Category = c.CategoryOrDefault()
	v.CategoryPath = categoryPath(v.Category)
	v.SearchKeywords = nil
	v.Status = models.CardStatusUnset
	return v
}

func adminView(c *models.Card) CardView {
	return CardView{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Website:        c.Website,
		Phone:          c.Phones(),
		Email:          c.Emails(),
		Address:        c.Address,
		QRCode:         c.QRCode,
		Category:       models.Deref(c.Category),
		CategoryPath:   categoryPath(models.Deref(c.Category)),
		SearchKeywords: c.SearchKeywords,
		Status:         c.Status,
		LastUpdated:    c.LastUpdated,
	}
}

// categoryPath resolves a stored category against the static tree.
// Free-text categories have no path.
func categoryPath(value string) *string {
	if value == "" {
		return nil
	}
	tree, err := category.Tree()
	if err != nil {
		return nil
	}
	path, ok := category.Path(tree, value)
	if !ok {
		return nil
	}
	return &path
}

// Search returns published and pending cards whose text columns contain keyword
func (s *Service) Search(ctx context.Context, keyword string) ([]CardView, error) {
	cards, err := s.store.SearchCards(ctx, strings.TrimSpace(keyword))
	if err != nil {
		return nil, err
	}
	out := make([]CardView, 0, len(cards))
	for i := range cards {
		out = append(out, PublicView(&cards[i]))
	}
	return out, nil
}

// GetCard returns the public view of one card
func (s *Service) GetCard(ctx context.Context, id int64) (CardView, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return CardView{}, err
	}
	return PublicView(card), nil
}

// ListCards returns every card with admin columns
func (s *Service) ListCards(ctx context.Context) ([]CardView, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CardView, 0, len(cards))
	for i := range cards {
		out = append(out, adminView(&cards[i]))
	}
	return out, nil
}

// GetAdminCard returns one card with admin columns
func (s *Service) GetAdminCard(ctx context.Context, id int64) (CardView, error) {
	card, err := s.store.GetCard(ctx, id)
	if err != nil {
		return CardView{}, err
	}
	return adminView(card), nil
}

// CreateCard stores a card, published unless in.Status says otherwise, and
// returns its id
func (s *Service) CreateCard(ctx context.Context, in CardInput) (int64, error) {
	card, err := cardFromInput(in)
	if err != nil {
		return 0, err
	}
	if card.Status == models.CardStatusUnset {
		card.Status = models.CardStatusPublished
	}
	id, err := s.store.InsertCard(ctx, card)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"card_id": id, "name": card.Name}).Info("Card created")
	return id, nil
}

// UpdateCard replaces the editable fields of card id. The review status only
// changes when in.Status is set.
func (s *Service) UpdateCard(ctx context.Context, id int64, in CardInput) error {
	card, err := cardFromInput(in)
	if err != nil {
		return err
	}
	card.ID = id
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"card_id": id, "status": card.Status}).Info("Card updated")
	return nil
}

// DeleteCard removes card id
func (s *Service) DeleteCard(ctx context.Context, id int64) error {
	if err := s.store.DeleteCard(ctx, id); err != nil {
		return err
	}
	s.log.WithField("card_id", id).Info("Card deleted")
	return nil
}

// SubmitFeedback files an error report against a card
func (s *Service) SubmitFeedback(ctx context.Context, cardID int64, content string) (int64, error) {
	content = strings.TrimSpace(content)
	if cardID <= 0 || content == "" {
		return 0, fmt.Errorf("%w: card id and content are required", utils.ErrValidation)
	}
	id, err := s.store.CreateFeedback(ctx, cardID, content)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"feedback_id": id, "card_id": cardID}).Info("Feedback submitted")
	return id, nil
}

// ListFeedback returns every report, newest first
func (s *Service) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	return s.store.ListFeedback(ctx)
}

// UpdateFeedback records an admin decision on report id
func (s *Service) UpdateFeedback(ctx context.Context, id int64, in FeedbackInput) error {
	status := models.FeedbackStatus(strings.TrimSpace(in.Status))
	if status == "" {
		return fmt.Errorf("%w: status is required", utils.ErrValidation)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown feedback status %q", utils.ErrValidation, status)
	}
	update := storage.FeedbackUpdate{
		Status:      status,
		ProcessedBy: models.NullableString(in.ProcessedBy),
		Resolution:  models.NullableString(in.Resolution),
	}
	if err := s.store.UpdateFeedback(ctx, id, update); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"feedback_id": id, "status": status}).Info("Feedback updated")
	return nil
}

// CategoryTree returns the static classification
func (s *Service) CategoryTree() ([]models.CategoryNode, error) {
	return category.Tree()
}

// Category looks up a node of the static tree by code or name
func (s *Service) Category(key string) (CategoryMatch, error) {
	key = strings.TrimSpace(key)
	tree, err := category.Tree()
	if err != nil {
		return CategoryMatch{}, err
	}
	node, ok := category.Find(tree, key)
	if !ok {
		return CategoryMatch{}, fmt.Errorf("%w: category %q", utils.ErrNotFound, key)
	}
	path, _ := category.Path(tree, key)
	return CategoryMatch{Node: node, Path: path}, nil
}

// StoredCategories returns the distinct categories present on cards
func (s *Service) StoredCategories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// Ping checks the store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func cardFromInput(in CardInput) (*models.Card, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", utils.ErrValidation)
	}
	status := models.CardStatus(strings.TrimSpace(in.Status))
	if status != models.CardStatusUnset && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown card status %q", utils.ErrValidation, status)
	}
	return &models.Card{
		Name:           name,
		Description:    models.NullableString(in.Description),
		Website:        models.NullableString(in.Website),
		Phone:          models.JoinList(in.Phone),
		Email:          models.JoinList(in.Email),
		Address:        models.NullableString(in.Address),
		QRCode:         models.NullableString(in.QRCode),
		Category:       models.NullableString(in.Category),
		SearchKeywords: models.NullableString(in.SearchKeywords),
		Status:         status,
	}, nil
}
