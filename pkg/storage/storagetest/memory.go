// Package storagetest provides an in-memory DirectoryStore for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/storage"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

var _ storage.DirectoryStore = (*MemoryStore)(nil)

// MemoryStore mirrors the PostgresStore semantics over slices.
// Setting Err makes every call fail with it.
type MemoryStore struct {
	mu       sync.Mutex
	cards    []models.Card
	feedback []models.Feedback
	nextFB   int64
	Err      error
}

// NewMemoryStore creates a store seeded with cards
func NewMemoryStore(cards ...models.Card) *MemoryStore {
	return &MemoryStore{cards: append([]models.Card(nil), cards...), nextFB: 1}
}

func (m *MemoryStore) fail() error {
	if m.Err != nil {
		return fmt.Errorf("%w: %w", utils.ErrDatabase, m.Err)
	}
	return nil
}

// SearchCards implements storage.CardStore
func (m *MemoryStore) SearchCards(_ context.Context, keyword string) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	out := []models.Card{}
	for _, c := range m.sorted() {
		fields := []string{c.Name, models.Deref(c.Description), models.Deref(c.Website),
			models.Deref(c.Address), models.Deref(c.Category), models.Deref(c.SearchKeywords)}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), kw) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

// ListCards implements storage.CardStore
func (m *MemoryStore) ListCards(_ context.Context) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	return m.sorted(), nil
}

// GetCard implements storage.CardStore
func (m *MemoryStore) GetCard(_ context.Context, id int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	if i := m.index(id); i >= 0 {
		c := m.cards[i]
		return &c, nil
	}
	return nil, fmt.Errorf("%w: card %d", utils.ErrNotFound, id)
}

// InsertCard implements storage.CardStore
func (m *MemoryStore) InsertCard(_ context.Context, card *models.Card) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	var maxID int64
	for _, c := range m.cards {
		maxID = max(maxID, c.ID)
	}
	stored := *card
	stored.ID = maxID + 1
	now := time.Now()
	stored.LastUpdated = &now
	m.cards = append(m.cards, stored)
	return stored.ID, nil
}

// UpdateCard implements storage.CardStore
func (m *MemoryStore) UpdateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	i := m.index(card.ID)
	if i < 0 {
		return fmt.Errorf("%w: card %d", utils.ErrNotFound, card.ID)
	}
	stored := *card
	if stored.Status == models.CardStatusUnset {
		stored.Status = m.cards[i].Status
	}
	now := time.Now()
	stored.LastUpdated = &now
	m.cards[i] = stored
	return nil
}

// DeleteCard implements storage.CardStore
func (m *MemoryStore) DeleteCard(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	i := m.index(id)
	if i < 0 {
		return fmt.Errorf("%w: card %d", utils.ErrNotFound, id)
	}
	m.cards = append(m.cards[:i], m.cards[i+1:]...)
	for j := range m.feedback {
		if m.feedback[j].CardID != nil && *m.feedback[j].CardID == id {
			m.feedback[j].CardID = nil
		}
	}
	return nil
}

// CountMatching implements storage.CardStore
func (m *MemoryStore) CountMatching(_ context.Context, website, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	n := 0
	for _, c := range m.cards {
		if models.Deref(c.Website) == website || c.Name == name {
			n++
		}
	}
	return n, nil
}

// Categories implements storage.CardStore
func (m *MemoryStore) Categories(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	set := map[string]bool{}
	for _, c := range m.cards {
		if cat := models.Deref(c.Category); cat != "" {
			set[cat] = true
		}
	}
	out := make([]string, 0, len(set))
	for cat := range set {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out, nil
}

// CreateFeedback implements storage.FeedbackStore
func (m *MemoryStore) CreateFeedback(_ context.Context, cardID int64, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return 0, err
	}
	if m.index(cardID) < 0 {
		return 0, fmt.Errorf("%w: card %d", utils.ErrNotFound, cardID)
	}
	id := m.nextFB
	m.nextFB++
	now := time.Now()
	m.feedback = append(m.feedback, models.Feedback{
		ID:          id,
		CardID:      &cardID,
		Content:     content,
		SubmittedAt: &now,
		Status:      models.FeedbackStatusNew,
	})
	return id, nil
}

// ListFeedback implements storage.FeedbackStore
func (m *MemoryStore) ListFeedback(_ context.Context) ([]models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return nil, err
	}
	out := make([]models.Feedback, 0, len(m.feedback))
	for i := len(m.feedback) - 1; i >= 0; i-- {
		fb := m.feedback[i]
		if fb.CardID != nil {
			if j := m.index(*fb.CardID); j >= 0 {
				name := m.cards[j].Name
				fb.CardName = &name
			}
		}
		out = append(out, fb)
	}
	return out, nil
}

// UpdateFeedback implements storage.FeedbackStore
func (m *MemoryStore) UpdateFeedback(_ context.Context, id int64, update storage.FeedbackUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail(); err != nil {
		return err
	}
	for i := range m.feedback {
		if m.feedback[i].ID == id {
			now := time.Now()
			m.feedback[i].Status = update.Status
			m.feedback[i].ProcessedBy = update.ProcessedBy
			m.feedback[i].Resolution = update.Resolution
			m.feedback[i].ProcessedAt = &now
			return nil
		}
	}
	return fmt.Errorf("%w: feedback %d", utils.ErrNotFound, id)
}

// Ping implements storage.DirectoryStore
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fail()
}

// Close implements storage.DirectoryStore
func (m *MemoryStore) Close() error { return nil }

// Cards returns a copy of the stored cards ordered by id
func (m *MemoryStore) Cards() []models.Card {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted()
}

func (m *MemoryStore) sorted() []models.Card {
	out := append(make([]models.Card, 0, len(m.cards)), m.cards...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) index(id int64) int {
	for i, c := range m.cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}
