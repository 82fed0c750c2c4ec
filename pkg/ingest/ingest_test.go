package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// memStore is an in-memory card store with the same matching rules as SQL
type memStore struct {
	mu        sync.Mutex
	cards     []models.Card
	countErr  error
	insertErr error
}

func (m *memStore) CountMatching(_ context.Context, website, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, c := range m.cards {
		if models.Deref(c.Website) == website || c.Name == name {
			n++
		}
	}
	return n, nil
}

func (m *memStore) InsertCard(_ context.Context, card *models.Card) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	var maxID int64
	for _, c := range m.cards {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	stored := *card
	stored.ID = maxID + 1
	m.cards = append(m.cards, stored)
	return stored.ID, nil
}

func strPtr(s string) *string { return &s }

func TestIsDuplicate(t *testing.T) {
	store := &memStore{cards: []models.Card{
		{ID: 1, Name: "Acme", Website: strPtr("https://acme.example")},
	}}
	checker := NewDuplicateChecker(store, testLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		cand models.CandidateRecord
		want bool
	}{
		{"website only match", models.CandidateRecord{Name: "Other", Website: "https://acme.example"}, true},
		{"name only match", models.CandidateRecord{Name: "Acme", Website: "https://elsewhere.example"}, true},
		{"both match", models.CandidateRecord{Name: "Acme", Website: "https://acme.example"}, true},
		{"no match", models.CandidateRecord{Name: "Globex", Website: "https://globex.example"}, false},
		{"name is case sensitive", models.CandidateRecord{Name: "ACME", Website: "https://x.example"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checker.IsDuplicate(ctx, &tt.cand))
		})
	}
}

func TestIsDuplicate_StorageErrorCountsAsDuplicate(t *testing.T) {
	store := &memStore{countErr: utils.ErrDatabase}
	checker := NewDuplicateChecker(store, testLogger())

	assert.True(t, checker.IsDuplicate(context.Background(), &models.CandidateRecord{Name: "New"}))
}

func TestGatewaySave_InsertsPendingRecord(t *testing.T) {
	store := &memStore{}
	gw := NewGateway(store, NewDuplicateChecker(store, testLogger()), testLogger())

	res := gw.Save(context.Background(), &models.CandidateRecord{
		Name:     "Acme",
		Website:  "https://example.com/a",
		Phones:   []string{"87654321", "010-1234567"},
		Emails:   []string{},
		Category: "",
		Status:   models.CardStatusPending,
	})

	require.True(t, res.Accepted)
	assert.Empty(t, res.Reason)
	assert.Equal(t, int64(1), res.CardID)

	require.Len(t, store.cards, 1)
	card := store.cards[0]
	assert.Equal(t, "Acme", card.Name)
	assert.Equal(t, models.CardStatusPending, card.Status)
	assert.Equal(t, "87654321;010-1234567", *card.Phone)
	assert.Nil(t, card.Email, "empty lists are stored as NULL")
	assert.Nil(t, card.Description)
	assert.Equal(t, models.UnclassifiedCategory, *card.Category)
}

func TestGatewaySave_AssignsMaxPlusOne(t *testing.T) {
	store := &memStore{cards: []models.Card{{ID: 41, Name: "Existing"}}}
	gw := NewGateway(store, NewDuplicateChecker(store, testLogger()), testLogger())

	res := gw.Save(context.Background(), &models.CandidateRecord{Name: "New", Website: "https://new.example"})
	require.True(t, res.Accepted)
	assert.Equal(t, int64(42), res.CardID)
}

func TestGatewaySave_AlreadyExists(t *testing.T) {
	store := &memStore{cards: []models.Card{{ID: 1, Name: "Acme", Website: strPtr("https://example.com/a")}}}
	gw := NewGateway(store, NewDuplicateChecker(store, testLogger()), testLogger())

	res := gw.Save(context.Background(), &models.CandidateRecord{Name: "Different", Website: "https://example.com/a"})

	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonAlreadyExists, res.Reason)
	assert.ErrorIs(t, res.Err, utils.ErrAlreadyExists)
	assert.Len(t, store.cards, 1, "no row inserted")
}

func TestGatewaySave_StorageError(t *testing.T) {
	store := &memStore{insertErr: errors.New("disk full")}
	gw := NewGateway(store, NewDuplicateChecker(store, testLogger()), testLogger())

	res := gw.Save(context.Background(), &models.CandidateRecord{Name: "Acme", Website: "https://a.example"})

	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonStorageError, res.Reason)
	assert.Error(t, res.Err)
}

func TestGatewaySave_RejectsNamelessCandidate(t *testing.T) {
	store := &memStore{}
	gw := NewGateway(store, NewDuplicateChecker(store, testLogger()), testLogger())

	res := gw.Save(context.Background(), &models.CandidateRecord{Name: "  "})
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonInvalid, res.Reason)
	assert.ErrorIs(t, res.Err, utils.ErrValidation)

	res = gw.Save(context.Background(), nil)
	assert.Equal(t, ReasonInvalid, res.Reason)
	assert.Empty(t, store.cards)
}

func TestCardFromCandidate_KeepsExplicitCategory(t *testing.T) {
	card := CardFromCandidate(&models.CandidateRecord{
		Name:        " Acme ",
		Description: "Widgets",
		Address:     "1 Road",
		Category:    "科技",
		Emails:      []string{"a@acme.com"},
	})
	assert.Equal(t, "Acme", card.Name)
	assert.Equal(t, "Widgets", *card.Description)
	assert.Equal(t, "1 Road", *card.Address)
	assert.Equal(t, "科技", *card.Category)
	assert.Equal(t, "a@acme.com", *card.Email)
	assert.Nil(t, card.Website)
}
