package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/card-directory/pkg/models"
)

func newTestLedger(t *testing.T, dir string) *OutcomeStore {
	t.Helper()
	store, err := NewOutcomeStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOutcomeStore_RecordAndRecent(t *testing.T) {
	store := newTestLedger(t, t.TempDir())
	base := time.Now()

	for i, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		require.NoError(t, store.RecordOutcome(models.CrawlOutcome{
			URL:         u,
			RunID:       "run-1",
			Result:      models.OutcomeSaved,
			CardID:      int64(i + 1),
			ProcessedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	assert.Equal(t, 3, store.Count())

	recent, err := store.RecentOutcomes(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "https://c.example", recent[0].URL, "newest first")
	assert.Equal(t, "https://b.example", recent[1].URL)

	all, err := store.RecentOutcomes(10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.RecentOutcomes(0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutcomeStore_SameTimestampKeepsBoth(t *testing.T) {
	store := newTestLedger(t, t.TempDir())
	at := time.Now()

	require.NoError(t, store.RecordOutcome(models.CrawlOutcome{URL: "https://x.example/1", ProcessedAt: at}))
	require.NoError(t, store.RecordOutcome(models.CrawlOutcome{URL: "https://x.example/2", ProcessedAt: at}))

	recent, err := store.RecentOutcomes(5)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestOutcomeStore_LatestOutcome(t *testing.T) {
	store := newTestLedger(t, t.TempDir())
	url := "https://acme.example"

	_, found, err := store.LatestOutcome(url)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.RecordOutcome(models.CrawlOutcome{URL: url, Result: models.OutcomeFailed, ErrorType: "Network_Timeout"}))
	require.NoError(t, store.RecordOutcome(models.CrawlOutcome{URL: url, Result: models.OutcomeDuplicate, ErrorType: "Ingest_AlreadyExists"}))

	latest, found, err := store.LatestOutcome(url)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.OutcomeDuplicate, latest.Result)
	assert.False(t, latest.ProcessedAt.IsZero(), "zero timestamps are filled in")
}

func TestOutcomeStore_ReopenPreservesCount(t *testing.T) {
	dir := t.TempDir()

	first, err := NewOutcomeStore(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.RecordOutcome(models.CrawlOutcome{URL: "https://a.example"}))
	require.NoError(t, first.RecordOutcome(models.CrawlOutcome{URL: "https://b.example"}))
	require.NoError(t, first.Close())

	second := newTestLedger(t, dir)
	assert.Equal(t, 2, second.Count())
}

func TestOutcomeStore_CloseIsIdempotent(t *testing.T) {
	store, err := NewOutcomeStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestOutcomeStore_RunGCStopsOnCancel(t *testing.T) {
	store := newTestLedger(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after context cancellation")
	}
}
