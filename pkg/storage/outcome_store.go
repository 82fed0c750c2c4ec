package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/card-directory/pkg/log"
	"github.com/Sriram-PR/card-directory/pkg/models"
	"github.com/Sriram-PR/card-directory/pkg/utils"
)

const (
	outcomeKeyPrefix = "outcome:" // outcome:<unix nanos, zero padded>:<seq> -> CrawlOutcome JSON
	latestKeyPrefix  = "latest:"  // latest:<url> -> CrawlOutcome JSON
	ledgerDBDir      = "outcome_db"
)

// OutcomeStore implements OutcomeLedger and LedgerAdmin using BadgerDB.
// Outcomes are keyed by processing time so reverse iteration yields newest first.
type OutcomeStore struct {
	db    *badger.DB
	log   *logrus.Entry
	count atomic.Int64  // Cached outcome count for O(1) Count
	seq   atomic.Uint64 // Disambiguates outcomes recorded in the same nanosecond
}

// NewOutcomeStore opens (or creates) the ledger under stateDir
func NewOutcomeStore(stateDir string, logger *logrus.Entry) (*OutcomeStore, error) {
	dbPath := filepath.Join(stateDir, ledgerDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	logger.Infof("Opening crawl outcome ledger at: %s", dbPath)
	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogger(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	store := &OutcomeStore{db: db, log: logger.WithField("component", "outcome_ledger")}
	n, err := store.countOutcomes()
	if err != nil {
		store.log.Warnf("Failed to count existing outcomes: %v", err)
	}
	store.count.Store(int64(n))
	return store, nil
}

// countOutcomes performs a one-time key scan at open
func (s *OutcomeStore) countOutcomes() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(outcomeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
func (s *OutcomeStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (s *OutcomeStore) outcomeKey(at time.Time) []byte {
	return []byte(fmt.Sprintf("%s%020d:%010d", outcomeKeyPrefix, at.UnixNano(), s.seq.Add(1)))
}

// RecordOutcome implements OutcomeLedger
func (s *OutcomeStore) RecordOutcome(outcome models.CrawlOutcome) error {
	if outcome.ProcessedAt.IsZero() {
		outcome.ProcessedAt = time.Now()
	}
	value, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("%w: marshal outcome for %s: %w", utils.ErrDatabase, outcome.URL, err)
	}

	key := s.outcomeKey(outcome.ProcessedAt)
	err = s.dbUpdate(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set([]byte(latestKeyPrefix+outcome.URL), value)
	})
	if err != nil {
		s.log.WithField("url", outcome.URL).Errorf("DB Update error in RecordOutcome: %v", err)
		return fmt.Errorf("%w: recording outcome for '%s': %w", utils.ErrDatabase, outcome.URL, err)
	}
	s.count.Add(1)
	return nil
}

// RecentOutcomes implements OutcomeLedger
func (s *OutcomeStore) RecentOutcomes(limit int) ([]models.CrawlOutcome, error) {
	outcomes := []models.CrawlOutcome{}
	if limit <= 0 {
		return outcomes, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(outcomeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must start past the last key carrying the prefix
		for it.Seek([]byte(outcomeKeyPrefix + "\xff")); it.Valid() && len(outcomes) < limit; it.Next() {
			var o models.CrawlOutcome
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &o) }); err != nil {
				s.log.WithField("key", string(it.Item().Key())).Warnf("Skipping unreadable outcome: %v", err)
				continue
			}
			outcomes = append(outcomes, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading recent outcomes: %w", utils.ErrDatabase, err)
	}
	return outcomes, nil
}

// LatestOutcome implements OutcomeLedger
func (s *OutcomeStore) LatestOutcome(url string) (*models.CrawlOutcome, bool, error) {
	var outcome models.CrawlOutcome
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKeyPrefix + url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &outcome) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading outcome for '%s': %w", utils.ErrDatabase, url, err)
	}
	return &outcome, true, nil
}

// Count implements OutcomeLedger
func (s *OutcomeStore) Count() int {
	return int(s.count.Load())
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *OutcomeStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				// Rewrite while at least half a value log file is reclaimable
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements LedgerAdmin
func (s *OutcomeStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Info("Closing outcome ledger...")
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing outcome ledger: %v", err)
		return err
	}
	return nil
}
