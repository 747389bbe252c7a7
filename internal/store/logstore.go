// Package store holds the in-memory set of accepted log records.
package store

import (
	"sync"

	"github.com/steplogs/viewer/internal/models"
)

// subscriberBuffer is the per-subscriber backlog before records are dropped.
const subscriberBuffer = 256

// LogStore is an insertion-ordered map from record date to record.
//
// One mutex guards every read and write. Critical sections only mutate or
// copy, so the ingestion writer and HTTP readers never wait on I/O.
// Re-inserting an existing date replaces the record in place: the position
// is the one the date was first seen at.
type LogStore struct {
	mu      sync.Mutex
	index   map[string]int
	records []models.LogRecord

	subs   map[int]chan models.LogRecord
	nextID int
}

// NewLogStore creates an empty store.
func NewLogStore() *LogStore {
	return &LogStore{
		index: make(map[string]int),
		subs:  make(map[int]chan models.LogRecord),
	}
}

// Insert adds rec under rec.Date, or overwrites the record already stored
// under that date. It reports whether the date was new.
// Subscribers are notified only when the stored value changed.
func (s *LogStore) Insert(rec models.LogRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[rec.Date]; ok {
		if s.records[i].Equal(rec) {
			return false
		}
		s.records[i] = rec
		s.notifyLocked(rec)
		return false
	}

	s.index[rec.Date] = len(s.records)
	s.records = append(s.records, rec)
	s.notifyLocked(rec)
	return true
}

// Snapshot returns a copy of the records in first-insertion order.
func (s *LogStore) Snapshot() []models.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record stored under date.
func (s *LogStore) Get(date string) (models.LogRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[date]
	if !ok {
		return models.LogRecord{}, false
	}
	return s.records[i], true
}

// Len returns the number of stored records.
func (s *LogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Subscribe returns a channel receiving every record inserted or changed
// after the call. Slow subscribers miss records rather than block inserts.
// The returned cancel func closes the channel; calling it more than once is safe.
func (s *LogStore) Subscribe() (<-chan models.LogRecord, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeLocked()
}

// SnapshotAndSubscribe takes a snapshot and subscribes under one lock, so no
// record falls between the two.
func (s *LogStore) SnapshotAndSubscribe() ([]models.LogRecord, <-chan models.LogRecord, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LogRecord, len(s.records))
	copy(out, s.records)
	ch, cancel := s.subscribeLocked()
	return out, ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (s *LogStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *LogStore) subscribeLocked() (<-chan models.LogRecord, func()) {
	id := s.nextID
	s.nextID++
	ch := make(chan models.LogRecord, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *LogStore) notifyLocked(rec models.LogRecord) {
	for _, ch := range s.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}
