// Package memstore provides an in-memory implementation of pipeline.Store.
// Suitable for dev/testing; the mutex stands in for the database
// constraints that back dedup and the processed_at compare-and-set.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/scout/internal/pipeline"
	"github.com/linnemanlabs/scout/internal/signal"
)

type dedupKey struct {
	source signal.Source
	hash   string
	bucket int64
}

// Store holds pipeline state in memory. All reads return copies.
type Store struct {
	mu      sync.RWMutex
	signals map[string]*signal.Signal
	dedup   map[dedupKey]string // (source, hash, bucket) -> signal ID
	items   map[string]*pipeline.ActionItem
	recs    map[string]*pipeline.Recommendation
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		signals: make(map[string]*signal.Signal),
		dedup:   make(map[dedupKey]string),
		items:   make(map[string]*pipeline.ActionItem),
		recs:    make(map[string]*pipeline.Recommendation),
	}
}

// InsertSignal stores a signal unless the dedup key is already taken, in
// which case the existing signal is returned with created=false.
func (s *Store) InsertSignal(_ context.Context, sig *signal.Signal, bucket int64) (*signal.Signal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{sig.Source, sig.PayloadHash, bucket}
	if existingID, ok := s.dedup[key]; ok {
		return copySignal(s.signals[existingID]), false, nil
	}

	cp := copySignal(sig)
	s.signals[sig.ID] = cp
	s.dedup[key] = sig.ID
	return copySignal(cp), true, nil
}

// GetSignal retrieves a signal by ID. Returns a copy.
func (s *Store) GetSignal(_ context.Context, id string) (*signal.Signal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.signals[id]
	if !ok {
		return nil, false, nil
	}
	return copySignal(sig), true, nil
}

// ListUnprocessed returns unprocessed signals created at or before
// olderThan, oldest first.
func (s *Store) ListUnprocessed(_ context.Context, olderThan time.Time, limit int) ([]*signal.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*signal.Signal
	for _, sig := range s.signals {
		if sig.ProcessedAt == nil && !sig.CreatedAt.After(olderThan) {
			out = append(out, copySignal(sig))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessed claims processed_at if still unset.
func (s *Store) MarkProcessed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[id]
	if !ok {
		return false, fmt.Errorf("signal %s: %w", id, pipeline.ErrNotFound)
	}
	if sig.ProcessedAt != nil {
		return false, nil
	}
	sig.ProcessedAt = &at
	return true, nil
}

// CompleteSignal claims processed_at and, on success, stores the
// recommendation and action item in the same critical section.
func (s *Store) CompleteSignal(_ context.Context, id string, at time.Time, rec *pipeline.Recommendation, item *pipeline.ActionItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.signals[id]
	if !ok {
		return false, fmt.Errorf("signal %s: %w", id, pipeline.ErrNotFound)
	}
	if sig.ProcessedAt != nil {
		return false, nil
	}

	sig.ProcessedAt = &at
	sig.RecommendationID = rec.ID
	s.recs[rec.ID] = copyRec(rec)
	s.items[item.ID] = copyItem(item)
	return true, nil
}

// GetAction retrieves an action item by ID. Returns a copy.
func (s *Store) GetAction(_ context.Context, id string) (*pipeline.ActionItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return copyItem(item), true, nil
}

// ListActions returns items in queue order with an optional status filter.
func (s *Store) ListActions(_ context.Context, status pipeline.Status, limit int) ([]*pipeline.ActionItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*pipeline.ActionItem
	for _, item := range s.items {
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return pipeline.Less(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TransitionAction applies a status change under the store lock.
func (s *Store) TransitionAction(_ context.Context, id string, to pipeline.Status, at time.Time) (*pipeline.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, pipeline.ErrNotFound)
	}
	if item.Status == to {
		// idempotent repeat of an applied transition
		return copyItem(item), nil
	}
	if !pipeline.ValidTransition(item.Status, to) {
		return nil, fmt.Errorf("action %s is %s: %w", id, item.Status, pipeline.ErrIllegalTransition)
	}
	item.Status = to
	item.UpdatedAt = at
	return copyItem(item), nil
}

// RecordOutcome stores the execution result of an accepted item.
func (s *Store) RecordOutcome(_ context.Context, id string, outcome string, at time.Time) (*pipeline.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, pipeline.ErrNotFound)
	}
	if item.Status != pipeline.StatusAccepted {
		return nil, fmt.Errorf("action %s is %s: %w", id, item.Status, pipeline.ErrIllegalTransition)
	}
	item.ExecutedAt = &at
	item.Outcome = outcome
	item.UpdatedAt = at
	return copyItem(item), nil
}

// GetRecommendation retrieves a recommendation by ID. Returns a copy.
func (s *Store) GetRecommendation(_ context.Context, id string) (*pipeline.Recommendation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, false, nil
	}
	return copyRec(rec), true, nil
}

func copySignal(sig *signal.Signal) *signal.Signal {
	cp := *sig
	cp.Payload = maps.Clone(sig.Payload)
	if sig.ProcessedAt != nil {
		at := *sig.ProcessedAt
		cp.ProcessedAt = &at
	}
	return &cp
}

func copyItem(item *pipeline.ActionItem) *pipeline.ActionItem {
	cp := *item
	cp.ActionContext = maps.Clone(item.ActionContext)
	if item.ExecutedAt != nil {
		at := *item.ExecutedAt
		cp.ExecutedAt = &at
	}
	return &cp
}

func copyRec(rec *pipeline.Recommendation) *pipeline.Recommendation {
	cp := *rec
	cp.Metadata = maps.Clone(rec.Metadata)
	return &cp
}
