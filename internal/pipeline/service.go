package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/scout/internal/processor"
	"github.com/linnemanlabs/scout/internal/scoring"
	"github.com/linnemanlabs/scout/internal/signal"
)

var tracer = otel.Tracer("github.com/linnemanlabs/scout/internal/pipeline")

// Notifier receives newly enqueued high-priority action items.
type Notifier interface {
	NotifyEnqueued(ctx context.Context, item *ActionItem, rec *Recommendation) error
}

// OutcomeAdjuster supplies the optional post-hoc score adjustment from an
// external history service.
type OutcomeAdjuster interface {
	Adjustment(ctx context.Context, actionType string) float64
}

// Options tunes service behavior. Zero values fall back to defaults.
type Options struct {
	// DedupWindow is the span in which identical payloads from the same
	// source collapse to one signal. Defaults to signal.DefaultDedupWindow.
	DedupWindow time.Duration

	// DefaultOwner is assigned to action items whose draft names none.
	DefaultOwner string

	// NotifyThreshold is the minimum composite score (0-100) that triggers
	// the notifier. Items below it enqueue silently.
	NotifyThreshold float64

	// CatchUpGrace is how old an unprocessed signal must be before
	// catch-up retries it, keeping catch-up off the heels of live ingest.
	CatchUpGrace time.Duration

	// CatchUpBatch bounds signals per catch-up run.
	CatchUpBatch int

	// Adjuster is the optional external history service.
	Adjuster OutcomeAdjuster
}

const (
	defaultCatchUpGrace = 2 * time.Minute
	defaultCatchUpBatch = 50
	defaultDueIn        = 24 * time.Hour
)

// IngestRequest is one raw occurrence arriving at the gateway.
type IngestRequest struct {
	Source    signal.Source
	EventType string
	Payload   map[string]any
	SourceID  string

	// SkipDedup bypasses the duplicate check for backfill/replay paths.
	SkipDedup bool
}

// IngestResult is the gateway's fast acknowledgment: either a new signal
// or a reference to the duplicate it collapsed into. Duplicate is a
// normal outcome, not an error.
type IngestResult struct {
	Signal      *signal.Signal
	Duplicate   bool
	DuplicateOf string
}

// Service is the business boundary for pipeline operations. It owns
// dedup, the processing lifecycle, async dispatch, and catch-up.
type Service struct {
	store    Store
	registry *processor.Registry
	scorer   *scoring.Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	opts     Options
}

// NewService creates a pipeline service. metrics may be nil (a throwaway
// registry is used) and notifier may be nil (no notifications).
func NewService(store Store, registry *processor.Registry, scorer *scoring.Engine, logger log.Logger, metrics *Metrics, notifier Notifier, opts Options) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = signal.DefaultDedupWindow
	}
	if opts.CatchUpGrace <= 0 {
		opts.CatchUpGrace = defaultCatchUpGrace
	}
	if opts.CatchUpBatch <= 0 {
		opts.CatchUpBatch = defaultCatchUpBatch
	}
	return &Service{
		store:    store,
		registry: registry,
		scorer:   scorer,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		opts:     opts,
	}
}

// Ingest accepts a raw occurrence, dedups it, and kicks off async
// processing for newly created signals. It returns fast; callers are
// external platforms with their own retry semantics.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if _, err := signal.ParseSource(string(req.Source)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIngest, err)
	}
	if req.EventType == "" {
		return nil, fmt.Errorf("%w: event type is required", ErrInvalidIngest)
	}

	now := time.Now().UTC()
	sig := &signal.Signal{
		ID:          ulid.Make().String(),
		Source:      req.Source,
		EventType:   req.EventType,
		Payload:     req.Payload,
		PayloadHash: signal.Hash(req.Payload),
		SourceID:    req.SourceID,
		CreatedAt:   now,
	}

	bucket := signal.DedupBucket(now, s.opts.DedupWindow)
	if req.SkipDedup {
		// replay path: a per-insert bucket keeps the uniqueness constraint
		// satisfied without ever colliding with live traffic
		bucket = -now.UnixNano()
	}

	row, created, err := s.store.InsertSignal(ctx, sig, bucket)
	if err != nil {
		return nil, fmt.Errorf("insert signal: %w", err)
	}

	if !created {
		s.metrics.SignalsTotal.WithLabelValues(string(req.Source), "duplicate").Inc()
		s.logger.Info(ctx, "duplicate signal suppressed",
			"source", req.Source,
			"event_type", req.EventType,
			"existing_id", row.ID,
		)
		return &IngestResult{Signal: row, Duplicate: true, DuplicateOf: row.ID}, nil
	}

	s.metrics.SignalsTotal.WithLabelValues(string(req.Source), "created").Inc()

	// process async - pass only the ID to avoid sharing the Signal pointer.
	go s.process(context.WithoutCancel(ctx), sig.ID)

	return &IngestResult{Signal: row}, nil
}

// Processing outcome labels.
const (
	outcomeCompleted        = "completed"
	outcomeInvalid          = "invalid"
	outcomeDeclined         = "declined"
	outcomeNoMatch          = "no_match"
	outcomeError            = "error"
	outcomeStoreError       = "store_error"
	outcomeLostRace         = "lost_race"
	outcomeAlreadyProcessed = "already_processed"
	outcomeMissing          = "missing"
)

// process runs classify -> score -> enqueue for one signal. Every exit
// path is recovered locally; failures leave the signal unprocessed for
// catch-up and never propagate to the ingestion caller.
func (s *Service) process(ctx context.Context, signalID string) (outcome string) {
	ctx, span := tracer.Start(ctx, "signal.process", trace.WithAttributes(
		attribute.String("scout.signal.id", signalID),
	))

	start := time.Now()
	proc := "none"
	defer func() {
		span.SetAttributes(
			attribute.String("scout.process.processor", proc),
			attribute.String("scout.process.outcome", outcome),
		)
		span.End()
		s.metrics.ProcessTotal.WithLabelValues(proc, outcome).Inc()
		s.metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	L := s.logger.With("signal_id", signalID)

	sig, ok, err := s.store.GetSignal(ctx, signalID)
	if err != nil {
		L.Error(ctx, err, "failed to fetch signal for processing")
		return outcomeStoreError
	}
	if !ok {
		L.Error(ctx, nil, "signal vanished before processing")
		return outcomeMissing
	}
	if sig.Processed() {
		return outcomeAlreadyProcessed
	}

	span.SetAttributes(
		attribute.String("scout.signal.source", string(sig.Source)),
		attribute.String("scout.signal.event_type", sig.EventType),
	)

	d := s.registry.Dispatch(sig)
	if d.Processor != "" {
		proc = d.Processor
	}
	L = L.With("processor", proc, "source", sig.Source, "event_type", sig.EventType)

	switch {
	case d.Err != nil:
		// recoverable: the signal stays unprocessed for catch-up
		L.Error(ctx, d.Err, "processor failed, signal left for catch-up")
		return outcomeError

	case !d.Matched:
		L.Info(ctx, "no processor matched, signal left unprocessed")
		return outcomeNoMatch

	case !d.Valid:
		// structural validation failure: persisted for audit, marked
		// processed with no recommendation
		claimed, err := s.store.MarkProcessed(ctx, sig.ID, time.Now().UTC())
		if err != nil {
			L.Error(ctx, err, "failed to mark invalid signal processed")
			return outcomeStoreError
		}
		if !claimed {
			return outcomeLostRace
		}
		L.Warn(ctx, "signal failed validation, no recommendation produced")
		return outcomeInvalid

	case d.Draft == nil:
		// a processor may decline without error; treat as validated no-op
		claimed, err := s.store.MarkProcessed(ctx, sig.ID, time.Now().UTC())
		if err != nil {
			L.Error(ctx, err, "failed to mark declined signal processed")
			return outcomeStoreError
		}
		if !claimed {
			return outcomeLostRace
		}
		L.Info(ctx, "processor produced no draft")
		return outcomeDeclined
	}

	var adjustment float64
	if s.opts.Adjuster != nil {
		adjustment = s.opts.Adjuster.Adjustment(ctx, d.Draft.ActionType)
	}
	scored := s.scorer.Score(d.Draft.ActionType, d.Draft.Factors, adjustment)

	now := time.Now().UTC()
	rec := &Recommendation{
		ID:         ulid.Make().String(),
		Score:      scored.Score,
		Reasoning:  scored.Reasoning,
		Components: scored.Components,
		Metadata: map[string]any{
			"signal_id": sig.ID,
			"processor": proc,
		},
		GeneratedAt: now,
	}
	if scored.Adjustment != 0 {
		rec.Metadata["adjustment"] = scored.Adjustment
	}

	owner := d.Draft.Owner
	if owner == "" {
		owner = s.opts.DefaultOwner
	}
	dueIn := d.Draft.DueIn
	if dueIn <= 0 {
		dueIn = defaultDueIn
	}

	item := &ActionItem{
		ID:               ulid.Make().String(),
		ActionType:       d.Draft.ActionType,
		ActionContext:    d.Draft.Context,
		PriorityScore:    scored.Score / 100,
		Status:           StatusPending,
		Owner:            owner,
		DueBy:            now.Add(dueIn),
		RecommendationID: rec.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	claimed, err := s.store.CompleteSignal(ctx, sig.ID, now, rec, item)
	if err != nil {
		L.Error(ctx, err, "failed to persist action item, signal left for catch-up")
		return outcomeStoreError
	}
	if !claimed {
		// another worker processed this signal first; nothing was written
		return outcomeLostRace
	}

	s.metrics.EnqueuedTotal.WithLabelValues(item.ActionType).Inc()
	s.metrics.PriorityScore.Observe(scored.Score)

	L.Info(ctx, "action item enqueued",
		"action_id", item.ID,
		"action_type", item.ActionType,
		"score", scored.Score,
		"due_by", item.DueBy,
	)

	if s.notifier != nil && scored.Score >= s.opts.NotifyThreshold {
		go s.notify(context.WithoutCancel(ctx), item, rec)
	}

	return outcomeCompleted
}

func (s *Service) notify(ctx context.Context, item *ActionItem, rec *Recommendation) {
	if err := s.notifier.NotifyEnqueued(ctx, item, rec); err != nil {
		s.metrics.NotifyTotal.WithLabelValues("error").Inc()
		s.logger.Error(ctx, err, "enqueue notification failed", "action_id", item.ID)
		return
	}
	s.metrics.NotifyTotal.WithLabelValues("ok").Inc()
}

// CatchUp re-attempts processing for signals left unprocessed. It is
// re-entrant and safe to run concurrently with live ingestion and with
// itself: the processed_at compare-and-set prevents duplicate processing.
// Returns the number of signals recovered to a processed state.
func (s *Service) CatchUp(ctx context.Context) (int, error) {
	s.metrics.CatchUpRuns.Inc()

	olderThan := time.Now().UTC().Add(-s.opts.CatchUpGrace)
	sigs, err := s.store.ListUnprocessed(ctx, olderThan, s.opts.CatchUpBatch)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed: %w", err)
	}

	var recovered int
	for _, sig := range sigs {
		switch s.process(ctx, sig.ID) {
		case outcomeCompleted, outcomeInvalid, outcomeDeclined:
			recovered++
		}
	}
	if recovered > 0 {
		s.metrics.CatchUpRecovered.Add(float64(recovered))
		s.logger.Info(ctx, "catch-up recovered signals", "count", recovered, "batch", len(sigs))
	}
	return recovered, nil
}

// RunCatchUp loops CatchUp on the given interval until ctx is canceled.
// Intended to run as a background goroutine from main.
func (s *Service) RunCatchUp(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CatchUp(ctx); err != nil {
				s.logger.Error(ctx, err, "catch-up run failed")
			}
		}
	}
}

// GetSignal retrieves a signal by ID.
func (s *Service) GetSignal(ctx context.Context, id string) (*signal.Signal, bool, error) {
	return s.store.GetSignal(ctx, id)
}

// Queue returns action items in priority order with an optional status
// filter.
func (s *Service) Queue(ctx context.Context, status Status, limit int) ([]*ActionItem, error) {
	return s.store.ListActions(ctx, status, limit)
}

// GetAction retrieves an action item and its paired recommendation.
func (s *Service) GetAction(ctx context.Context, id string) (*ActionItem, *Recommendation, bool, error) {
	item, ok, err := s.store.GetAction(ctx, id)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	rec, _, err := s.store.GetRecommendation(ctx, item.RecommendationID)
	if err != nil {
		return nil, nil, false, err
	}
	return item, rec, true, nil
}

// Transition applies an operator decision to a pending action item.
func (s *Service) Transition(ctx context.Context, id string, to Status) (*ActionItem, error) {
	if to != StatusAccepted && to != StatusDismissed {
		return nil, fmt.Errorf("%w: cannot transition to %q", ErrIllegalTransition, to)
	}

	item, err := s.store.TransitionAction(ctx, id, to, time.Now().UTC())
	switch {
	case err == nil:
		s.metrics.TransitionsTotal.WithLabelValues(string(to), "ok").Inc()
		return item, nil
	default:
		s.metrics.TransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
		return nil, err
	}
}

// RecordOutcome stores the execution result of an accepted action item.
func (s *Service) RecordOutcome(ctx context.Context, id string, outcome string) (*ActionItem, error) {
	return s.store.RecordOutcome(ctx, id, outcome, time.Now().UTC())
}
