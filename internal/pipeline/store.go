package pipeline

import (
	"context"
	"time"

	"github.com/linnemanlabs/scout/internal/signal"
)

// Store is the persistence interface for the pipeline. Implementations
// must make InsertSignal, MarkProcessed, CompleteSignal, and
// TransitionAction safe under concurrent callers: dedup rides on a
// uniqueness constraint, processing on a compare-and-set of processed_at,
// transitions on a compare-and-set of status.
type Store interface {
	// InsertSignal persists a new signal unless another signal with the
	// same (source, payload_hash, bucket) already exists. It returns the
	// canonical row and whether this call created it; on a dedup conflict
	// the existing signal is returned with created=false.
	InsertSignal(ctx context.Context, sig *signal.Signal, bucket int64) (*signal.Signal, bool, error)

	// GetSignal retrieves a signal by ID.
	GetSignal(ctx context.Context, id string) (*signal.Signal, bool, error)

	// ListUnprocessed returns signals with no processed_at, created at or
	// before olderThan, oldest first.
	ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]*signal.Signal, error)

	// MarkProcessed sets processed_at if and only if it is still null.
	// Returns whether this call won the claim.
	MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error)

	// CompleteSignal atomically claims processed_at (null -> at) and, on
	// winning the claim, persists the recommendation and action item.
	// A lost claim is not an error: it returns (false, nil) and writes
	// nothing, so a retry after partial failure cannot double-enqueue.
	CompleteSignal(ctx context.Context, id string, at time.Time, rec *Recommendation, item *ActionItem) (bool, error)

	// GetAction retrieves an action item by ID.
	GetAction(ctx context.Context, id string) (*ActionItem, bool, error)

	// ListActions returns action items in queue order (see Less), with an
	// optional status filter ("" = all) and a result limit (<=0 = all).
	ListActions(ctx context.Context, status Status, limit int) ([]*ActionItem, error)

	// TransitionAction moves a pending item to accepted or dismissed.
	// Repeating an already-applied transition is an idempotent no-op;
	// any other non-pending start state returns ErrIllegalTransition.
	// Unknown IDs return ErrNotFound.
	TransitionAction(ctx context.Context, id string, to Status, at time.Time) (*ActionItem, error)

	// RecordOutcome stores the execution result of an accepted item.
	// Items in any other state return ErrIllegalTransition.
	RecordOutcome(ctx context.Context, id string, outcome string, at time.Time) (*ActionItem, error)

	// GetRecommendation retrieves a recommendation by ID.
	GetRecommendation(ctx context.Context, id string) (*Recommendation, bool, error)
}
