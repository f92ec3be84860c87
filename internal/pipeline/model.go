package pipeline

import (
	"time"

	"github.com/linnemanlabs/scout/internal/scoring"
)

// Status tracks where an action item is in its lifecycle.
type Status string

const (
	// StatusPending means enqueued, awaiting an operator decision.
	StatusPending Status = "pending"

	// StatusAccepted means an operator took the recommendation.
	StatusAccepted Status = "accepted"

	// StatusDismissed means an operator rejected the recommendation.
	StatusDismissed Status = "dismissed"
)

// ValidTransition reports whether from -> to is a legal status change.
// Only pending items move; dismissed items are never resurrected and
// accepted items are never re-accepted.
func ValidTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusAccepted || to == StatusDismissed)
}

// ActionItem is a queued, prioritized, time-boxed recommendation awaiting
// an operator decision. Items are never deleted; the lifecycle ends in
// accepted or dismissed.
type ActionItem struct {
	ID               string         `json:"id"`
	ActionType       string         `json:"action_type"`
	ActionContext    map[string]any `json:"action_context,omitempty"`
	PriorityScore    float64        `json:"priority_score"` // normalized [0,1]
	Status           Status         `json:"status"`
	Owner            string         `json:"owner,omitempty"`
	DueBy            time.Time      `json:"due_by"`
	RecommendationID string         `json:"recommendation_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ExecutedAt       *time.Time     `json:"executed_at,omitempty"`
	Outcome          string         `json:"outcome,omitempty"`
}

// Recommendation is the immutable audit record paired one-to-one with an
// action item: the 0-100 composite score, its component factors, and the
// deterministic reasoning trace.
type Recommendation struct {
	ID          string             `json:"id"`
	Score       float64            `json:"score"` // [0,100]
	Reasoning   string             `json:"reasoning"`
	Components  scoring.Components `json:"components"`
	Metadata    map[string]any     `json:"metadata,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Less is the queue's total order: priority score descending, then
// earliest due date, then earliest creation, then ID. Independent of
// insertion order so formula changes retroactively reorder the queue.
func Less(a, b *ActionItem) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	if !a.DueBy.Equal(b.DueBy) {
		return a.DueBy.Before(b.DueBy)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
