// Package signal defines the normalized record of an external occurrence
// entering the pipeline, plus the canonical payload hashing and dedup
// bucket math used by the ingestion gateway.
package signal

import (
	"fmt"
	"time"
)

// Source identifies the external system a signal originated from.
type Source string

const (
	// SourceForm is a website form submission.
	SourceForm Source = "form"

	// SourceCRM is a CRM record change (deal, contact, company).
	SourceCRM Source = "crm"

	// SourceMailbox is an inbound email reply.
	SourceMailbox Source = "mailbox"

	// SourceSocial is a social media mention or comment.
	SourceSocial Source = "social"

	// SourceManual is an operator-entered occurrence.
	SourceManual Source = "manual"
)

// ErrUnknownSource is returned by ParseSource for unrecognized values.
var ErrUnknownSource = fmt.Errorf("unknown signal source")

// ParseSource validates a raw source string from the ingestion boundary.
func ParseSource(raw string) (Source, error) {
	switch s := Source(raw); s {
	case SourceForm, SourceCRM, SourceMailbox, SourceSocial, SourceManual:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, raw)
	}
}

// Signal is one normalized external occurrence. Signals are append-only:
// after creation the pipeline mutates a row exactly once, setting
// ProcessedAt (and RecommendationID when a recommendation was produced)
// on a null-to-value transition.
type Signal struct {
	ID               string         `json:"id"`
	Source           Source         `json:"source"`
	EventType        string         `json:"event_type"`
	Payload          map[string]any `json:"payload"`
	PayloadHash      string         `json:"payload_hash"`
	SourceID         string         `json:"source_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	RecommendationID string         `json:"recommendation_id,omitempty"`
}

// Processed reports whether the pipeline has already claimed this signal.
func (s *Signal) Processed() bool {
	return s.ProcessedAt != nil
}

// Text returns a free-text payload field, or "" if absent or not a string.
// Processors use this for keyword classification of body/subject fields.
func (s *Signal) Text(field string) string {
	v, ok := s.Payload[field]
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Number returns a numeric payload field as float64. JSON decoding yields
// float64 for all numbers; integers from Go callers are converted.
func (s *Signal) Number(field string) (float64, bool) {
	switch v := s.Payload[field].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// DedupBucket maps a creation time onto a coarse time bucket so the store
// can enforce uniqueness of (source, payload_hash, bucket) with a plain
// unique index. Two identical payloads in the same bucket collapse to one
// signal; the bucket width is the dedup window.
func DedupBucket(at time.Time, window time.Duration) int64 {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	// bucket math runs on whole seconds; round sub-second windows up so
	// the divisor can never be zero
	if window < time.Second {
		window = time.Second
	}
	return at.Unix() / int64(window/time.Second)
}

// DefaultDedupWindow is the span in which identical-payload signals from
// the same source collapse to one.
const DefaultDedupWindow = 5 * time.Minute
