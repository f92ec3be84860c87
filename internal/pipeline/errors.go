package pipeline

import "errors"

// ErrNotFound is returned by operations addressing an unknown ID.
var ErrNotFound = errors.New("not found")

// ErrIllegalTransition is returned when a status change is attempted from
// a non-pending state. The item is left unchanged.
var ErrIllegalTransition = errors.New("illegal status transition")

// ErrInvalidIngest is returned for ingestion requests that fail up-front
// validation (unknown source, missing event type). Nothing is persisted.
var ErrInvalidIngest = errors.New("invalid ingest request")
