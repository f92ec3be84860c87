// Package processor maps validated signals to action-item drafts. Each
// processor is a pure function of its signal; all persistence stays in
// the pipeline service so processors test against in-memory fixtures.
package processor

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/scout/internal/scoring"
	"github.com/linnemanlabs/scout/internal/signal"
)

// Draft is a processor's proposed action item, before scoring and
// persistence assign identity, priority, and timestamps.
type Draft struct {
	ActionType string
	Context    map[string]any
	Factors    scoring.Factors
	Owner      string
	DueIn      time.Duration
}

// Processor is source-specific classification logic.
type Processor interface {
	// Name identifies the processor in logs and metrics.
	Name() string

	// CanHandle reports whether this processor should take the signal.
	// The registry invokes the first matching processor exactly once.
	CanHandle(sig *signal.Signal) bool

	// Validate checks structural preconditions (required payload fields).
	// A false return marks the signal processed with no recommendation.
	Validate(sig *signal.Signal) bool

	// Process builds an action-item draft from a validated signal.
	Process(sig *signal.Signal) (*Draft, error)
}

// Dispatch is the outcome of routing one signal through the registry.
type Dispatch struct {
	Processor string
	Matched   bool
	Valid     bool
	Draft     *Draft
	Err       error
}

// Registry holds processors in fixed registration order. It is immutable
// after construction; share one instance across workers.
type Registry struct {
	procs []Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a processor. Registration order is dispatch order.
func (r *Registry) Register(p Processor) {
	r.procs = append(r.procs, p)
}

// Dispatch routes a signal to the first processor whose CanHandle returns
// true. A processor panic or error is captured in the result so one bad
// processor never takes down unrelated signals; the caller leaves the
// signal unprocessed for catch-up.
func (r *Registry) Dispatch(sig *signal.Signal) (d Dispatch) {
	// registered before the loop so a panic inside CanHandle or Name is
	// captured too, not just one inside Validate/Process
	defer func() {
		if rec := recover(); rec != nil {
			name := d.Processor
			if name == "" {
				name = "unknown"
			}
			d.Draft = nil
			d.Err = fmt.Errorf("processor %s panicked: %v", name, rec)
		}
	}()

	for _, p := range r.procs {
		if !p.CanHandle(sig) {
			continue
		}

		d.Processor = p.Name()
		d.Matched = true

		if !p.Validate(sig) {
			return d
		}
		d.Valid = true

		draft, err := p.Process(sig)
		if err != nil {
			d.Err = fmt.Errorf("processor %s: %w", d.Processor, err)
			return d
		}
		if draft != nil && draft.ActionType == "" {
			d.Err = fmt.Errorf("processor %s produced a draft with no action type", d.Processor)
			return d
		}
		d.Draft = draft
		return d
	}
	return d
}

// Default builds the standard registry in the fixed production order.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewForm())
	r.Register(NewCRM())
	r.Register(NewMailbox())
	r.Register(NewSocial())
	r.Register(NewManual())
	return r
}
