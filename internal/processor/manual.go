package processor

import (
	"github.com/linnemanlabs/scout/internal/signal"
)

// Manual handles operator-entered signals. Only event types present in
// the declarative table are claimed; anything else stays unprocessed and
// surfaces through catch-up metrics instead of guessing an action.
type Manual struct{}

// NewManual creates the manual processor.
func NewManual() *Manual { return &Manual{} }

func (*Manual) Name() string { return "manual" }

func (*Manual) CanHandle(sig *signal.Signal) bool {
	if sig.Source != signal.SourceManual {
		return false
	}
	_, ok := Defaults(signal.SourceManual, sig.EventType)
	return ok
}

func (*Manual) Validate(sig *signal.Signal) bool {
	return len(sig.Payload) > 0
}

func (*Manual) Process(sig *signal.Signal) (*Draft, error) {
	d, _ := Defaults(signal.SourceManual, sig.EventType)

	ctx := map[string]any{}
	if note := sig.Text("note"); note != "" {
		ctx["note"] = note
	}
	if subject := sig.Text("subject"); subject != "" {
		ctx["subject"] = subject
	}

	return &Draft{
		ActionType: d.ActionType,
		Context:    ctx,
		Factors:    d.Factors,
		Owner:      sig.Text("owner"),
		DueIn:      d.DueIn,
	}, nil
}
