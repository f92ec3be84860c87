package processor

import (
	"github.com/linnemanlabs/scout/internal/signal"
)

// Form handles website form submissions. The payload carries the lead's
// contact fields; email is the only structural requirement.
type Form struct{}

// NewForm creates the form processor.
func NewForm() *Form { return &Form{} }

func (*Form) Name() string { return "form" }

func (*Form) CanHandle(sig *signal.Signal) bool {
	return sig.Source == signal.SourceForm
}

func (*Form) Validate(sig *signal.Signal) bool {
	return sig.Text("email") != ""
}

func (*Form) Process(sig *signal.Signal) (*Draft, error) {
	d, ok := Defaults(signal.SourceForm, sig.EventType)
	if !ok {
		// unknown form event types still produce a follow-up; a new lead
		// should never be dropped on the floor
		d, _ = Defaults(signal.SourceForm, "form_submission")
	}

	ctx := map[string]any{
		"email": sig.Text("email"),
	}
	if name := sig.Text("name"); name != "" {
		ctx["name"] = name
	}
	if company := sig.Text("company"); company != "" {
		ctx["company"] = company
	}
	if msg := sig.Text("message"); msg != "" {
		ctx["message"] = msg
	}

	return &Draft{
		ActionType: d.ActionType,
		Context:    ctx,
		Factors:    d.Factors,
		DueIn:      d.DueIn,
	}, nil
}
