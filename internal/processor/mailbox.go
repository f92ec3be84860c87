package processor

import (
	"github.com/linnemanlabs/scout/internal/signal"
)

// Mailbox handles inbound email replies. The default action comes from
// the declarative table; the reply text may refine it through the ordered
// intent categories (scheduling beats buying beats opt-out).
type Mailbox struct{}

// NewMailbox creates the mailbox processor.
func NewMailbox() *Mailbox { return &Mailbox{} }

func (*Mailbox) Name() string { return "mailbox" }

func (*Mailbox) CanHandle(sig *signal.Signal) bool {
	return sig.Source == signal.SourceMailbox
}

func (*Mailbox) Validate(sig *signal.Signal) bool {
	if sig.Text("from") == "" {
		return false
	}
	return sig.Text("body") != "" || sig.Text("subject") != ""
}

func (*Mailbox) Process(sig *signal.Signal) (*Draft, error) {
	d, ok := Defaults(signal.SourceMailbox, sig.EventType)
	if !ok {
		d, _ = Defaults(signal.SourceMailbox, "email_reply")
	}

	ctx := map[string]any{
		"from": sig.Text("from"),
	}
	if subject := sig.Text("subject"); subject != "" {
		ctx["subject"] = subject
	}
	if thread := sig.Text("thread_id"); thread != "" {
		ctx["thread_id"] = thread
	}

	draft := &Draft{
		ActionType: d.ActionType,
		Context:    ctx,
		Factors:    d.Factors,
		DueIn:      d.DueIn,
	}

	text := sig.Text("subject") + " " + sig.Text("body")
	if cat, ok := ClassifyIntent(text); ok {
		// intent override: the refined action type uses its own factor
		// defaults, so drop the table row's factors
		draft.ActionType = cat.ActionType
		draft.DueIn = cat.DueIn
		draft.Factors = nil
		ctx["intent"] = cat.Name
	}

	return draft, nil
}
