package processor

import (
	"errors"
	"testing"

	"github.com/linnemanlabs/scout/internal/signal"
)

// fake is a scriptable processor for registry tests.
type fake struct {
	name    string
	handles bool
	valid   bool
	draft   *Draft
	err     error
	panics  bool
	calls   int
}

func (f *fake) Name() string                    { return f.name }
func (f *fake) CanHandle(*signal.Signal) bool   { return f.handles }
func (f *fake) Validate(*signal.Signal) bool    { return f.valid }
func (f *fake) Process(*signal.Signal) (*Draft, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.draft, f.err
}

func sig(src signal.Source, eventType string, payload map[string]any) *signal.Signal {
	return &signal.Signal{ID: "s-1", Source: src, EventType: eventType, Payload: payload}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	t.Parallel()

	first := &fake{name: "first", handles: true, valid: true, draft: &Draft{ActionType: "a"}}
	second := &fake{name: "second", handles: true, valid: true, draft: &Draft{ActionType: "b"}}

	r := NewRegistry()
	r.Register(first)
	r.Register(second)

	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if !d.Matched || d.Processor != "first" {
		t.Fatalf("dispatch = %+v, want first processor", d)
	}
	if d.Draft == nil || d.Draft.ActionType != "a" {
		t.Errorf("draft = %+v, want action a", d.Draft)
	}
	if first.calls != 1 {
		t.Errorf("first.calls = %d, want 1", first.calls)
	}
	if second.calls != 0 {
		t.Errorf("second.calls = %d, want 0 (only first match runs)", second.calls)
	}
}

func TestRegistry_NoMatch(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fake{name: "p", handles: false})

	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if d.Matched {
		t.Error("expected no match")
	}
	if d.Err != nil {
		t.Errorf("err = %v, want nil", d.Err)
	}
}

func TestRegistry_ValidateFailure(t *testing.T) {
	t.Parallel()

	p := &fake{name: "p", handles: true, valid: false}
	r := NewRegistry()
	r.Register(p)

	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if !d.Matched || d.Valid {
		t.Fatalf("dispatch = %+v, want matched but invalid", d)
	}
	if p.calls != 0 {
		t.Error("Process should not run after Validate fails")
	}
}

func TestRegistry_ProcessorError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("backend down")
	r := NewRegistry()
	r.Register(&fake{name: "p", handles: true, valid: true, err: wantErr})

	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if !errors.Is(d.Err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", d.Err, wantErr)
	}
	if d.Draft != nil {
		t.Error("draft should be nil on error")
	}
}

func TestRegistry_RecoversPanic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(&fake{name: "p", handles: true, valid: true, panics: true})

	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if d.Err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if d.Draft != nil {
		t.Error("draft should be nil after panic")
	}
}

// panicMatcher panics while deciding whether it handles a signal.
type panicMatcher struct{}

func (panicMatcher) Name() string                           { return "panic-matcher" }
func (panicMatcher) CanHandle(*signal.Signal) bool          { panic("boom in CanHandle") }
func (panicMatcher) Validate(*signal.Signal) bool           { return true }
func (panicMatcher) Process(*signal.Signal) (*Draft, error) { return nil, nil }

func TestRegistry_RecoversPanicInCanHandle(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register(panicMatcher{})

	// dispatch runs on a bare goroutine in the service, so an escaped
	// panic here would take down the whole process
	d := r.Dispatch(sig(signal.SourceForm, "x", nil))
	if d.Err == nil {
		t.Fatal("expected error from recovered CanHandle panic")
	}
	if d.Matched {
		t.Error("matched should stay false when CanHandle never answered")
	}
	if d.Draft != nil {
		t.Error("draft should be nil after panic")
	}
}

func TestDefaultRegistry_Order(t *testing.T) {
	t.Parallel()

	r := Default()
	tests := []struct {
		name      string
		sig       *signal.Signal
		processor string
	}{
		{"form", sig(signal.SourceForm, "form_submission", map[string]any{"email": "a@b.com"}), "form"},
		{"crm", sig(signal.SourceCRM, "deal_created", map[string]any{"deal_id": "d1"}), "crm"},
		{"mailbox", sig(signal.SourceMailbox, "email_reply", map[string]any{"from": "a@b.com", "body": "hi"}), "mailbox"},
		{"social", sig(signal.SourceSocial, "mention", map[string]any{"text": "nice", "author": "x"}), "social"},
		{"manual", sig(signal.SourceManual, "note", map[string]any{"note": "check"}), "manual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := r.Dispatch(tt.sig)
			if !d.Matched || d.Processor != tt.processor {
				t.Errorf("dispatch = %+v, want processor %s", d, tt.processor)
			}
		})
	}

	// unknown manual event types are left for catch-up
	d := r.Dispatch(sig(signal.SourceManual, "mystery", map[string]any{"x": 1}))
	if d.Matched {
		t.Error("unknown manual event type should not match")
	}
}
