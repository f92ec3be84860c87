package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/scout/internal/pipeline"
)

func testItem() *pipeline.ActionItem {
	return &pipeline.ActionItem{
		ID:            "01JN123",
		ActionType:    "schedule_meeting",
		PriorityScore: 0.86,
		Status:        pipeline.StatusPending,
		Owner:         "sales",
		DueBy:         time.Date(2026, 2, 26, 17, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, 2, 26, 14, 0, 0, 0, time.UTC),
	}
}

func testRec() *pipeline.Recommendation {
	return &pipeline.Recommendation{
		ID:          "01JN124",
		Score:       86,
		Reasoning:   "urgency 0.90 contributes 27.0 pts",
		GeneratedAt: time.Date(2026, 2, 26, 14, 0, 0, 0, time.UTC),
	}
}

func TestNotifyEnqueued_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.NotifyEnqueued(context.Background(), testItem(), testRec()); err != nil {
		t.Fatalf("NotifyEnqueued: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, reasoning, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	// Verify header contains the action and the high-priority emoji
	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "schedule meeting") {
		t.Errorf("header text = %q, want to contain the action", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should contain red circle for score >= 80")
	}
}

func TestNotifyEnqueued_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.NotifyEnqueued(context.Background(), testItem(), testRec()); err != nil {
		t.Fatalf("NotifyEnqueued with empty URL should be no-op, got: %v", err)
	}
}

func TestNotifyEnqueued_TruncatesLongReasoning(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := testRec()
	rec.Reasoning = strings.Repeat("x", 4000)

	n := New(srv.URL)
	if err := n.NotifyEnqueued(context.Background(), testItem(), rec); err != nil {
		t.Fatalf("NotifyEnqueued: %v", err)
	}

	blocks := got["blocks"].([]any)
	reasoningSection := blocks[4].(map[string]any)
	text := reasoningSection["text"].(map[string]any)["text"].(string)

	if len(text) > maxReasoningLen+len("*Why*\n\n") {
		t.Errorf("reasoning text length = %d, expected <= %d", len(text), maxReasoningLen+len("*Why*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated reasoning to end with ...")
	}
}

func TestPriorityEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"critical", 92, "\U0001f534"},
		{"at red boundary", 80, "\U0001f534"},
		{"medium", 65, "\U0001f7e1"},
		{"at yellow boundary", 50, "\U0001f7e1"},
		{"low", 20, "\U0001f7e2"},
		{"zero", 0, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := priorityEmoji(tt.score); got != tt.want {
				t.Errorf("priorityEmoji(%g) = %q, want %q", tt.score, got, tt.want)
			}
		})
	}
}

func TestHumanizeAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"follow_up_lead", "follow up lead"},
		{"schedule_meeting", "schedule meeting"},
		{"review", "review"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := humanizeAction(tt.input); got != tt.want {
				t.Errorf("humanizeAction(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("follow_up_lead", "revenue impact 0.80 contributes 32.0 pts", "sales", 86.0)
	f.Add("", "", "", 0.0)
	f.Add("<@U123> mention", "*bold* _italic_ ~strike~", "owner\nline", 50.0)
	f.Add("action\x00\x01\x02", "reason\ttab", "o", -5.0)
	f.Add(strings.Repeat("A", 5000), strings.Repeat("x", 10000), "", 200.0)
	f.Add("send_pricing", "```code block``` and <http://example.com|link>", "ae-team", 73.2)

	f.Fuzz(func(t *testing.T, actionType, reasoning, owner string, score float64) {
		item := &pipeline.ActionItem{
			ID:         "fuzz-id",
			ActionType: actionType,
			Status:     pipeline.StatusPending,
			Owner:      owner,
			DueBy:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		rec := &pipeline.Recommendation{
			ID:          "fuzz-rec",
			Score:       score,
			Reasoning:   reasoning,
			GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		// Must not panic
		msg := buildMessage(item, rec)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		// Must round-trip
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestNotifyEnqueued_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.NotifyEnqueued(context.Background(), testItem(), testRec()); err == nil {
		t.Fatal("expected error on non-OK status")
	} else if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
