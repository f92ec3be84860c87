package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/scout/internal/pipeline"
	"github.com/linnemanlabs/scout/internal/pipeline/pgstore"
	"github.com/linnemanlabs/scout/internal/signal"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("SCOUT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SCOUT_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func testSignal() *signal.Signal {
	return &signal.Signal{
		ID:          ulid.Make().String(),
		Source:      signal.SourceForm,
		EventType:   "form_submission",
		Payload:     map[string]any{"email": "a@b.com", "name": "A"},
		PayloadHash: ulid.Make().String(), // unique per run; hashing is tested elsewhere
		CreatedAt:   time.Now().Truncate(time.Microsecond).UTC(),
	}
}

func TestInsertSignal_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sig := testSignal()
	sig.SourceID = "ext-123"

	row, created, err := s.InsertSignal(ctx, sig, 42)
	if err != nil {
		t.Fatalf("InsertSignal: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for fresh signal")
	}

	got, ok, err := s.GetSignal(ctx, row.ID)
	if err != nil {
		t.Fatalf("GetSignal: %v", err)
	}
	if !ok {
		t.Fatal("GetSignal returned ok=false")
	}
	if got.Source != signal.SourceForm || got.EventType != "form_submission" {
		t.Errorf("signal = %+v", got)
	}
	if got.Payload["email"] != "a@b.com" {
		t.Errorf("payload = %v", got.Payload)
	}
	if got.SourceID != "ext-123" {
		t.Errorf("SourceID = %q", got.SourceID)
	}
	if got.Processed() {
		t.Error("fresh signal should be unprocessed")
	}
}

func TestInsertSignal_Conflict(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first := testSignal()
	if _, created, err := s.InsertSignal(ctx, first, 7); err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	dup := testSignal()
	dup.PayloadHash = first.PayloadHash
	existing, created, err := s.InsertSignal(ctx, dup, 7)
	if err != nil {
		t.Fatalf("dup insert: %v", err)
	}
	if created {
		t.Error("duplicate insert should not create")
	}
	if existing.ID != first.ID {
		t.Errorf("existing.ID = %q, want %q", existing.ID, first.ID)
	}
}

func TestCompleteSignal_ClaimOnce(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sig := testSignal()
	_, _, err := s.InsertSignal(ctx, sig, 9)
	if err != nil {
		t.Fatalf("InsertSignal: %v", err)
	}

	now := time.Now().Truncate(time.Microsecond).UTC()
	rec := &pipeline.Recommendation{
		ID:          ulid.Make().String(),
		Score:       81,
		Reasoning:   "revenue impact 0.80 contributes 32.0 pts",
		GeneratedAt: now,
	}
	item := &pipeline.ActionItem{
		ID:               ulid.Make().String(),
		ActionType:       "follow_up_lead",
		ActionContext:    map[string]any{"email": "a@b.com"},
		PriorityScore:    0.81,
		Status:           pipeline.StatusPending,
		DueBy:            now.Add(4 * time.Hour),
		RecommendationID: rec.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	claimed, err := s.CompleteSignal(ctx, sig.ID, now, rec, item)
	if err != nil || !claimed {
		t.Fatalf("complete: claimed=%v err=%v", claimed, err)
	}

	claimed, err = s.CompleteSignal(ctx, sig.ID, now, rec, item)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if claimed {
		t.Error("second complete should lose the claim")
	}

	got, _, err := s.GetSignal(ctx, sig.ID)
	if err != nil {
		t.Fatalf("GetSignal: %v", err)
	}
	if !got.Processed() || got.RecommendationID != rec.ID {
		t.Errorf("signal = %+v, want processed with recommendation", got)
	}

	gotRec, ok, err := s.GetRecommendation(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("GetRecommendation: ok=%v err=%v", ok, err)
	}
	if gotRec.Score != 81 {
		t.Errorf("Score = %v, want 81", gotRec.Score)
	}
}

func TestTransitionAction(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	sig := testSignal()
	_, _, _ = s.InsertSignal(ctx, sig, 11)

	now := time.Now().Truncate(time.Microsecond).UTC()
	rec := &pipeline.Recommendation{ID: ulid.Make().String(), GeneratedAt: now, Reasoning: "x"}
	item := &pipeline.ActionItem{
		ID:               ulid.Make().String(),
		ActionType:       "send_reply",
		PriorityScore:    0.5,
		Status:           pipeline.StatusPending,
		DueBy:            now.Add(8 * time.Hour),
		RecommendationID: rec.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.CompleteSignal(ctx, sig.ID, now, rec, item); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := s.TransitionAction(ctx, item.ID, pipeline.StatusAccepted, now.Add(time.Minute))
	if err != nil || got.Status != pipeline.StatusAccepted {
		t.Fatalf("accept: item=%+v err=%v", got, err)
	}

	// idempotent repeat
	if _, err := s.TransitionAction(ctx, item.ID, pipeline.StatusAccepted, now.Add(2*time.Minute)); err != nil {
		t.Errorf("repeat accept: %v, want no-op success", err)
	}

	// accepted -> dismissed is illegal
	if _, err := s.TransitionAction(ctx, item.ID, pipeline.StatusDismissed, now); !errors.Is(err, pipeline.ErrIllegalTransition) {
		t.Errorf("err = %v, want ErrIllegalTransition", err)
	}

	// outcome recording on the accepted item
	done, err := s.RecordOutcome(ctx, item.ID, "replied", now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}
	if done.Outcome != "replied" || done.ExecutedAt == nil {
		t.Errorf("item = %+v, want outcome recorded", done)
	}

	// unknown id
	if _, err := s.TransitionAction(ctx, "no-such-action", pipeline.StatusAccepted, now); !errors.Is(err, pipeline.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
