package signal

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHash_KeyOrderInvariant(t *testing.T) {
	t.Parallel()

	// Build the same logical payload through two differently-ordered JSON
	// documents; map iteration order is random in Go, so decode both.
	var a, b map[string]any
	if err := json.Unmarshal([]byte(`{"email":"a@b.com","name":"A","meta":{"x":1,"y":[1,2]}}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"meta":{"y":[1,2],"x":1},"name":"A","email":"a@b.com"}`), &b); err != nil {
		t.Fatal(err)
	}

	if Hash(a) != Hash(b) {
		t.Errorf("hashes differ for key-reordered payloads: %s vs %s", Hash(a), Hash(b))
	}
}

func TestHash_DistinctPayloads(t *testing.T) {
	t.Parallel()

	a := map[string]any{"email": "a@b.com"}
	b := map[string]any{"email": "c@d.com"}
	if Hash(a) == Hash(b) {
		t.Error("distinct payloads produced identical hashes")
	}
}

func TestHash_ArrayOrderSignificant(t *testing.T) {
	t.Parallel()

	a := map[string]any{"tags": []any{"x", "y"}}
	b := map[string]any{"tags": []any{"y", "x"}}
	if Hash(a) == Hash(b) {
		t.Error("array order should be significant")
	}
}

func TestHash_NestedMaps(t *testing.T) {
	t.Parallel()

	a := map[string]any{"outer": map[string]any{"b": 1.0, "a": 2.0}}
	b := map[string]any{"outer": map[string]any{"a": 2.0, "b": 1.0}}
	if Hash(a) != Hash(b) {
		t.Error("nested map key order should not affect the hash")
	}
}

func TestHash_EmptyAndNil(t *testing.T) {
	t.Parallel()

	if Hash(map[string]any{}) != Hash(map[string]any{}) {
		t.Error("empty payload hash not stable")
	}
	if Hash(nil) != Hash(map[string]any{}) {
		t.Error("nil payload should hash like an empty payload")
	}
}

func TestDedupBucket(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     time.Time
		window   time.Duration
		sameWant bool
	}{
		{"same instant", base, base, 5 * time.Minute, true},
		{"within window", base, base.Add(30 * time.Second), 5 * time.Minute, true},
		{"next bucket", base, base.Add(5 * time.Minute), 5 * time.Minute, false},
		{"tiny window", base, base.Add(2 * time.Second), time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			same := DedupBucket(tt.a, tt.window) == DedupBucket(tt.b, tt.window)
			if same != tt.sameWant {
				t.Errorf("bucket equality = %v, want %v", same, tt.sameWant)
			}
		})
	}
}

func TestDedupBucket_ZeroWindowUsesDefault(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if DedupBucket(at, 0) != DedupBucket(at, DefaultDedupWindow) {
		t.Error("zero window should fall back to the default window")
	}
}

func TestDedupBucket_SubSecondWindowRoundsUp(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// must not divide by zero; a sub-second window behaves as one second
	for _, window := range []time.Duration{time.Nanosecond, 500 * time.Millisecond, 999 * time.Millisecond} {
		if got, want := DedupBucket(at, window), DedupBucket(at, time.Second); got != want {
			t.Errorf("DedupBucket(%v) = %d, want %d", window, got, want)
		}
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"form", "crm", "mailbox", "social", "manual"} {
		if _, err := ParseSource(raw); err != nil {
			t.Errorf("ParseSource(%q) = %v, want nil", raw, err)
		}
	}
	if _, err := ParseSource("carrier-pigeon"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestSignal_PayloadAccessors(t *testing.T) {
	t.Parallel()

	s := &Signal{Payload: map[string]any{
		"body":   "hello",
		"amount": 1000.0,
		"count":  3,
		"flag":   true,
	}}

	if got := s.Text("body"); got != "hello" {
		t.Errorf("Text(body) = %q", got)
	}
	if got := s.Text("missing"); got != "" {
		t.Errorf("Text(missing) = %q, want empty", got)
	}
	if got := s.Text("flag"); got != "" {
		t.Errorf("Text(flag) = %q, want empty for non-string", got)
	}
	if v, ok := s.Number("amount"); !ok || v != 1000 {
		t.Errorf("Number(amount) = %v, %v", v, ok)
	}
	if v, ok := s.Number("count"); !ok || v != 3 {
		t.Errorf("Number(count) = %v, %v", v, ok)
	}
	if _, ok := s.Number("body"); ok {
		t.Error("Number(body) should not be ok")
	}
}
