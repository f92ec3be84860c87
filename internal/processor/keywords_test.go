package processor

import "testing"

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantCat  string
		wantMiss bool
	}{
		{"scheduling", "let's schedule a call", "scheduling", false},
		{"scheduling case-insensitive", "My CALENDAR is open Friday", "scheduling", false},
		{"buying", "can you send over pricing?", "buying", false},
		{"opt-out", "please remove me from this list", "opt-out", false},
		{"scheduling beats buying", "let's schedule a call to discuss pricing", "scheduling", false},
		{"buying beats opt-out", "not interested unless the price drops", "buying", false},
		{"no intent", "thanks for the update", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cat, ok := ClassifyIntent(tt.text)
			if ok == tt.wantMiss {
				t.Fatalf("ClassifyIntent(%q) ok = %v", tt.text, ok)
			}
			if !tt.wantMiss && cat.Name != tt.wantCat {
				t.Errorf("category = %q, want %q", cat.Name, tt.wantCat)
			}
		})
	}
}

func TestIntentCategories_PrecedenceIsFixed(t *testing.T) {
	t.Parallel()

	want := []string{"scheduling", "buying", "opt-out"}
	if len(intentCategories) != len(want) {
		t.Fatalf("categories = %d, want %d", len(intentCategories), len(want))
	}
	for i, cat := range intentCategories {
		if cat.Name != want[i] {
			t.Errorf("category[%d] = %q, want %q", i, cat.Name, want[i])
		}
	}
}
