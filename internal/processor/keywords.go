package processor

import (
	"strings"
	"time"
)

// IntentCategory is one ordered keyword class for content-based action
// refinement. Categories are evaluated against free text in slice order;
// the first match wins, multiple simultaneous matches never apply.
type IntentCategory struct {
	Name       string
	ActionType string
	DueIn      time.Duration
	Keywords   []string
}

// intentCategories is the fixed precedence list: scheduling intent beats
// buying intent beats opt-out intent. A reply like "let's schedule a call
// to discuss pricing" is a scheduling action.
var intentCategories = []IntentCategory{
	{
		Name:       "scheduling",
		ActionType: ActionScheduleMeeting,
		DueIn:      3 * time.Hour,
		Keywords: []string{
			"schedule", "meeting", "call", "calendar", "availability",
			"available", "let's talk", "catch up", "this week", "next week",
		},
	},
	{
		Name:       "buying",
		ActionType: ActionSendPricing,
		DueIn:      6 * time.Hour,
		Keywords: []string{
			"pricing", "price", "quote", "cost", "budget", "purchase",
			"buy", "demo", "trial", "contract",
		},
	},
	{
		Name:       "opt-out",
		ActionType: ActionProcessOptOut,
		DueIn:      24 * time.Hour,
		Keywords: []string{
			"unsubscribe", "opt out", "opt-out", "remove me",
			"stop emailing", "not interested", "no longer interested",
		},
	},
}

// ClassifyIntent matches text against the precedence-ordered categories.
// Matching is case-insensitive substring containment. Returns false when
// no category matches.
func ClassifyIntent(text string) (IntentCategory, bool) {
	lower := strings.ToLower(text)
	for _, cat := range intentCategories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat, true
			}
		}
	}
	return IntentCategory{}, false
}
