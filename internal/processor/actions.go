package processor

import (
	"maps"
	"time"

	"github.com/linnemanlabs/scout/internal/scoring"
	"github.com/linnemanlabs/scout/internal/signal"
)

// Action types produced by the standard processors.
const (
	ActionFollowUpLead    = "follow_up_lead"
	ActionQualifyLead     = "qualify_lead"
	ActionScheduleMeeting = "schedule_meeting"
	ActionSendPricing     = "send_pricing"
	ActionProcessOptOut   = "process_opt_out"
	ActionSendReply       = "send_reply"
	ActionAdvanceDeal     = "advance_deal"
	ActionReviewDeal      = "review_deal"
	ActionEngageMention   = "engage_mention"
	ActionReviewSignal    = "review_signal"
)

// ActionDefaults is one row of the declarative source mapping: the action
// type plus its baseline scoring factors and response deadline.
type ActionDefaults struct {
	ActionType string
	Factors    scoring.Factors
	DueIn      time.Duration
}

type tableKey struct {
	Source    signal.Source
	EventType string
}

// actionTable maps (source, event_type) to default action parameters.
// Processors may refine the row through content-based overrides, but every
// mapping decision starts here so there is exactly one place that knows
// which event becomes which action.
var actionTable = map[tableKey]ActionDefaults{
	{signal.SourceForm, "form_submission"}: {
		ActionType: ActionFollowUpLead,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.5, scoring.FactorUrgency: 0.8, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.5},
		DueIn:      4 * time.Hour,
	},
	{signal.SourceForm, "demo_request"}: {
		ActionType: ActionQualifyLead,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.7, scoring.FactorUrgency: 0.9, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.6},
		DueIn:      2 * time.Hour,
	},
	{signal.SourceCRM, "deal_stage_changed"}: {
		ActionType: ActionAdvanceDeal,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.6, scoring.FactorUrgency: 0.6, scoring.FactorEffort: 0.4, scoring.FactorStrategic: 0.6},
		DueIn:      24 * time.Hour,
	},
	{signal.SourceCRM, "deal_created"}: {
		ActionType: ActionReviewDeal,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.6, scoring.FactorUrgency: 0.5, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.5},
		DueIn:      24 * time.Hour,
	},
	{signal.SourceMailbox, "email_reply"}: {
		ActionType: ActionSendReply,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.5, scoring.FactorUrgency: 0.7, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.4},
		DueIn:      8 * time.Hour,
	},
	{signal.SourceSocial, "mention"}: {
		ActionType: ActionEngageMention,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.3, scoring.FactorUrgency: 0.6, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.6},
		DueIn:      12 * time.Hour,
	},
	{signal.SourceSocial, "comment"}: {
		ActionType: ActionEngageMention,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.2, scoring.FactorUrgency: 0.5, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.5},
		DueIn:      24 * time.Hour,
	},
	{signal.SourceManual, "note"}: {
		ActionType: ActionReviewSignal,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.4, scoring.FactorUrgency: 0.5, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.5},
		DueIn:      48 * time.Hour,
	},
	{signal.SourceManual, "task"}: {
		ActionType: ActionReviewSignal,
		Factors:    scoring.Factors{scoring.FactorRevenue: 0.4, scoring.FactorUrgency: 0.7, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.5},
		DueIn:      24 * time.Hour,
	},
}

// Defaults looks up the declarative mapping row for an event.
func Defaults(src signal.Source, eventType string) (ActionDefaults, bool) {
	d, ok := actionTable[tableKey{src, eventType}]
	return d, ok
}

// factorDefaults is the per-action-type baseline used by the scoring
// engine when a processor supplies no override for a factor.
var factorDefaults = map[string]scoring.Factors{
	ActionFollowUpLead:    {scoring.FactorRevenue: 0.5, scoring.FactorUrgency: 0.8, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.5},
	ActionQualifyLead:     {scoring.FactorRevenue: 0.7, scoring.FactorUrgency: 0.9, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.6},
	ActionScheduleMeeting: {scoring.FactorRevenue: 0.8, scoring.FactorUrgency: 0.9, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.6},
	ActionSendPricing:     {scoring.FactorRevenue: 0.8, scoring.FactorUrgency: 0.8, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.6},
	ActionProcessOptOut:   {scoring.FactorRevenue: 0.1, scoring.FactorUrgency: 0.9, scoring.FactorEffort: 0.1, scoring.FactorStrategic: 0.2},
	ActionSendReply:       {scoring.FactorRevenue: 0.5, scoring.FactorUrgency: 0.7, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.4},
	ActionAdvanceDeal:     {scoring.FactorRevenue: 0.6, scoring.FactorUrgency: 0.6, scoring.FactorEffort: 0.4, scoring.FactorStrategic: 0.6},
	ActionReviewDeal:      {scoring.FactorRevenue: 0.6, scoring.FactorUrgency: 0.5, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.5},
	ActionEngageMention:   {scoring.FactorRevenue: 0.3, scoring.FactorUrgency: 0.6, scoring.FactorEffort: 0.2, scoring.FactorStrategic: 0.6},
	ActionReviewSignal:    {scoring.FactorRevenue: 0.4, scoring.FactorUrgency: 0.5, scoring.FactorEffort: 0.3, scoring.FactorStrategic: 0.5},
}

// FactorDefaults returns a copy of the per-action-type factor table for
// injection into a scoring engine.
func FactorDefaults() map[string]scoring.Factors {
	out := make(map[string]scoring.Factors, len(factorDefaults))
	for k, v := range factorDefaults {
		out[k] = maps.Clone(v)
	}
	return out
}
