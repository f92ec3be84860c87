package processor

import (
	"maps"

	"github.com/linnemanlabs/scout/internal/scoring"
	"github.com/linnemanlabs/scout/internal/signal"
)

// revenueScaleCeiling is the deal amount that maps to a full 1.0 revenue
// factor; smaller deals scale linearly below it.
const revenueScaleCeiling = 100_000.0

// CRM handles deal record changes. Revenue impact scales with the deal
// amount so a $100k deal always outranks a $1k deal at the same stage.
type CRM struct{}

// NewCRM creates the CRM processor.
func NewCRM() *CRM { return &CRM{} }

func (*CRM) Name() string { return "crm" }

func (*CRM) CanHandle(sig *signal.Signal) bool {
	return sig.Source == signal.SourceCRM
}

func (*CRM) Validate(sig *signal.Signal) bool {
	_, ok := sig.Payload["deal_id"]
	return ok
}

func (*CRM) Process(sig *signal.Signal) (*Draft, error) {
	d, ok := Defaults(signal.SourceCRM, sig.EventType)
	if !ok {
		d, _ = Defaults(signal.SourceCRM, "deal_stage_changed")
	}

	factors := maps.Clone(d.Factors)
	if factors == nil {
		factors = scoring.Factors{}
	}

	ctx := map[string]any{
		"deal_id": sig.Payload["deal_id"],
	}
	if stage := sig.Text("stage"); stage != "" {
		ctx["stage"] = stage
	}
	if name := sig.Text("deal_name"); name != "" {
		ctx["deal_name"] = name
	}

	if amount, ok := sig.Number("amount"); ok {
		ctx["amount"] = amount
		rev := amount / revenueScaleCeiling
		if rev > 1 {
			rev = 1
		}
		if rev < 0 {
			rev = 0
		}
		factors[scoring.FactorRevenue] = rev
	}

	return &Draft{
		ActionType: d.ActionType,
		Context:    ctx,
		Factors:    factors,
		DueIn:      d.DueIn,
	}, nil
}
