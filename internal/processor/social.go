package processor

import (
	"maps"

	"github.com/linnemanlabs/scout/internal/scoring"
	"github.com/linnemanlabs/scout/internal/signal"
)

// reachScaleCeiling is the follower count mapping to a full strategic
// factor for social mentions.
const reachScaleCeiling = 20_000.0

// Social handles social media mentions and comments. Strategic value
// scales with the author's reach.
type Social struct{}

// NewSocial creates the social processor.
func NewSocial() *Social { return &Social{} }

func (*Social) Name() string { return "social" }

func (*Social) CanHandle(sig *signal.Signal) bool {
	return sig.Source == signal.SourceSocial
}

func (*Social) Validate(sig *signal.Signal) bool {
	return sig.Text("text") != "" && sig.Text("author") != ""
}

func (*Social) Process(sig *signal.Signal) (*Draft, error) {
	d, ok := Defaults(signal.SourceSocial, sig.EventType)
	if !ok {
		d, _ = Defaults(signal.SourceSocial, "mention")
	}

	factors := maps.Clone(d.Factors)
	if factors == nil {
		factors = scoring.Factors{}
	}

	ctx := map[string]any{
		"author": sig.Text("author"),
		"text":   sig.Text("text"),
	}
	if platform := sig.Text("platform"); platform != "" {
		ctx["platform"] = platform
	}
	if url := sig.Text("url"); url != "" {
		ctx["url"] = url
	}

	if followers, ok := sig.Number("followers"); ok {
		ctx["followers"] = followers
		reach := followers / reachScaleCeiling
		if reach > 1 {
			reach = 1
		}
		if reach < 0 {
			reach = 0
		}
		if base := factors[scoring.FactorStrategic]; reach > base {
			factors[scoring.FactorStrategic] = reach
		}
	}

	return &Draft{
		ActionType: d.ActionType,
		Context:    ctx,
		Factors:    factors,
		DueIn:      d.DueIn,
	}, nil
}
