// Package scoring implements the deterministic action priority model.
// Four normalized factors combine into a 0-100 composite with a
// reproducible reasoning trace; no I/O, no clocks, no randomness.
package scoring

import (
	"fmt"
	"strings"
)

// Factor names the scoring inputs.
type Factor string

const (
	FactorRevenue   Factor = "revenue_impact"
	FactorUrgency   Factor = "urgency"
	FactorEffort    Factor = "effort"
	FactorStrategic Factor = "strategic_value"
)

// Factors holds factor values in [0,1]. Missing entries fall back to the
// engine's per-action-type defaults.
type Factors map[Factor]float64

// Components records the clamped factor values that produced a score.
type Components struct {
	Revenue   float64 `json:"revenue"`
	Urgency   float64 `json:"urgency"`
	Effort    float64 `json:"effort"`
	Strategic float64 `json:"strategic"`
}

// Result is the outcome of scoring one action type.
type Result struct {
	Score      float64    `json:"score"`
	Components Components `json:"components"`
	Adjustment float64    `json:"adjustment,omitempty"`
	Reasoning  string     `json:"reasoning"`
}

// Factor weights. Revenue dominates; effort counts inverted, cheap
// actions score higher.
const (
	weightRevenue   = 0.40
	weightUrgency   = 0.30
	weightStrategic = 0.20
	weightEffort    = 0.10
)

// Bounds for the post-hoc outcome adjustment supplied by an external
// history service.
const (
	MinAdjustment = -20.0
	MaxAdjustment = 20.0
)

// fallback is used for every factor of an unknown action type.
const fallback = 0.5

// Engine scores action types against a per-type factor default table.
// The table is injected at construction so worker processes share no
// mutable global state.
type Engine struct {
	defaults map[string]Factors
}

// NewEngine creates a scoring engine. The defaults map is keyed by action
// type; it may be nil, in which case every factor falls back to 0.5.
func NewEngine(defaults map[string]Factors) *Engine {
	return &Engine{defaults: defaults}
}

// Score combines the given factors into a 0-100 priority. Factors missing
// from the overrides are taken from the action type's default row, then
// from the 0.5 fallback. The adjustment is clamped to [-20,20] and the
// total re-clamped to [0,100].
func (e *Engine) Score(actionType string, overrides Factors, adjustment float64) Result {
	c := Components{
		Revenue:   e.factor(actionType, FactorRevenue, overrides),
		Urgency:   e.factor(actionType, FactorUrgency, overrides),
		Effort:    e.factor(actionType, FactorEffort, overrides),
		Strategic: e.factor(actionType, FactorStrategic, overrides),
	}

	base := 100 * (weightRevenue*c.Revenue +
		weightUrgency*c.Urgency +
		weightStrategic*c.Strategic +
		weightEffort*(1-c.Effort))

	adj := clamp(adjustment, MinAdjustment, MaxAdjustment)
	total := clamp(base+adj, 0, 100)

	return Result{
		Score:      total,
		Components: c,
		Adjustment: adj,
		Reasoning:  reasoning(c, adj, total),
	}
}

func (e *Engine) factor(actionType string, f Factor, overrides Factors) float64 {
	if v, ok := overrides[f]; ok {
		return clamp(v, 0, 1)
	}
	if row, ok := e.defaults[actionType]; ok {
		if v, ok := row[f]; ok {
			return clamp(v, 0, 1)
		}
	}
	return fallback
}

// reasoning renders a deterministic audit trace from the factor values
// alone. Tests and replayed audits must reproduce it byte for byte.
func reasoning(c Components, adj, total float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "revenue impact %.2f contributes %.1f pts; ", c.Revenue, 100*weightRevenue*c.Revenue)
	fmt.Fprintf(&b, "urgency %.2f contributes %.1f pts; ", c.Urgency, 100*weightUrgency*c.Urgency)
	fmt.Fprintf(&b, "strategic value %.2f contributes %.1f pts; ", c.Strategic, 100*weightStrategic*c.Strategic)
	fmt.Fprintf(&b, "effort %.2f contributes %.1f pts", c.Effort, 100*weightEffort*(1-c.Effort))
	if adj != 0 {
		fmt.Fprintf(&b, "; history adjustment %+.1f pts", adj)
	}
	fmt.Fprintf(&b, "; total %.1f", total)
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
