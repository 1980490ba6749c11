package scoring

import (
	"strings"

	"github.com/dshills/saasrank/pkg/types"
)

// FactResult is the outcome of one scored constraint rule
type FactResult struct {
	Type      types.FactType
	Expected  string // Value that satisfies the rule
	Actual    string // Value found on the candidate, empty when absent
	Required  bool   // The user marked this constraint as mandatory
	Satisfied bool
}

// FactEvaluation is the complete fact computation for one candidate
type FactEvaluation struct {
	Results []FactResult
}

// RequiredCount returns how many rules the user marked as mandatory
func (e FactEvaluation) RequiredCount() int {
	n := 0
	for _, r := range e.Results {
		if r.Required {
			n++
		}
	}
	return n
}

// MatchedRequiredCount returns how many mandatory rules are satisfied
func (e FactEvaluation) MatchedRequiredCount() int {
	n := 0
	for _, r := range e.Results {
		if r.Required && r.Satisfied {
			n++
		}
	}
	return n
}

// MatchedRequired returns the rules that are both mandatory and satisfied
func (e FactEvaluation) MatchedRequired() []FactResult {
	var out []FactResult
	for _, r := range e.Results {
		if r.Required && r.Satisfied {
			out = append(out, r)
		}
	}
	return out
}

// MatchScore is the fact-match ratio of this evaluation
func (e FactEvaluation) MatchScore() float64 {
	return FactMatchScore(e.MatchedRequiredCount(), e.RequiredCount())
}

// FactMatchScore is the ratio of satisfied to required constraints.
// No required constraints means fully satisfied.
func FactMatchScore(matched, required int) float64 {
	if required <= 0 {
		return 1
	}
	return clampUnit(float64(matched) / float64(required))
}

// EvaluateFacts applies the constraint rules to a candidate's facts.
// SSO and audit-log rules always run so optional support can earn
// fallback points; the data-residency rule only runs when a specific
// region is requested.
func EvaluateFacts(facts []types.Fact, c types.Constraints) FactEvaluation {
	results := []FactResult{
		capabilityRule(facts, types.FactSSO, c.RequireSSO),
		capabilityRule(facts, types.FactAuditLog, c.RequireAuditLog),
	}

	if c.RequiresDataResidency() {
		actual := factValue(facts, types.FactDataResidency)
		results = append(results, FactResult{
			Type:      types.FactDataResidency,
			Expected:  c.DataResidency,
			Actual:    actual,
			Required:  true,
			Satisfied: regionMatches(actual, c.DataResidency),
		})
	}

	return FactEvaluation{Results: results}
}

func capabilityRule(facts []types.Fact, factType types.FactType, required bool) FactResult {
	actual := factValue(facts, factType)
	return FactResult{
		Type:      factType,
		Expected:  types.FactValueSupported,
		Actual:    actual,
		Required:  required,
		Satisfied: actual == types.FactValueSupported,
	}
}

func factValue(facts []types.Fact, factType types.FactType) string {
	for _, f := range facts {
		if f.Type == factType {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// regionMatches accepts a single region or a comma-separated list
func regionMatches(actual, want string) bool {
	for _, region := range strings.Split(actual, ",") {
		if strings.EqualFold(strings.TrimSpace(region), want) {
			return true
		}
	}
	return false
}
