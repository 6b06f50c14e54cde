package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vendaflow/lead-api/internal/domain"
)

// InitialScoreCap bounds the initial score contribution. Custom-field
// bonuses are applied on top and are not capped.
const InitialScoreCap = 50

// HighValueThreshold is the total score at or above which the
// high-value automation hook fires.
const HighValueThreshold = 70

var baseScores = map[domain.LeadSource]int{
	domain.LeadSourceReferral:      30,
	domain.LeadSourceEvent:         25,
	domain.LeadSourceWebsite:       20,
	domain.LeadSourceSocialMedia:   15,
	domain.LeadSourceEmailCampaign: 10,
	domain.LeadSourceColdCall:      5,
}

const unknownSourceScore = 10

// highValueFields each add a flat bonus when present with any value.
var highValueFields = []string{"budget", "company_size", "decision_maker", "timeline"}

const (
	presenceBonus    = 10
	budgetThreshold  = 10000
	budgetBonus      = 15
	companySizeLimit = 100
	companySizeBonus = 10
)

// Engine computes score deltas for the adjustment log. It is pure:
// identical inputs always produce identical deltas and reasons.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ComputeInitial returns the initial score delta for a new lead and the
// reason string to record with it. The result is capped at
// InitialScoreCap.
func (e *Engine) ComputeInitial(source domain.LeadSource, hasPhone, hasCompany bool) (int, string) {
	score, known := baseScores[source]
	if !known {
		score = unknownSourceScore
	}

	parts := []string{fmt.Sprintf("source=%s(%d)", sourceLabel(source, known), score)}

	if hasPhone {
		score += 5
		parts = append(parts, "phone(+5)")
	}
	if hasCompany {
		score += 10
		parts = append(parts, "company(+10)")
	}

	if score > InitialScoreCap {
		score = InitialScoreCap
		parts = append(parts, fmt.Sprintf("capped(%d)", InitialScoreCap))
	}

	return score, "initial: " + strings.Join(parts, " ")
}

// ComputeCustomFieldBonus returns the custom-field bonus delta and its
// reason string. A zero delta means no adjustment should be recorded.
// Negative or non-numeric budget/company_size values count for presence
// but never satisfy the threshold comparisons.
func (e *Engine) ComputeCustomFieldBonus(fields map[string]any) (int, string) {
	if len(fields) == 0 {
		return 0, ""
	}

	bonus := 0
	var parts []string

	for _, name := range highValueFields {
		if _, ok := fields[name]; ok {
			bonus += presenceBonus
			parts = append(parts, fmt.Sprintf("%s(+%d)", name, presenceBonus))
		}
	}

	if v, ok := numericField(fields, "budget"); ok && v > budgetThreshold {
		bonus += budgetBonus
		parts = append(parts, fmt.Sprintf("budget>%d(+%d)", budgetThreshold, budgetBonus))
	}
	if v, ok := numericField(fields, "company_size"); ok && v > companySizeLimit {
		bonus += companySizeBonus
		parts = append(parts, fmt.Sprintf("company_size>%d(+%d)", companySizeLimit, companySizeBonus))
	}

	if bonus == 0 {
		return 0, ""
	}
	return bonus, "custom fields: " + strings.Join(parts, " ")
}

func sourceLabel(source domain.LeadSource, known bool) string {
	if !known {
		return "unknown"
	}
	return string(source)
}

// numericField extracts a non-negative numeric value. Values that fail
// to parse, and negative values, are treated as absent.
func numericField(fields map[string]any, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}

	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case float32:
		v = float64(t)
	case int:
		v = float64(t)
	case int64:
		v = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if v < 0 {
		return 0, false
	}
	return v, true
}
