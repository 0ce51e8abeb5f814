// Package discount provides the course discount rules
// Evaluates a rule against a course's pre-discount subtotal
package discount

import "fmt"

// Type defines how a rule computes its deduction
type Type string

const (
	TypeNone       Type = "none"
	TypeFixed      Type = "fixed"
	TypePercentage Type = "percentage"
)

// NoneID is the id of the rule every unknown rule id falls back to
const NoneID = "none"

// PercentageThreshold is the minimum subtotal for percentage rules to activate
const PercentageThreshold = 5000.0

// Rule defines a discount policy attached to a course
type Rule struct {
	ID        string  `json:"id" yaml:"-"`
	Type      Type    `json:"type" yaml:"type"`
	Value     float64 `json:"value" yaml:"value"`
	Condition string  `json:"condition" yaml:"condition"`
}

// None returns the rule that never discounts
func None() Rule {
	return Rule{ID: NoneID, Type: TypeNone, Value: 0, Condition: "no discount"}
}

// Validate checks the rule's value for its type
func (r Rule) Validate() error {
	switch r.Type {
	case TypeNone:
		return nil
	case TypeFixed:
		if r.Value < 0 {
			return fmt.Errorf("rule %s: fixed discount must not be negative", r.ID)
		}
	case TypePercentage:
		if r.Value < 0 || r.Value > 100 {
			return fmt.Errorf("rule %s: percentage must be within 0-100", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown type %q", r.ID, r.Type)
	}
	return nil
}

// Outcome is the result of evaluating a rule
type Outcome struct {
	RuleID    string  `json:"rule_id"`
	Type      Type    `json:"type"`
	Condition string  `json:"condition"`
	Amount    float64 `json:"discount_amount"`
	Applied   bool    `json:"applied"`
}

// Apply evaluates rule against subtotal
// Amounts are not rounded
func Apply(rule Rule, subtotal float64) Outcome {
	out := Outcome{
		RuleID:    rule.ID,
		Type:      rule.Type,
		Condition: rule.Condition,
	}

	switch rule.Type {
	case TypePercentage:
		if subtotal >= PercentageThreshold {
			out.Amount = subtotal * (rule.Value / 100.0)
			out.Applied = true
		}
	case TypeFixed:
		out.Amount = rule.Value
		out.Applied = true
	}

	return out
}
