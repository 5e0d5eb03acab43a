/*
factory.go - JSON bonus definitions to validated catalog entries

PURPOSE:
  Admins configure bonuses as JSON. The factory decodes, validates and
  converts them into generic.Bonus values so that a malformed rule is
  rejected before it is stored, never discovered during settlement.

JSON SCHEMA:
  {
    "id": "punctuality",
    "name": "Punctuality bonus",
    "amount": "250.00",
    "active": true,
    "rule": {
      "concept": "late_minutes",
      "operator": "<=",
      "threshold": 15,
      "scope": "period_accumulated",
      "behavior": "fixed_amount"
    }
  }

  Omitting "rule" makes the bonus unconditional (paid once per period).

SEE ALSO:
  - engine.go: Evaluate
  - generic/types.go: RuleConfig
*/
package bonus

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

var validate = validator.New()

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BonusJSON is the JSON representation of a catalog entry.
type BonusJSON struct {
	ID     string          `json:"id" validate:"required,max=64"`
	Name   string          `json:"name" validate:"required,max=200"`
	Amount decimal.Decimal `json:"amount"`
	Active *bool           `json:"active,omitempty"`
	Rule   *RuleJSON       `json:"rule,omitempty" validate:"omitempty"`
}

// RuleJSON is the five-field rule.
type RuleJSON struct {
	Concept   string          `json:"concept" validate:"required,oneof=late_minutes extra_minutes unjustified_absences attendance"`
	Operator  string          `json:"operator" validate:"required"`
	Threshold decimal.Decimal `json:"threshold"`
	Scope     string          `json:"scope" validate:"required,oneof=daily period_total period_accumulated"`
	Behavior  string          `json:"behavior" validate:"required,oneof=fixed_amount pay_per_unit per_day_worked"`
}

var operators = map[generic.Operator]bool{
	generic.OpEqual:          true,
	generic.OpNotEqual:       true,
	generic.OpGreater:        true,
	generic.OpLess:           true,
	generic.OpGreaterOrEqual: true,
	generic.OpLessOrEqual:    true,
}

// =============================================================================
// PARSING
// =============================================================================

// ParseBonus decodes and validates a JSON bonus definition.
func ParseBonus(data []byte) (generic.Bonus, error) {
	var bj BonusJSON
	if err := json.Unmarshal(data, &bj); err != nil {
		return generic.Bonus{}, &generic.ValidationError{Field: "bonus", Message: "invalid JSON", Err: err}
	}
	return bj.ToBonus()
}

// ToBonus validates the decoded definition and converts it.
func (bj BonusJSON) ToBonus() (generic.Bonus, error) {
	if err := validate.Struct(bj); err != nil {
		return generic.Bonus{}, toValidationError(err)
	}
	if bj.Amount.IsNegative() {
		return generic.Bonus{}, &generic.ValidationError{Field: "amount", Message: "bonus amount must not be negative", Err: generic.ErrInvalidRule}
	}

	b := generic.Bonus{
		ID:     generic.BonusID(bj.ID),
		Name:   bj.Name,
		Amount: bj.Amount,
		Active: bj.Active == nil || *bj.Active,
	}
	if bj.Rule != nil {
		rule := generic.RuleConfig{
			Concept:   generic.Concept(bj.Rule.Concept),
			Operator:  generic.Operator(strings.TrimSpace(bj.Rule.Operator)),
			Threshold: bj.Rule.Threshold,
			Scope:     generic.Scope(bj.Rule.Scope),
			Behavior:  generic.Behavior(bj.Rule.Behavior),
		}
		if err := ValidateRule(rule); err != nil {
			return generic.Bonus{}, err
		}
		b.Rule = &rule
	}
	return b, nil
}

// FromBonus is the inverse of ToBonus, used by the API to echo the catalog.
func FromBonus(b generic.Bonus) BonusJSON {
	active := b.Active
	bj := BonusJSON{ID: string(b.ID), Name: b.Name, Amount: b.Amount, Active: &active}
	if b.Rule != nil {
		bj.Rule = &RuleJSON{
			Concept:   string(b.Rule.Concept),
			Operator:  string(b.Rule.Operator),
			Threshold: b.Rule.Threshold,
			Scope:     string(b.Rule.Scope),
			Behavior:  string(b.Rule.Behavior),
		}
	}
	return bj
}

// ValidateRule checks that every field of the rule is in its closed set.
func ValidateRule(rule generic.RuleConfig) error {
	switch rule.Concept {
	case generic.ConceptLateMinutes, generic.ConceptExtraMinutes, generic.ConceptUnjustifiedAbsences, generic.ConceptAttendance:
	default:
		return ruleError("concept", fmt.Sprintf("unknown concept %q", rule.Concept))
	}
	if !operators[rule.Operator] {
		return ruleError("operator", fmt.Sprintf("unknown operator %q", rule.Operator))
	}
	switch rule.Scope {
	case generic.ScopeDaily, generic.ScopePeriodTotal, generic.ScopePeriodAccumulated:
	default:
		return ruleError("scope", fmt.Sprintf("unknown scope %q", rule.Scope))
	}
	switch rule.Behavior {
	case generic.BehaviorFixedAmount, generic.BehaviorPayPerUnit, generic.BehaviorPerDayWorked:
	default:
		return ruleError("behavior", fmt.Sprintf("unknown behavior %q", rule.Behavior))
	}
	return nil
}

func ruleError(field, msg string) error {
	return &generic.ValidationError{Field: "rule." + field, Message: msg, Err: generic.ErrInvalidRule}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &generic.ValidationError{
			Field:   strings.ToLower(fe.Namespace()),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			Err:     generic.ErrInvalidRule,
		}
	}
	return &generic.ValidationError{Field: "bonus", Message: err.Error(), Err: generic.ErrInvalidRule}
}
