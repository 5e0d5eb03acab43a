/*
Package bonus evaluates admin-configured bonus rules against attendance facts.

PURPOSE:
  A rule is data (RuleConfig) plus one pure evaluator. Adding a concept or a
  behavior means extending one closed set and one switch here; callers never
  change. The same Evaluate call serves dashboard previews and settlement.

EVALUATION:
  rule == nil            pays the amount exactly once per call
  scope = daily          evaluated per DayFact, results summed. Concepts
                         attendance, late_minutes and extra_minutes skip days
                         that were not worked (skipped, not treated as zero)
  scope = period_*       evaluated once on PeriodFacts

  match = actual <operator> threshold
  fixed_amount           amount once per match
  pay_per_unit           operator '>': max(0, actual - threshold) x amount
                         any other operator: actual x amount (no threshold
                         subtraction; kept as documented behavior)
  per_day_worked         amount x worked days in the evaluated facts

SEE ALSO:
  - factory.go: JSON -> validated RuleConfig
  - attendance/types.go: DayFact, PeriodFacts
*/
package bonus

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/generic"
)

// Result is the payable amount for one bonus and how many evaluations matched.
type Result struct {
	Amount  decimal.Decimal
	Matches int
}

// Evaluate computes the payable amount of a bonus worth amount under rule.
// It returns an ErrInvalidRule error for a rule with an unknown concept,
// operator, scope or behavior; the result is then zero.
func Evaluate(rule *generic.RuleConfig, amount decimal.Decimal, facts attendance.Facts) (Result, error) {
	if rule == nil {
		return Result{Amount: amount, Matches: 1}, nil
	}
	if err := ValidateRule(*rule); err != nil {
		return Result{Amount: decimal.Zero}, err
	}

	res := Result{Amount: decimal.Zero}
	if rule.Scope.IsPeriod() {
		actual := periodActual(rule.Concept, facts.Totals)
		if pay, ok := payout(*rule, amount, actual, facts.Totals.WorkedDays); ok {
			res.Amount = pay
			res.Matches = 1
		}
		return res, nil
	}

	for _, day := range facts.Days {
		if requiresWorkedDay(rule.Concept) && !day.IsWorked {
			continue
		}
		worked := 0
		if day.IsWorked {
			worked = 1
		}
		if pay, ok := payout(*rule, amount, dailyActual(rule.Concept, day), worked); ok {
			res.Amount = res.Amount.Add(pay)
			res.Matches++
		}
	}
	return res, nil
}

func requiresWorkedDay(c generic.Concept) bool {
	switch c {
	case generic.ConceptAttendance, generic.ConceptLateMinutes, generic.ConceptExtraMinutes:
		return true
	}
	return false
}

func dailyActual(c generic.Concept, d attendance.DayFact) decimal.Decimal {
	switch c {
	case generic.ConceptLateMinutes:
		return decimal.NewFromInt(int64(d.LateMinutes))
	case generic.ConceptExtraMinutes:
		return d.ExtraMinutes
	case generic.ConceptUnjustifiedAbsences:
		return boolUnit(d.IsAbsent)
	case generic.ConceptAttendance:
		return boolUnit(d.IsWorked)
	}
	return decimal.Zero
}

func periodActual(c generic.Concept, p attendance.PeriodFacts) decimal.Decimal {
	switch c {
	case generic.ConceptLateMinutes:
		return decimal.NewFromInt(int64(p.LateMinutes))
	case generic.ConceptExtraMinutes:
		return p.ExtraMinutes
	case generic.ConceptUnjustifiedAbsences:
		return decimal.NewFromInt(int64(p.UnjustifiedAbsences))
	case generic.ConceptAttendance:
		return decimal.NewFromInt(int64(p.WorkedDays))
	}
	return decimal.Zero
}

func boolUnit(b bool) decimal.Decimal {
	if b {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// payout returns the amount owed for one evaluation and whether it matched.
func payout(rule generic.RuleConfig, amount, actual decimal.Decimal, workedDays int) (decimal.Decimal, bool) {
	if !Compare(actual, rule.Operator, rule.Threshold) {
		return decimal.Zero, false
	}
	switch rule.Behavior {
	case generic.BehaviorPayPerUnit:
		units := actual
		if rule.Operator == generic.OpGreater {
			units = decimal.Max(decimal.Zero, actual.Sub(rule.Threshold))
		}
		return decimal.Max(decimal.Zero, units.Mul(amount)), true
	case generic.BehaviorPerDayWorked:
		return amount.Mul(decimal.NewFromInt(int64(workedDays))), true
	default:
		return amount, true
	}
}

// Compare applies op to actual and threshold. Unknown operators never match.
func Compare(actual decimal.Decimal, op generic.Operator, threshold decimal.Decimal) bool {
	c := actual.Cmp(threshold)
	switch op {
	case generic.OpEqual:
		return c == 0
	case generic.OpNotEqual:
		return c != 0
	case generic.OpGreater:
		return c > 0
	case generic.OpLess:
		return c < 0
	case generic.OpGreaterOrEqual:
		return c >= 0
	case generic.OpLessOrEqual:
		return c <= 0
	}
	return false
}

// String renders a rule the way admins write it, e.g. "late_minutes <= 15 (period_total, fixed_amount)".
func String(rule *generic.RuleConfig) string {
	if rule == nil {
		return "unconditional"
	}
	return fmt.Sprintf("%s %s %s (%s, %s)", rule.Concept, rule.Operator, rule.Threshold, rule.Scope, rule.Behavior)
}
