package bonus_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/bonus"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rule(c generic.Concept, op generic.Operator, threshold string, scope generic.Scope, b generic.Behavior) *generic.RuleConfig {
	return &generic.RuleConfig{Concept: c, Operator: op, Threshold: dec(threshold), Scope: scope, Behavior: b}
}

func workedDay(late int, extra string) attendance.DayFact {
	return attendance.DayFact{Incident: generic.IncidentWorked, HasShift: true, IsWorked: true, LateMinutes: late, ExtraMinutes: dec(extra)}
}

// facts builds a period from day facts and sums the totals the way the
// aggregator does.
func facts(days ...attendance.DayFact) attendance.Facts {
	f := attendance.Facts{Days: days, Totals: attendance.PeriodFacts{ExtraMinutes: decimal.Zero}}
	for _, d := range days {
		f.Totals.LateMinutes += d.LateMinutes
		f.Totals.ExtraMinutes = f.Totals.ExtraMinutes.Add(d.ExtraMinutes)
		if d.IsAbsent {
			f.Totals.UnjustifiedAbsences++
		}
		if d.IsWorked {
			f.Totals.WorkedDays++
		}
	}
	return f
}

// =============================================================================
// EVALUATION
// =============================================================================

func TestEvaluate_Unconditional(t *testing.T) {
	res, err := bonus.Evaluate(nil, dec("300"), facts(workedDay(0, "0")))
	require.NoError(t, err)

	assert.True(t, res.Amount.Equal(dec("300")))
	assert.Equal(t, 1, res.Matches)
}

func TestEvaluate_PayPerUnitAboveThreshold(t *testing.T) {
	// GIVEN: extra_minutes > 0, daily, pay_per_unit, amount 5
	// WHEN: one worked day has 20 extra minutes
	// THEN: 20 x 5 = 100

	r := rule(generic.ConceptExtraMinutes, generic.OpGreater, "0", generic.ScopeDaily, generic.BehaviorPayPerUnit)

	res, err := bonus.Evaluate(r, dec("5"), facts(workedDay(0, "20"), workedDay(0, "0")))
	require.NoError(t, err)

	assert.True(t, res.Amount.Equal(dec("100")), res.Amount.String())
	assert.Equal(t, 1, res.Matches)
}

func TestEvaluate_PayPerUnitSubtractsThresholdOnlyForGreater(t *testing.T) {
	f := facts(workedDay(0, "45"))

	gt, err := bonus.Evaluate(rule(generic.ConceptExtraMinutes, generic.OpGreater, "30", generic.ScopeDaily, generic.BehaviorPayPerUnit), dec("2"), f)
	require.NoError(t, err)
	assert.True(t, gt.Amount.Equal(dec("30")), "(45-30) x 2")

	gte, err := bonus.Evaluate(rule(generic.ConceptExtraMinutes, generic.OpGreaterOrEqual, "30", generic.ScopeDaily, generic.BehaviorPayPerUnit), dec("2"), f)
	require.NoError(t, err)
	assert.True(t, gte.Amount.Equal(dec("90")), "45 x 2")
}

func TestEvaluate_PunctualityPeriodFixedOnce(t *testing.T) {
	// GIVEN: late_minutes <= 15, period scope, fixed 250
	// WHEN: the week accumulates 12 late minutes over two days
	// THEN: the bonus pays 250 exactly once

	r := rule(generic.ConceptLateMinutes, generic.OpLessOrEqual, "15", generic.ScopePeriodAccumulated, generic.BehaviorFixedAmount)

	res, err := bonus.Evaluate(r, dec("250"), facts(workedDay(5, "0"), workedDay(7, "0"), workedDay(0, "0")))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("250")))
	assert.Equal(t, 1, res.Matches)

	res, err = bonus.Evaluate(r, dec("250"), facts(workedDay(10, "0"), workedDay(10, "0")))
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
	assert.Equal(t, 0, res.Matches)
}

func TestEvaluate_DailyLatenessSkipsDaysNotWorked(t *testing.T) {
	// A vacation day has zero lateness but must not count as punctual.
	r := rule(generic.ConceptLateMinutes, generic.OpEqual, "0", generic.ScopeDaily, generic.BehaviorFixedAmount)
	vacationDay := attendance.DayFact{Incident: generic.IncidentVacation, HasShift: true}

	res, err := bonus.Evaluate(r, dec("10"), facts(workedDay(0, "0"), workedDay(3, "0"), vacationDay))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Matches)
	assert.True(t, res.Amount.Equal(dec("10")))
}

func TestEvaluate_PerfectAttendancePerDayWorked(t *testing.T) {
	r := rule(generic.ConceptUnjustifiedAbsences, generic.OpEqual, "0", generic.ScopePeriodTotal, generic.BehaviorPerDayWorked)

	res, err := bonus.Evaluate(r, dec("20"), facts(workedDay(0, "0"), workedDay(0, "0"), workedDay(0, "0")))
	require.NoError(t, err)
	assert.True(t, res.Amount.Equal(dec("60")))

	absent := attendance.DayFact{HasShift: true, IsAbsent: true}
	res, err = bonus.Evaluate(r, dec("20"), facts(workedDay(0, "0"), absent))
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
}

func TestEvaluate_NotEqualOperator(t *testing.T) {
	r := rule(generic.ConceptUnjustifiedAbsences, generic.OpNotEqual, "0", generic.ScopePeriodTotal, generic.BehaviorFixedAmount)
	absent := attendance.DayFact{HasShift: true, IsAbsent: true}

	res, err := bonus.Evaluate(r, dec("1"), facts(absent))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matches)
}

func TestEvaluate_InvalidRule(t *testing.T) {
	r := rule(generic.ConceptLateMinutes, "~", "0", generic.ScopeDaily, generic.BehaviorFixedAmount)

	res, err := bonus.Evaluate(r, dec("10"), facts(workedDay(0, "0")))

	assert.ErrorIs(t, err, generic.ErrInvalidRule)
	assert.True(t, res.Amount.IsZero())
}

func TestEvaluate_EmptyPeriod(t *testing.T) {
	r := rule(generic.ConceptAttendance, generic.OpEqual, "1", generic.ScopeDaily, generic.BehaviorFixedAmount)

	res, err := bonus.Evaluate(r, dec("10"), facts())
	require.NoError(t, err)
	assert.True(t, res.Amount.IsZero())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		op   generic.Operator
		a, b string
		want bool
	}{
		{generic.OpEqual, "1", "1.0", true},
		{generic.OpNotEqual, "1", "2", true},
		{generic.OpGreater, "2", "1", true},
		{generic.OpLess, "2", "1", false},
		{generic.OpGreaterOrEqual, "1", "1", true},
		{generic.OpLessOrEqual, "0.5", "1", true},
		{"<>", "1", "2", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, bonus.Compare(dec(tt.a), tt.op, dec(tt.b)))
		})
	}
}

func TestString(t *testing.T) {
	r := rule(generic.ConceptLateMinutes, generic.OpLessOrEqual, "15", generic.ScopePeriodTotal, generic.BehaviorFixedAmount)

	assert.Equal(t, "late_minutes <= 15 (period_total, fixed_amount)", bonus.String(r))
	assert.Equal(t, "unconditional", bonus.String(nil))
}
