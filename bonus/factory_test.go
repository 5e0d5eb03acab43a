package bonus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/bonus"
	"github.com/warp/payroll-engine/generic"
)

func TestParseBonus_ConditionalRule(t *testing.T) {
	data := []byte(`{
		"id": "punctuality",
		"name": "Punctuality bonus",
		"amount": "250.00",
		"rule": {
			"concept": "late_minutes",
			"operator": " <= ",
			"threshold": 15,
			"scope": "period_accumulated",
			"behavior": "fixed_amount"
		}
	}`)

	b, err := bonus.ParseBonus(data)
	require.NoError(t, err)

	assert.Equal(t, generic.BonusID("punctuality"), b.ID)
	assert.True(t, b.Active, "active defaults to true")
	assert.True(t, b.Amount.Equal(dec("250")))
	require.NotNil(t, b.Rule)
	assert.Equal(t, generic.OpLessOrEqual, b.Rule.Operator)
	assert.Equal(t, generic.ScopePeriodAccumulated, b.Rule.Scope)
	assert.True(t, b.Rule.Threshold.Equal(dec("15")))
}

func TestParseBonus_Unconditional(t *testing.T) {
	b, err := bonus.ParseBonus([]byte(`{"id":"food","name":"Food vouchers","amount":"100","active":false}`))
	require.NoError(t, err)

	assert.Nil(t, b.Rule)
	assert.False(t, b.Active)
}

func TestParseBonus_Rejections(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"invalid json", `{`},
		{"missing id", `{"name":"x","amount":"1"}`},
		{"negative amount", `{"id":"x","name":"x","amount":"-1"}`},
		{"unknown concept", `{"id":"x","name":"x","amount":"1","rule":{"concept":"overtime","operator":">","threshold":0,"scope":"daily","behavior":"fixed_amount"}}`},
		{"unknown operator", `{"id":"x","name":"x","amount":"1","rule":{"concept":"extra_minutes","operator":"=>","threshold":0,"scope":"daily","behavior":"fixed_amount"}}`},
		{"unknown scope", `{"id":"x","name":"x","amount":"1","rule":{"concept":"extra_minutes","operator":">","threshold":0,"scope":"weekly","behavior":"fixed_amount"}}`},
		{"unknown behavior", `{"id":"x","name":"x","amount":"1","rule":{"concept":"extra_minutes","operator":">","threshold":0,"scope":"daily","behavior":"double"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bonus.ParseBonus([]byte(tt.json))
			require.Error(t, err)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestFromBonus_RoundTrip(t *testing.T) {
	original, err := bonus.ParseBonus([]byte(`{"id":"ot","name":"Overtime","amount":"5","rule":{"concept":"extra_minutes","operator":">","threshold":0,"scope":"daily","behavior":"pay_per_unit"}}`))
	require.NoError(t, err)

	back, err := bonus.FromBonus(original).ToBonus()
	require.NoError(t, err)

	assert.Equal(t, original.ID, back.ID)
	assert.Equal(t, *original.Rule, *back.Rule)
}
