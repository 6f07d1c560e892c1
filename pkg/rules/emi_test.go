package rules_test

import (
	"math/rand"
	"testing"

	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMI(t *testing.T) {
	assert.InDelta(t, 4298.78, rules.EMI(200000, 10.5, 60), 0.005)
	assert.InDelta(t, 8814.86, rules.EMI(100000, 10.5, 12), 0.005)

	t.Run("Degenerate inputs", func(t *testing.T) {
		assert.Equal(t, 1000.0, rules.EMI(12000, 0, 12), "zero rate is straight division")
		assert.Equal(t, 0.0, rules.EMI(0, 10.5, 12))
		assert.Equal(t, 0.0, rules.EMI(-5, 10.5, 12))
		assert.Equal(t, 0.0, rules.EMI(100000, 10.5, 0))
		assert.Equal(t, 0.0, rules.ReversePrincipal(5000, 10.5, 0))
		assert.Equal(t, 12000.0, rules.ReversePrincipal(1000, 0, 12))
	})
}

func TestReversePrincipal_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		p := 1000 + rng.Float64()*9999000
		rate := 0.1 + rng.Float64()*30
		months := 1 + rng.Intn(360)

		got := rules.ReversePrincipal(rules.EMI(p, rate, months), rate, months)
		require.InDelta(t, p, got, 1, "p=%f rate=%f months=%d", p, rate, months)
	}
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 4298.78, rules.RoundMoney(4298.78007562348))
	assert.Equal(t, 0.13, rules.RoundMoney(0.125))
	assert.Equal(t, -0.13, rules.RoundMoney(-0.125))
}

func TestAmortizationSchedule(t *testing.T) {
	t.Run("Full schedule closes at zero", func(t *testing.T) {
		rows := rules.AmortizationSchedule(100000, 10.5, 12, 0)
		require.Len(t, rows, 12)

		first := rows[0]
		assert.Equal(t, 1, first.Month)
		assert.Equal(t, 875.0, first.Interest)
		assert.InDelta(t, 8814.86, first.Payment, 0.001)

		var principal float64
		for _, r := range rows {
			principal += r.Principal
		}
		assert.InDelta(t, 100000, principal, 0.001)
		assert.Equal(t, 0.0, rows[11].Balance)
	})

	t.Run("Limited rows", func(t *testing.T) {
		rows := rules.AmortizationSchedule(200000, 10.5, 60, 12)
		assert.Len(t, rows, 12)
		assert.Greater(t, rows[11].Balance, 0.0)
		assert.Less(t, rows[11].Interest, rows[0].Interest)
	})

	t.Run("Degenerate", func(t *testing.T) {
		assert.Nil(t, rules.AmortizationSchedule(0, 10.5, 12, 0))
		rows := rules.AmortizationSchedule(1200, 0, 12, 0)
		require.Len(t, rows, 12)
		assert.Equal(t, 0.0, rows[0].Interest)
		assert.Equal(t, 100.0, rows[0].Principal)
	})
}
