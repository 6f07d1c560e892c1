package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, rules.DefaultConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("Empty path returns defaults", func(t *testing.T) {
		cfg, err := rules.LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, rules.DefaultConfig(), cfg)
	})

	t.Run("YAML overrides keep other defaults", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		content := `
version: "2024-q3"
approval_rules:
  instant_approval_limit: 500000
sanction:
  interest_rate: 11.25
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := rules.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "2024-q3", cfg.Version)
		assert.Equal(t, 500000.0, cfg.Approval.InstantApprovalLimit)
		assert.Equal(t, 2.0, cfg.Approval.ConditionalApprovalMultiple)
		assert.Equal(t, 11.25, cfg.Sanction.InterestRate)
		assert.Equal(t, 60, cfg.Sanction.TenureMonths)
		assert.Equal(t, 750, cfg.CreditScore.Excellent)
	})

	t.Run("JSON by extension", func(t *testing.T) {
		path := filepath.Join(dir, "rules.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"escalation_rules":{"high_value_threshold":7500000}}`), 0644))

		cfg, err := rules.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 7500000.0, cfg.Escalation.HighValueThreshold)
		assert.Equal(t, 80, cfg.Escalation.HighRiskScore)
	})

	t.Run("Inconsistent bands rejected", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("credit_score_thresholds:\n  good: 800\n"), 0644))

		_, err := rules.LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid rule config")
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := rules.LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Malformed", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
		_, err := rules.LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestConfigMarshal_RoundTripsThroughLoad(t *testing.T) {
	data, err := rules.DefaultConfig().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := rules.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultConfig(), cfg)
}
