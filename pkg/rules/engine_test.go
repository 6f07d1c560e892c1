package rules_test

import (
	"testing"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/rules"
	"github.com/stretchr/testify/assert"
)

func newEngine() *rules.Engine {
	return rules.NewEngine(rules.DefaultConfig())
}

func TestEvaluateCreditRisk(t *testing.T) {
	e := newEngine()

	tests := []struct {
		name     string
		in       rules.RiskInput
		category rules.RiskCategory
		score    int
	}{
		{"Excellent", rules.RiskInput{CreditScore: 780, MonthlyIncome: 100000, EMI: 10000}, rules.RiskLow, 20},
		{"Good lower bound", rules.RiskInput{CreditScore: 700, MonthlyIncome: 100000, EMI: 10000}, rules.RiskMedium, 40},
		{"Fair", rules.RiskInput{CreditScore: 660, MonthlyIncome: 100000, EMI: 10000}, rules.RiskHigh, 60},
		{"Poor", rules.RiskInput{CreditScore: 620, MonthlyIncome: 100000, EMI: 10000}, rules.RiskCritical, 80},
		{"High DTI bumps score", rules.RiskInput{CreditScore: 760, MonthlyIncome: 10000, EMI: 6000}, rules.RiskLow, 40},
		{"Bump to 80 keeps band", rules.RiskInput{CreditScore: 660, MonthlyIncome: 10000, EMI: 6000}, rules.RiskHigh, 80},
		{"Critical caps at 100", rules.RiskInput{CreditScore: 500, MonthlyIncome: 10000, EMI: 9000}, rules.RiskCritical, 100},
		{"Zero income is worst case", rules.RiskInput{CreditScore: 700, EMI: 100}, rules.RiskMedium, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.EvaluateCreditRisk(tt.in)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.score, got.Score)
		})
	}

	t.Run("DTI reported", func(t *testing.T) {
		got := e.EvaluateCreditRisk(rules.RiskInput{CreditScore: 750, EMI: 100})
		assert.Equal(t, 1.0, got.DTIRatio)

		got = e.EvaluateCreditRisk(rules.RiskInput{CreditScore: 750, MonthlyIncome: 50000, EMI: 5000})
		assert.InDelta(t, 0.1, got.DTIRatio, 1e-9)
	})

	t.Run("Bump past 80 forces critical", func(t *testing.T) {
		// Score 80 + 20 = 100 > 80.
		got := e.EvaluateCreditRisk(rules.RiskInput{CreditScore: 640, MonthlyIncome: 1000, EMI: 900})
		assert.Equal(t, rules.RiskCritical, got.Category)
		assert.Equal(t, 100, got.Score)
	})
}

func TestDetermineApprovalPath(t *testing.T) {
	e := newEngine()
	const limit = 1000000

	tests := []struct {
		name string
		in   rules.ApprovalInput
		want rules.ApprovalPath
	}{
		{
			name: "Pre-approved wins over everything",
			in:   rules.ApprovalInput{PreApproved: true, CreditScore: 300, LoanAmount: 99000000, EligibleLimit: limit},
			want: rules.PathInstant,
		},
		{
			name: "Instant approval",
			in:   rules.ApprovalInput{CreditScore: 800, LoanAmount: 900000, EligibleLimit: limit, DocumentStatus: "complete"},
			want: rules.PathInstant,
		},
		{
			name: "Incomplete documents fall to conditional",
			in:   rules.ApprovalInput{CreditScore: 800, LoanAmount: 900000, EligibleLimit: limit, DocumentStatus: "incomplete"},
			want: rules.PathConditional,
		},
		{
			name: "Conditional within income multiple",
			in:   rules.ApprovalInput{CreditScore: 660, LoanAmount: 1.8 * limit, EligibleLimit: limit, DocumentStatus: "complete"},
			want: rules.PathConditional,
		},
		{
			name: "Low score rejected regardless of amount",
			in:   rules.ApprovalInput{CreditScore: 550, LoanAmount: 10000, EligibleLimit: limit, DocumentStatus: "complete"},
			want: rules.PathRejection,
		},
		{
			name: "Amount above rejection multiple",
			in:   rules.ApprovalInput{CreditScore: 720, LoanAmount: 3.5 * limit, EligibleLimit: limit},
			want: rules.PathRejection,
		},
		{
			name: "Between conditional and rejection multiples",
			in:   rules.ApprovalInput{CreditScore: 720, LoanAmount: 2.5 * limit, EligibleLimit: limit},
			want: rules.PathStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.DetermineApprovalPath(tt.in)
			assert.Equal(t, tt.want, got.Path)
			assert.NotEmpty(t, got.Reason)
		})
	}

	t.Run("Reason strings", func(t *testing.T) {
		got := e.DetermineApprovalPath(rules.ApprovalInput{CreditScore: 550})
		assert.Equal(t, "Credit score too low or loan amount too high relative to income", got.Reason)
		assert.False(t, got.RequiresVerification)
	})
}

func TestApprovalPathDecision(t *testing.T) {
	assert.Equal(t, domain.DecisionApproved, rules.PathInstant.Decision())
	assert.Equal(t, domain.DecisionConditional, rules.PathConditional.Decision())
	assert.Equal(t, domain.DecisionRejected, rules.PathRejection.Decision())
	assert.Equal(t, domain.DecisionUnderReview, rules.PathStandard.Decision())
	assert.Equal(t, domain.DecisionUnderReview, rules.ApprovalPath("bogus").Decision())
}

func TestDetermineEscalation(t *testing.T) {
	e := newEngine()

	t.Run("No triggers", func(t *testing.T) {
		got := e.DetermineEscalation(rules.EscalationInput{LoanAmount: 200000, RiskScore: 20})
		assert.False(t, got.Required)
		assert.Empty(t, got.Reasons)
		assert.Equal(t, "Route to Relationship Manager", got.RecommendedAction)
	})

	t.Run("Union of triggers", func(t *testing.T) {
		got := e.DetermineEscalation(rules.EscalationInput{LoanAmount: 6000000, RiskScore: 100, ComplexCase: true})
		assert.True(t, got.Required)
		assert.Equal(t, []string{"high_value", "high_risk", "complex_case"}, got.Reasons)
	})

	t.Run("Thresholds are exclusive", func(t *testing.T) {
		got := e.DetermineEscalation(rules.EscalationInput{LoanAmount: 5000000, RiskScore: 80})
		assert.False(t, got.Required)
	})
}

func TestApplyLimitOverride(t *testing.T) {
	e := newEngine()

	got := e.ApplyLimitOverride(1000000, "government_employee")
	assert.Equal(t, 1.4, got.Multiplier)
	assert.Equal(t, 1400000.0, got.NewLimit)
	assert.True(t, got.Approved)

	got = e.ApplyLimitOverride(2500000, "existing_customer")
	assert.Equal(t, 3000000.0, got.NewLimit)

	got = e.ApplyLimitOverride(2500000, "unknown_segment")
	assert.Equal(t, 1.0, got.Multiplier)
	assert.Equal(t, 2500000.0, got.NewLimit)
	assert.False(t, got.Approved)
}

func TestDocuments(t *testing.T) {
	e := newEngine()

	t.Run("Nothing provided", func(t *testing.T) {
		got := e.EvaluateMissingDocuments(nil)
		assert.Equal(t, []string{"salary_slip", "bank_statement", "tax_returns"}, got.Missing)
		assert.Equal(t, []string{
			"Please upload your latest salary slip",
			"Please provide 6 months bank statement",
		}, got.Recommendations)
		assert.False(t, got.CanProceed)
	})

	t.Run("One missing may proceed", func(t *testing.T) {
		got := e.EvaluateMissingDocuments([]string{"salary_slip", "bank_statement"})
		assert.Equal(t, []string{"tax_returns"}, got.Missing)
		assert.Empty(t, got.Recommendations)
		assert.True(t, got.CanProceed)
	})

	t.Run("Sanction requirements", func(t *testing.T) {
		assert.Empty(t, e.SanctionDocuments(true, nil))
		assert.Equal(t, []string{"salary_slip", "bank_statement", "tax_returns"}, e.SanctionDocuments(false, nil))
		assert.Equal(t, []string{"salary_slip", "tax_returns"}, e.SanctionDocuments(false, []string{"bank_statement"}))
	})
}

func TestProcessingFee(t *testing.T) {
	e := newEngine()
	assert.Equal(t, 4000.0, e.ProcessingFee(200000))
	assert.Equal(t, 0.0, e.ProcessingFee(0))
	assert.Equal(t, 600000.0, e.FallbackLimit(60000))
}
