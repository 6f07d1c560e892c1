package rules

import (
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/shopspring/decimal"
)

// RiskCategory is the credit risk band.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskMedium   RiskCategory = "medium"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// ApprovalPath names the branch DetermineApprovalPath settled on.
type ApprovalPath string

const (
	PathInstant     ApprovalPath = "instant_approval"
	PathConditional ApprovalPath = "conditional_approval"
	PathRejection   ApprovalPath = "rejection"
	PathStandard    ApprovalPath = "standard_verification"
)

// Decision maps the path to the decision stored on the record.
func (p ApprovalPath) Decision() domain.Decision {
	switch p {
	case PathInstant:
		return domain.DecisionApproved
	case PathConditional:
		return domain.DecisionConditional
	case PathRejection:
		return domain.DecisionRejected
	}
	return domain.DecisionUnderReview
}

// Engine evaluates business rules. It holds no state besides its Config and is safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a rule engine over cfg.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the thresholds the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// RiskInput carries the facts credit risk is computed from.
type RiskInput struct {
	CreditScore   int
	MonthlyIncome float64
	EMI           float64
}

// RiskAssessment is the result of EvaluateCreditRisk.
type RiskAssessment struct {
	Category    RiskCategory `json:"risk_category"`
	Score       int          `json:"risk_score"`
	DTIRatio    float64      `json:"dti_ratio"`
	CreditScore int          `json:"credit_score"`
}

// EvaluateCreditRisk bands the credit score and penalizes a high debt-to-income ratio.
// Zero or unknown income is treated as the worst case (DTI 1.0).
func (e *Engine) EvaluateCreditRisk(in RiskInput) RiskAssessment {
	t := e.cfg.CreditScore

	var out RiskAssessment
	switch {
	case in.CreditScore >= t.Excellent:
		out.Category, out.Score = RiskLow, 20
	case in.CreditScore >= t.Good:
		out.Category, out.Score = RiskMedium, 40
	case in.CreditScore >= t.Fair:
		out.Category, out.Score = RiskHigh, 60
	default:
		out.Category, out.Score = RiskCritical, 80
	}
	out.CreditScore = in.CreditScore

	out.DTIRatio = 1.0
	if in.MonthlyIncome > 0 {
		out.DTIRatio = in.EMI / in.MonthlyIncome
	}

	if out.DTIRatio > e.cfg.Affordability.MaxRatio {
		out.Score = min(out.Score+20, 100)
		if out.Score > 80 {
			out.Category = RiskCritical
		}
	}
	return out
}

// ApprovalInput carries the facts the approval path is chosen from.
type ApprovalInput struct {
	LoanAmount     float64
	EligibleLimit  float64
	CreditScore    int
	DocumentStatus string
	PreApproved    bool
}

// ApprovalResult is the outcome of DetermineApprovalPath.
type ApprovalResult struct {
	Path                 ApprovalPath `json:"path"`
	Reason               string       `json:"reason"`
	RequiresVerification bool         `json:"requires_verification"`
}

// DetermineApprovalPath evaluates the approval branches in fixed priority; the first that
// matches wins.
func (e *Engine) DetermineApprovalPath(in ApprovalInput) ApprovalResult {
	a := e.cfg.Approval

	if in.PreApproved {
		return ApprovalResult{
			Path:   PathInstant,
			Reason: "Customer is pre-approved",
		}
	}

	if in.LoanAmount <= a.InstantApprovalLimit &&
		in.CreditScore >= e.cfg.CreditScore.Good &&
		in.DocumentStatus == DocumentsComplete {
		return ApprovalResult{
			Path:   PathInstant,
			Reason: "Loan amount within instant approval limit with good credit score and complete documents",
		}
	}

	if in.LoanAmount <= a.ConditionalApprovalMultiple*in.EligibleLimit &&
		in.CreditScore >= e.cfg.CreditScore.Poor {
		return ApprovalResult{
			Path:                 PathConditional,
			Reason:               "Loan within income multiple but requires additional documents",
			RequiresVerification: true,
		}
	}

	if in.CreditScore < a.RejectionCreditScore ||
		in.LoanAmount > a.RejectionLimitMultiple*in.EligibleLimit {
		return ApprovalResult{
			Path:   PathRejection,
			Reason: "Credit score too low or loan amount too high relative to income",
		}
	}

	return ApprovalResult{
		Path:                 PathStandard,
		Reason:               "Standard verification required",
		RequiresVerification: true,
	}
}

// EscalationInput carries the facts escalation triggers look at.
type EscalationInput struct {
	LoanAmount  float64
	RiskScore   int
	ComplexCase bool
}

// Escalation reasons.
const (
	EscalationHighValue   = "high_value"
	EscalationHighRisk    = "high_risk"
	EscalationComplexCase = "complex_case"
)

// DetermineEscalation returns the union of the triggered escalation reasons.
func (e *Engine) DetermineEscalation(in EscalationInput) domain.Escalation {
	r := e.cfg.Escalation

	var reasons []string
	if in.LoanAmount > r.HighValueThreshold {
		reasons = append(reasons, EscalationHighValue)
	}
	if in.RiskScore > r.HighRiskScore {
		reasons = append(reasons, EscalationHighRisk)
	}
	if in.ComplexCase {
		reasons = append(reasons, EscalationComplexCase)
	}

	return domain.Escalation{
		Required:          len(reasons) > 0,
		Reasons:           reasons,
		RecommendedAction: r.RecommendedAction,
	}
}

// LimitOverride is the outcome of ApplyLimitOverride.
type LimitOverride struct {
	OriginalLimit float64 `json:"original_limit"`
	Reason        string  `json:"override_reason"`
	Multiplier    float64 `json:"multiplier"`
	NewLimit      float64 `json:"new_limit"`
	Approved      bool    `json:"override_approved"`
}

// ApplyLimitOverride scales an eligible limit by the multiplier of a customer segment.
// Unknown segments keep the limit unchanged. The new limit is truncated to whole units.
func (e *Engine) ApplyLimitOverride(limit float64, reason string) LimitOverride {
	multiplier, ok := e.cfg.LimitOverrides[reason]
	if !ok {
		multiplier = 1.0
	}
	return LimitOverride{
		OriginalLimit: limit,
		Reason:        reason,
		Multiplier:    multiplier,
		NewLimit:      float64(decimal.NewFromFloat(limit).Mul(decimal.NewFromFloat(multiplier)).IntPart()),
		Approved:      multiplier > 1.0,
	}
}

// ProcessingFee returns the fee charged on a principal, rounded to money precision.
func (e *Engine) ProcessingFee(principal float64) float64 {
	if principal <= 0 {
		return 0
	}
	return RoundMoney(principal * e.cfg.Sanction.ProcessingFeePercent / 100)
}

// FallbackLimit returns the conservative eligible limit used when the bureau is unavailable.
func (e *Engine) FallbackLimit(monthlySalary float64) float64 {
	if monthlySalary <= 0 {
		return 0
	}
	return RoundMoney(monthlySalary * e.cfg.Fallback.IncomeLimitMultiple)
}
