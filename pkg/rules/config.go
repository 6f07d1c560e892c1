package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the read-only thresholds the rule engine is parameterized by.
// It is versionable: Version is echoed in logs so decisions can be traced to a rule set.
type Config struct {
	Version string `yaml:"version" json:"version"`

	CreditScore   CreditThresholds   `yaml:"credit_score_thresholds" json:"credit_score_thresholds" validate:"required"`
	Affordability AffordabilityRules `yaml:"loan_to_income_ratios" json:"loan_to_income_ratios" validate:"required"`
	Documents     DocumentRules      `yaml:"document_verification_rules" json:"document_verification_rules" validate:"required"`
	Approval      ApprovalRules      `yaml:"approval_rules" json:"approval_rules" validate:"required"`
	Escalation    EscalationRules    `yaml:"escalation_rules" json:"escalation_rules" validate:"required"`
	Sanction      SanctionPolicy     `yaml:"sanction" json:"sanction" validate:"required"`

	// LimitOverrides maps a customer segment to an eligible-limit multiplier.
	LimitOverrides map[string]float64 `yaml:"limit_overrides" json:"limit_overrides" validate:"dive,keys,required,endkeys,gt=0"`

	// Fallback is applied when the credit bureau cannot be reached.
	Fallback FallbackVerification `yaml:"fallback_verification" json:"fallback_verification" validate:"required"`
}

// CreditThresholds are the score band boundaries.
type CreditThresholds struct {
	Excellent int `yaml:"excellent" json:"excellent" validate:"gtfield=Good"`
	Good      int `yaml:"good" json:"good" validate:"gtfield=Fair"`
	Fair      int `yaml:"fair" json:"fair" validate:"gtfield=Poor"`
	Poor      int `yaml:"poor" json:"poor" validate:"gt=0"`
}

// AffordabilityRules bound the EMI as a share of monthly income.
type AffordabilityRules struct {
	MaxRatio          float64 `yaml:"max_ratio" json:"max_ratio" validate:"gt=0,lte=1"`
	ConservativeRatio float64 `yaml:"conservative_ratio" json:"conservative_ratio" validate:"gt=0,ltefield=MaxRatio"`
}

// DocumentRules list the income proofs a complete application carries.
type DocumentRules struct {
	SalarySlipRequiredThreshold float64  `yaml:"salary_slip_required_threshold" json:"salary_slip_required_threshold" validate:"gte=0"`
	BankStatementMonths         int      `yaml:"bank_statement_months" json:"bank_statement_months" validate:"gt=0"`
	IncomeProofDocuments        []string `yaml:"income_proof_documents" json:"income_proof_documents" validate:"min=1,dive,required"`
}

// ApprovalRules drive DetermineApprovalPath.
type ApprovalRules struct {
	InstantApprovalLimit        float64 `yaml:"instant_approval_limit" json:"instant_approval_limit" validate:"gt=0"`
	ConditionalApprovalMultiple float64 `yaml:"conditional_approval_multiple" json:"conditional_approval_multiple" validate:"gt=0"`
	RejectionLimitMultiple      float64 `yaml:"rejection_limit_multiple" json:"rejection_limit_multiple" validate:"gtefield=ConditionalApprovalMultiple"`
	RejectionCreditScore        int     `yaml:"rejection_credit_score" json:"rejection_credit_score" validate:"gt=0"`
}

// EscalationRules drive DetermineEscalation.
type EscalationRules struct {
	HighValueThreshold float64 `yaml:"high_value_threshold" json:"high_value_threshold" validate:"gt=0"`
	HighRiskScore      int     `yaml:"high_risk_score" json:"high_risk_score" validate:"gt=0,lte=100"`
	RecommendedAction  string  `yaml:"recommended_action" json:"recommended_action" validate:"required"`
}

// SanctionPolicy holds the offer defaults.
type SanctionPolicy struct {
	InterestRate         float64 `yaml:"interest_rate" json:"interest_rate" validate:"gte=0"`
	TenureMonths         int     `yaml:"tenure_months" json:"tenure_months" validate:"gt=0"`
	ProcessingFeePercent float64 `yaml:"processing_fee_percent" json:"processing_fee_percent" validate:"gte=0,lte=100"`
	TenureLadder         []int   `yaml:"tenure_ladder" json:"tenure_ladder" validate:"min=1,dive,gt=0"`
}

// FallbackVerification is the conservative verification result used when the bureau fails.
type FallbackVerification struct {
	CreditScore         int     `yaml:"credit_score" json:"credit_score" validate:"gt=0"`
	KYCStatus           string  `yaml:"kyc_status" json:"kyc_status" validate:"required"`
	DocumentStatus      string  `yaml:"document_status" json:"document_status" validate:"required"`
	RiskFlag            string  `yaml:"risk_flag" json:"risk_flag" validate:"required"`
	IncomeLimitMultiple float64 `yaml:"income_limit_multiple" json:"income_limit_multiple" validate:"gt=0"`
}

// DefaultConfig returns the production rule set.
func DefaultConfig() Config {
	return Config{
		Version: "default",
		CreditScore: CreditThresholds{
			Excellent: 750,
			Good:      700,
			Fair:      650,
			Poor:      600,
		},
		Affordability: AffordabilityRules{
			MaxRatio:          0.5,
			ConservativeRatio: 0.3,
		},
		Documents: DocumentRules{
			SalarySlipRequiredThreshold: 2000000,
			BankStatementMonths:         6,
			IncomeProofDocuments:        []string{DocSalarySlip, DocBankStatement, DocTaxReturns},
		},
		Approval: ApprovalRules{
			InstantApprovalLimit:        1000000,
			ConditionalApprovalMultiple: 2,
			RejectionLimitMultiple:      3,
			RejectionCreditScore:        600,
		},
		Escalation: EscalationRules{
			HighValueThreshold: 5000000,
			HighRiskScore:      80,
			RecommendedAction:  "Route to Relationship Manager",
		},
		Sanction: SanctionPolicy{
			InterestRate:         10.5,
			TenureMonths:         60,
			ProcessingFeePercent: 2,
			TenureLadder:         []int{12, 24, 36, 48, 60},
		},
		LimitOverrides: map[string]float64{
			"existing_customer":     1.2,
			"high_net_worth":        1.5,
			"salary_account_holder": 1.3,
			"government_employee":   1.4,
			"corporate_salaried":    1.2,
		},
		Fallback: FallbackVerification{
			CreditScore:         600,
			KYCStatus:           "pending",
			DocumentStatus:      "incomplete",
			RiskFlag:            "unverified",
			IncomeLimitMultiple: 10,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the thresholds for internal consistency.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid rule config: %w", err)
	}
	return nil
}

// LoadConfig reads a rule file (YAML or JSON, chosen by extension) over DefaultConfig.
// Keys absent from the file keep their default. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read rule config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
