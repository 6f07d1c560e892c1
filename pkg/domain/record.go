package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Employment is the customer's employment category.
type Employment string

const (
	EmploymentSalaried     Employment = "salaried"
	EmploymentContract     Employment = "contract"
	EmploymentSelfEmployed Employment = "self_employed"
)

// Valid reports whether e is one of the known categories.
func (e Employment) Valid() bool {
	switch e {
	case EmploymentSalaried, EmploymentContract, EmploymentSelfEmployed:
		return true
	}
	return false
}

// Decision is the underwriting outcome stored on the record.
type Decision string

const (
	DecisionApproved    Decision = "approved"
	DecisionConditional Decision = "conditional"
	DecisionUnderReview Decision = "under_review"
	DecisionRejected    Decision = "rejected"
)

// Field names a requirement that the customer supplies.
type Field string

const (
	FieldLoanAmount Field = "loan_amount"
	FieldSalary     Field = "salary"
	FieldEmployment Field = "employment_status"
	FieldCity       Field = "city"
)

// RequiredFields are the requirements needed before verification can start.
var RequiredFields = []Field{FieldLoanAmount, FieldSalary, FieldEmployment, FieldCity}

// Humanize returns a short label for prompts.
func (f Field) Humanize() string {
	switch f {
	case FieldLoanAmount:
		return "loan amount"
	case FieldSalary:
		return "monthly salary"
	case FieldEmployment:
		return "employment status"
	case FieldCity:
		return "city of residence"
	}
	return string(f)
}

// Fields is a partial set of requirement values produced by extraction.
// Zero values mean "not found".
type Fields struct {
	LoanAmount       *float64   `json:"loan_amount,omitempty" mapstructure:"loan_amount"`
	Salary           *float64   `json:"salary,omitempty" mapstructure:"salary"`
	EmploymentStatus Employment `json:"employment_status,omitempty" mapstructure:"employment_status"`
	City             string     `json:"city,omitempty" mapstructure:"city"`
}

// IsEmpty reports whether nothing was extracted.
func (f Fields) IsEmpty() bool {
	return len(f.Present()) == 0
}

// Present lists the fields that carry a value, in RequiredFields order.
func (f Fields) Present() []Field {
	var out []Field
	if f.LoanAmount != nil {
		out = append(out, FieldLoanAmount)
	}
	if f.Salary != nil {
		out = append(out, FieldSalary)
	}
	if f.EmploymentStatus != "" {
		out = append(out, FieldEmployment)
	}
	if f.City != "" {
		out = append(out, FieldCity)
	}
	return out
}

// Merge fills fields unset in f from other.
func (f Fields) Merge(other Fields) Fields {
	if f.LoanAmount == nil {
		f.LoanAmount = other.LoanAmount
	}
	if f.Salary == nil {
		f.Salary = other.Salary
	}
	if f.EmploymentStatus == "" {
		f.EmploymentStatus = other.EmploymentStatus
	}
	if f.City == "" {
		f.City = other.City
	}
	return f
}

// Escalation records whether a case must be routed to a human.
type Escalation struct {
	Required          bool     `json:"required"`
	Reasons           []string `json:"reasons,omitempty"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
}

// ApplicationRecord accumulates the structured loan application for one conversation.
//
// Completion flags are monotonic forward. A flag implies that every field its stage computes
// is populated; ResetDownstreamFrom is the only way to clear one.
type ApplicationRecord struct {
	// Requirements
	LoanAmount       *float64   `json:"loan_amount,omitempty"`
	Salary           *float64   `json:"salary,omitempty"`
	EmploymentStatus Employment `json:"employment_status,omitempty"`
	City             string     `json:"city,omitempty"`

	// Customer choices and rule inputs
	PreferredTenureMonths *int     `json:"preferred_tenure_months,omitempty"`
	PreApproved           bool     `json:"is_pre_approved,omitempty"`
	ComplexCase           bool     `json:"is_complex_case,omitempty"`
	ProvidedDocuments     []string `json:"provided_documents,omitempty"`

	// Verification
	CreditScore        *int     `json:"credit_score,omitempty"`
	KYCStatus          string   `json:"kyc_status,omitempty"`
	SalaryVerified     bool     `json:"salary_verified,omitempty"`
	EligibleLimit      *float64 `json:"eligible_limit,omitempty"`
	RiskFlag           string   `json:"risk_flag,omitempty"`
	DocumentStatus     string   `json:"document_status,omitempty"`
	VerificationSource string   `json:"verification_source,omitempty"`
	LimitOverride      string   `json:"limit_override,omitempty"`

	// Underwriting
	ApprovalPath   string      `json:"approval_path,omitempty"`
	Decision       Decision    `json:"decision,omitempty"`
	DecisionReason string      `json:"reason,omitempty"`
	RiskCategory   string      `json:"risk_category,omitempty"`
	RiskScore      *int        `json:"risk_score,omitempty"`
	DTIRatio       *float64    `json:"dti_ratio,omitempty"`
	Escalation     *Escalation `json:"escalation,omitempty"`

	// Sanction
	InterestRate         *float64 `json:"interest_rate,omitempty"`
	TenureMonths         *int     `json:"tenure_months,omitempty"`
	EMIAmount            *float64 `json:"emi_amount,omitempty"`
	ProcessingFee        *float64 `json:"processing_fee,omitempty"`
	DocumentRequirements []string `json:"document_requirements,omitempty"`

	VerificationComplete    bool `json:"verification_complete,omitempty"`
	UnderwritingComplete    bool `json:"underwriting_complete,omitempty"`
	SanctionComplete        bool `json:"sanction_complete,omitempty"`
	SanctionLetterGenerated bool `json:"sanction_letter_generated,omitempty"`
}

// Has reports whether a requirement field is populated.
func (r *ApplicationRecord) Has(f Field) bool {
	switch f {
	case FieldLoanAmount:
		return r.LoanAmount != nil
	case FieldSalary:
		return r.Salary != nil
	case FieldEmployment:
		return r.EmploymentStatus != ""
	case FieldCity:
		return r.City != ""
	}
	return false
}

// HasAnyField reports whether at least one requirement is populated.
func (r *ApplicationRecord) HasAnyField() bool {
	for _, f := range RequiredFields {
		if r.Has(f) {
			return true
		}
	}
	return false
}

// MissingRequirements lists unset requirements in RequiredFields order.
func (r *ApplicationRecord) MissingRequirements() []Field {
	var missing []Field
	for _, f := range RequiredFields {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// CollectedRequirements lists set requirements in RequiredFields order.
func (r *ApplicationRecord) CollectedRequirements() []Field {
	var got []Field
	for _, f := range RequiredFields {
		if r.Has(f) {
			got = append(got, f)
		}
	}
	return got
}

// RequirementsComplete reports whether all four requirements are present.
func (r *ApplicationRecord) RequirementsComplete() bool {
	return len(r.MissingRequirements()) == 0
}

// ApplyExtractedFields copies extracted values into the record and returns the fields that
// changed. Set fields are only replaced when overwrite is true.
func (r *ApplicationRecord) ApplyExtractedFields(f Fields, overwrite bool) []Field {
	var changed []Field

	if f.LoanAmount != nil && (r.LoanAmount == nil || (overwrite && *r.LoanAmount != *f.LoanAmount)) {
		r.LoanAmount = Float(*f.LoanAmount)
		changed = append(changed, FieldLoanAmount)
	}
	if f.Salary != nil && (r.Salary == nil || (overwrite && *r.Salary != *f.Salary)) {
		r.Salary = Float(*f.Salary)
		changed = append(changed, FieldSalary)
	}
	if f.EmploymentStatus.Valid() && (r.EmploymentStatus == "" || (overwrite && r.EmploymentStatus != f.EmploymentStatus)) {
		r.EmploymentStatus = f.EmploymentStatus
		changed = append(changed, FieldEmployment)
	}
	if f.City != "" && (r.City == "" || (overwrite && !strings.EqualFold(r.City, f.City))) {
		r.City = f.City
		changed = append(changed, FieldCity)
	}
	return changed
}

// FieldStage returns the earliest stage whose output depends on the field.
// Verification checks income, job and address; the amount only matters from underwriting on.
func FieldStage(f Field) Stage {
	if f == FieldLoanAmount {
		return StageUnderwriting
	}
	return StageVerification
}

// MarkStageComplete sets the completion flag of a computing stage. It fails with
// ErrIncompleteStage when the fields that stage computes are not populated or an earlier
// stage is not complete.
func (r *ApplicationRecord) MarkStageComplete(stage Stage) error {
	missing := r.missingOutputs(stage)
	if missing == nil {
		return fmt.Errorf("%w: %s has no completion flag", ErrIncompleteStage, stage)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s missing %s", ErrIncompleteStage, stage, strings.Join(missing, ", "))
	}

	switch stage {
	case StageVerification:
		r.VerificationComplete = true
	case StageUnderwriting:
		r.UnderwritingComplete = true
	case StageSanction:
		r.SanctionComplete = true
	}
	return nil
}

// missingOutputs returns nil for stages without a completion flag, and an empty (non-nil)
// slice when everything is in place.
func (r *ApplicationRecord) missingOutputs(stage Stage) []string {
	missing := []string{}
	switch stage {
	case StageVerification:
		if r.CreditScore == nil {
			missing = append(missing, "credit_score")
		}
		if r.EligibleLimit == nil {
			missing = append(missing, "eligible_limit")
		}
		if r.KYCStatus == "" {
			missing = append(missing, "kyc_status")
		}
		if r.DocumentStatus == "" {
			missing = append(missing, "document_status")
		}
	case StageUnderwriting:
		if !r.VerificationComplete {
			missing = append(missing, "verification_complete")
		}
		if r.Decision == "" {
			missing = append(missing, "decision")
		}
		if r.ApprovalPath == "" {
			missing = append(missing, "approval_path")
		}
		if r.RiskScore == nil {
			missing = append(missing, "risk_score")
		}
	case StageSanction:
		if !r.UnderwritingComplete {
			missing = append(missing, "underwriting_complete")
		}
		if r.InterestRate == nil {
			missing = append(missing, "interest_rate")
		}
		if r.TenureMonths == nil {
			missing = append(missing, "tenure_months")
		}
		if r.EMIAmount == nil {
			missing = append(missing, "emi_amount")
		}
		if r.ProcessingFee == nil {
			missing = append(missing, "processing_fee")
		}
	default:
		return nil
	}
	return missing
}

// ResetDownstreamFrom clears the completion flags and computed fields of stage and every
// later stage. It returns the stages whose flag was set before the reset.
func (r *ApplicationRecord) ResetDownstreamFrom(stage Stage) []Stage {
	var cleared []Stage

	if !StageVerification.Before(stage) {
		if r.VerificationComplete {
			cleared = append(cleared, StageVerification)
		}
		r.CreditScore = nil
		r.KYCStatus = ""
		r.SalaryVerified = false
		r.EligibleLimit = nil
		r.RiskFlag = ""
		r.DocumentStatus = ""
		r.VerificationSource = ""
		r.LimitOverride = ""
		r.VerificationComplete = false
	}
	if !StageUnderwriting.Before(stage) {
		if r.UnderwritingComplete {
			cleared = append(cleared, StageUnderwriting)
		}
		r.ApprovalPath = ""
		r.Decision = ""
		r.DecisionReason = ""
		r.RiskCategory = ""
		r.RiskScore = nil
		r.DTIRatio = nil
		r.Escalation = nil
		r.UnderwritingComplete = false
	}
	if !StageSanction.Before(stage) {
		if r.SanctionComplete {
			cleared = append(cleared, StageSanction)
		}
		r.InterestRate = nil
		r.TenureMonths = nil
		r.EMIAmount = nil
		r.ProcessingFee = nil
		r.DocumentRequirements = nil
		r.SanctionComplete = false
		r.SanctionLetterGenerated = false
	}
	return cleared
}

// Validate checks the completion-flag invariant.
func (r *ApplicationRecord) Validate() error {
	if r.VerificationComplete && !r.RequirementsComplete() {
		return fmt.Errorf("%w: verification complete without requirements", ErrIncompleteStage)
	}
	for _, st := range []Stage{StageVerification, StageUnderwriting, StageSanction} {
		if !r.StageComplete(st) {
			continue
		}
		if missing := r.missingOutputs(st); len(missing) > 0 {
			return fmt.Errorf("%w: %s flagged complete but missing %s", ErrIncompleteStage, st, strings.Join(missing, ", "))
		}
	}
	if r.SanctionLetterGenerated && !r.SanctionComplete {
		return fmt.Errorf("%w: sanction letter without sanction", ErrIncompleteStage)
	}
	return nil
}

// StageComplete reports the completion flag for a stage.
func (r *ApplicationRecord) StageComplete(stage Stage) bool {
	switch stage {
	case StageVerification:
		return r.VerificationComplete
	case StageUnderwriting:
		return r.UnderwritingComplete
	case StageSanction:
		return r.SanctionComplete
	}
	return false
}

// Clone returns a deep copy.
func (r *ApplicationRecord) Clone() ApplicationRecord {
	out := *r
	out.LoanAmount = clonePtr(r.LoanAmount)
	out.Salary = clonePtr(r.Salary)
	out.PreferredTenureMonths = clonePtr(r.PreferredTenureMonths)
	out.ProvidedDocuments = slices.Clone(r.ProvidedDocuments)
	out.CreditScore = clonePtr(r.CreditScore)
	out.EligibleLimit = clonePtr(r.EligibleLimit)
	out.RiskScore = clonePtr(r.RiskScore)
	out.DTIRatio = clonePtr(r.DTIRatio)
	if r.Escalation != nil {
		esc := *r.Escalation
		esc.Reasons = slices.Clone(r.Escalation.Reasons)
		out.Escalation = &esc
	}
	out.InterestRate = clonePtr(r.InterestRate)
	out.TenureMonths = clonePtr(r.TenureMonths)
	out.EMIAmount = clonePtr(r.EMIAmount)
	out.ProcessingFee = clonePtr(r.ProcessingFee)
	out.DocumentRequirements = slices.Clone(r.DocumentRequirements)
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Deref returns the pointed value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
