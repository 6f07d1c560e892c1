package ports

import "context"

// IdentifierType says what the identifier passed to a CreditVerifier is.
type IdentifierType string

const (
	IdentifierMobile   IdentifierType = "mobile"
	IdentifierEmail    IdentifierType = "email"
	IdentifierCustomer IdentifierType = "customer_id"
)

// VerificationResult is the credit and KYC report of one customer.
type VerificationResult struct {
	CreditScore    int     `json:"credit_score"`
	KYCStatus      string  `json:"kyc_status"`
	SalaryVerified bool    `json:"salary_verified"`
	EligibleLimit  float64 `json:"eligible_limit"`
	RiskFlag       string  `json:"risk_flag"`
	DocumentStatus string  `json:"document_status"`

	// Segment, when set, names a limit override category such as "existing_customer".
	Segment string `json:"segment,omitempty"`
}

// CreditVerifier fetches credit reports.
type CreditVerifier interface {
	Verify(ctx context.Context, identifier string, kind IdentifierType) (VerificationResult, error)
}
