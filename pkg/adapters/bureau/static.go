// Package bureau provides credit/KYC verifiers: an in-process mock bureau and an HTTP client
// for a remote one.
package bureau

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/lendflow/pkg/ports"
)

// DefaultReport is what the mock bureau returns for an unknown customer.
var DefaultReport = ports.VerificationResult{
	CreditScore:    750,
	KYCStatus:      "verified",
	SalaryVerified: true,
	EligibleLimit:  2500000,
	RiskFlag:       "low",
	DocumentStatus: "complete",
}

// Static is an in-memory bureau. It is the default verifier and backs the
// /verification/credit endpoint.
type Static struct {
	mu      sync.RWMutex
	reports map[string]ports.VerificationResult
	def     ports.VerificationResult
}

// StaticOption configures a Static bureau.
type StaticOption func(*Static)

// WithReport registers the report returned for one identifier.
func WithReport(identifier string, report ports.VerificationResult) StaticOption {
	return func(s *Static) {
		s.reports[normalize(identifier)] = report
	}
}

// WithDefault replaces DefaultReport.
func WithDefault(report ports.VerificationResult) StaticOption {
	return func(s *Static) {
		s.def = report
	}
}

// NewStatic creates a mock bureau.
func NewStatic(opts ...StaticOption) *Static {
	s := &Static{
		reports: make(map[string]ports.VerificationResult),
		def:     DefaultReport,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set registers or replaces a report at runtime.
func (s *Static) Set(identifier string, report ports.VerificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[normalize(identifier)] = report
}

// Verify implements ports.CreditVerifier.
func (s *Static) Verify(ctx context.Context, identifier string, _ ports.IdentifierType) (ports.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.VerificationResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reports[normalize(identifier)]; ok {
		return r, nil
	}
	return s.def, nil
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}
