package rules

import (
	"fmt"
	"slices"
)

// Income proof document identifiers.
const (
	DocSalarySlip    = "salary_slip"
	DocBankStatement = "bank_statement"
	DocTaxReturns    = "tax_returns"
)

// Document status values reported by verification.
const (
	DocumentsComplete   = "complete"
	DocumentsIncomplete = "incomplete"
)

// DocumentEvaluation is the outcome of EvaluateMissingDocuments.
type DocumentEvaluation struct {
	Missing         []string `json:"missing_documents"`
	Recommendations []string `json:"recommendations"`
	CanProceed      bool     `json:"can_proceed"`
}

// EvaluateMissingDocuments compares the provided documents with the required income proofs.
// An application with at most one missing proof may proceed.
func (e *Engine) EvaluateMissingDocuments(provided []string) DocumentEvaluation {
	out := DocumentEvaluation{
		Missing:         []string{},
		Recommendations: []string{},
	}
	for _, doc := range e.cfg.Documents.IncomeProofDocuments {
		if !slices.Contains(provided, doc) {
			out.Missing = append(out.Missing, doc)
		}
	}

	if !slices.Contains(provided, DocSalarySlip) {
		out.Recommendations = append(out.Recommendations, "Please upload your latest salary slip")
	}
	if !slices.Contains(provided, DocBankStatement) {
		out.Recommendations = append(out.Recommendations, fmt.Sprintf("Please provide %d months bank statement", e.cfg.Documents.BankStatementMonths))
	}

	out.CanProceed = len(out.Missing) <= 1
	return out
}

// SanctionDocuments lists what the customer still has to submit after sanction. Approved
// applications need nothing; every other decision needs a salary slip plus any missing proof.
func (e *Engine) SanctionDocuments(approved bool, provided []string) []string {
	if approved {
		return []string{}
	}
	docs := []string{DocSalarySlip}
	for _, doc := range e.EvaluateMissingDocuments(provided).Missing {
		if !slices.Contains(docs, doc) {
			docs = append(docs, doc)
		}
	}
	return docs
}
