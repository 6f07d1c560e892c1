package knowledge

import "github.com/aretw0/lendflow/pkg/domain"

// Metadata keys used by the seed documents.
const (
	MetaCategory = "category"
	MetaType     = "type"
)

// Document is one searchable snippet.
type Document struct {
	ID       string            `json:"id" yaml:"id"`
	Content  string            `json:"content" yaml:"content"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Hit converts the document into a search result with the given relevance.
func (d Document) Hit(relevance float64) domain.KnowledgeHit {
	var meta map[string]string
	if len(d.Metadata) > 0 {
		meta = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
	}
	return domain.KnowledgeHit{ID: d.ID, Content: d.Content, Metadata: meta, Relevance: relevance}
}

// Seed returns the built-in personal loan knowledge base.
func Seed() []Document {
	return []Document{
		{
			ID:       "product_1",
			Content:  "Personal Loan: Unsecured loan up to 40 times of monthly salary. Interest rates from 10.5% to 18% depending on credit score.",
			Metadata: map[string]string{MetaCategory: "product_info", MetaType: "personal_loan"},
		},
		{
			ID:       "eligibility_1",
			Content:  "Eligibility criteria: Minimum age 21, maximum 60. Minimum salary of ₹25,000 for salaried. Business income should be ₹3,00,000 annually.",
			Metadata: map[string]string{MetaCategory: "eligibility", MetaType: "requirements"},
		},
		{
			ID:       "emi_1",
			Content:  "EMI calculation: EMI = [P x R x (1+R)^N]/[(1+R)^N-1], where P=Loan amount, R=monthly interest rate, N=loan tenure in months.",
			Metadata: map[string]string{MetaCategory: "emi_calculation", MetaType: "faq"},
		},
		{
			ID:       "interest_1",
			Content:  "Interest rates: 10.5% for credit score 750+, 11.5% for 700-749, 13.5% for below 700. Rates may vary based on relationship and other factors.",
			Metadata: map[string]string{MetaCategory: "interest_rates", MetaType: "product_info"},
		},
		{
			ID:       "documentation_1",
			Content:  "Required documents: Identity proof, address proof, income proof (3 months salary slip/bank statement), employment verification, bank statements.",
			Metadata: map[string]string{MetaCategory: "documentation", MetaType: "requirements"},
		},
		{
			ID:       "compliance_1",
			Content:  "All loans comply with RBI guidelines. Processing fee up to 2% of loan amount. Maximum interest rate ceiling as per RBI regulations.",
			Metadata: map[string]string{MetaCategory: "compliance", MetaType: "regulatory"},
		},
		{
			ID:       "prepayment_1",
			Content:  "Prepayment allowed after 6 months. No charges for part payment of up to 25% of outstanding amount per year.",
			Metadata: map[string]string{MetaCategory: "prepayment", MetaType: "policy"},
		},
	}
}
