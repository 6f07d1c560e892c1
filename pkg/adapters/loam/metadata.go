package loam

// DocumentMetadata is the frontmatter of a knowledge document.
//
//	---
//	id: prepayment_1
//	category: prepayment
//	type: policy
//	---
//	Prepayment allowed after 6 months.
type DocumentMetadata struct {
	ID       string `json:"id" mapstructure:"id"`
	Category string `json:"category" mapstructure:"category"`
	Type     string `json:"type" mapstructure:"type"`
	// Content overrides the document body, mostly for JSON and YAML documents.
	Content string `json:"content" mapstructure:"content"`

	// Metadata holds extra keys, possibly nested. Nested keys are flattened with dashes.
	Metadata map[string]any `json:"metadata" mapstructure:"metadata"`
}
