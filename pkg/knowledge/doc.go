// Package knowledge holds the product and policy snippets attached to a turn to enrich it.
// Search results never influence routing or underwriting.
package knowledge
