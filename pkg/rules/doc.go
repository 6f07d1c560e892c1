// Package rules implements the deterministic underwriting rules: credit risk banding,
// approval path selection, escalation triggers, document checks, limit overrides and EMI math.
//
// Every function is pure. Thresholds come from a Config, which can be loaded from a YAML or
// JSON file and is validated before use.
package rules
