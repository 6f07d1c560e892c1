package classify

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/extract"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

var (
	employmentType = reflect.TypeOf(domain.Employment(""))
	float64Type    = reflect.TypeOf(float64(0))
)

// ParseHint decodes a JSON object produced by a model into a RoutingHint.
func ParseHint(data []byte) (ports.RoutingHint, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return ports.RoutingHint{}, fmt.Errorf("classifier output is not a JSON object: %w", err)
	}
	return DecodeHint(raw)
}

// DecodeHint converts a loosely typed model output into a RoutingHint. Models return numbers
// as strings ("0.85", "2 lakhs") and free-form enum values, so decoding is weakly typed with
// hooks for amounts and employment categories.
func DecodeHint(raw map[string]any) (ports.RoutingHint, error) {
	if data, ok := raw["extracted_data"].(map[string]any); ok {
		pruneEmpty(data)
	}

	var hint ports.RoutingHint
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &hint,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			amountHook,
			employmentHook,
		),
	})
	if err != nil {
		return ports.RoutingHint{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return ports.RoutingHint{}, fmt.Errorf("failed to decode classifier output: %w", err)
	}

	hint.Intent = strings.ToLower(strings.TrimSpace(hint.Intent))
	hint.NextHandler = strings.ToLower(strings.TrimSpace(hint.NextHandler))
	hint.QuestionType = strings.ToLower(strings.TrimSpace(hint.QuestionType))
	if city, ok := extract.MatchCity(hint.ExtractedData.City); ok {
		hint.ExtractedData.City = city
	}
	switch {
	case hint.Confidence < 0:
		hint.Confidence = 0
	case hint.Confidence > 1:
		hint.Confidence = 1
	}
	return hint, nil
}

// pruneEmpty drops null and blank values so they decode as "not found".
func pruneEmpty(m map[string]any) {
	for k, v := range m {
		switch v := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if s := strings.TrimSpace(v); s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
				delete(m, k)
			}
		}
	}
}

// amountHook turns "2 lakhs" or "85,000" into a float.
func amountHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != float64Type {
		return data, nil
	}
	if v, ok := extract.ParseAmount(data.(string)); ok {
		return v, nil
	}
	return data, nil
}

// employmentHook normalizes "Self-Employed" and similar spellings.
func employmentHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != employmentType {
		return data, nil
	}
	s := data.(string)
	if e, ok := extract.MatchEmployment(s); ok {
		return e, nil
	}
	norm := domain.Employment(strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(strings.TrimSpace(s))))
	if norm.Valid() {
		return norm, nil
	}
	return domain.Employment(""), nil
}
