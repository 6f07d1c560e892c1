// Package llm implements ports.Classifier on an OpenAI-compatible chat completion API
// (Groq by default). Its hints are advisory: the dialogue router validates them and
// classify.Resilient falls back to the deterministic classifier when the model fails.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/classify"
	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
	"github.com/invopop/jsonschema"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"

	// Source tags hints produced by this classifier.
	Source = "llm"

	temperature = 0.1
	maxTokens   = 500
)

// ErrNoChoices is returned when the model answers without a completion.
var ErrNoChoices = errors.New("model returned no choices")

// Classifier asks a chat model for a routing hint.
type Classifier struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

type options struct {
	baseURL string
	model   string
	logger  *slog.Logger
}

// Option configures a Classifier.
type Option func(*options)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a classifier authenticated with apiKey.
func New(apiKey string, opts ...Option) *Classifier {
	o := options{baseURL: DefaultBaseURL, model: DefaultModel, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = o.baseURL
	return &Classifier{
		client: openai.NewClientWithConfig(cfg),
		model:  o.model,
		logger: o.logger,
	}
}

// Analyze implements ports.Classifier.
func (c *Classifier) Analyze(ctx context.Context, message string, cc ports.ClassifierContext) (ports.RoutingHint, error) {
	prompt, err := systemPrompt(cc)
	if err != nil {
		return ports.RoutingHint{}, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: "User message: " + message},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return ports.RoutingHint{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ports.RoutingHint{}, ErrNoChoices
	}

	hint, err := classify.ParseHint([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return ports.RoutingHint{}, err
	}
	hint.Source = Source
	c.logger.Debug("classifier hint",
		"conversation_id", cc.ConversationID,
		"model", c.model,
		"intent", hint.Intent,
		"next_handler", hint.NextHandler,
		"confidence", hint.Confidence,
		"tokens", resp.Usage.TotalTokens)
	return hint, nil
}

var (
	schemaOnce sync.Once
	schemaJSON string
	schemaErr  error
)

// hintSchema is the JSON schema of RoutingHint, embedded in the prompt.
func hintSchema() (string, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		data, err := json.Marshal(r.Reflect(&ports.RoutingHint{}))
		schemaJSON, schemaErr = string(data), err
	})
	return schemaJSON, schemaErr
}

func systemPrompt(cc ports.ClassifierContext) (string, error) {
	schema, err := hintSchema()
	if err != nil {
		return "", fmt.Errorf("failed to build hint schema: %w", err)
	}
	collected, err := json.Marshal(cc.Record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	var b strings.Builder
	b.WriteString("You analyze messages sent to a personal loan application assistant.\n\n")
	fmt.Fprintf(&b, "Stage: %s\n", cc.Stage)
	fmt.Fprintf(&b, "Application so far: %s\n", collected)
	fmt.Fprintf(&b, "Pending EMI adjustment offer: %t\n", cc.PendingAdjustment)
	fmt.Fprintf(&b, "Application closed: %t\n", cc.Ended)
	if len(cc.Recent) > 0 {
		b.WriteString("Recent messages:\n")
		for _, m := range cc.Recent {
			fmt.Fprintf(&b, "- %s: %s\n", m.Role, m.Content)
		}
	}
	b.WriteString(`
Answer with one JSON object matching this schema:
`)
	b.WriteString(schema)
	b.WriteString(`

Routing guide:
- With a pending EMI offer, "yes/ok/sure" is confirmation and "no/skip" is rejection.
- "how is EMI calculated" is emi_explanation; "why was I approved/rejected" is decision_explanation.
- "what if I paid X as EMI" is hypothetical_emi with hypothetical_emi_amount X.
- "what if my salary was X" or "change my city to Y" is modification with the new value in extracted_data.
- New loan details go to needs_assessment while requirements are missing.
- Concerns such as "too expensive" or "not sure" are objection.
- Use engagement only for a greeting at the very start of a conversation.

Amounts use Indian formats: "1.5 lakhs" is 150000, "60k" is 60000, "2 crores" is 20000000.
Salaries are monthly; divide annual figures by 12.
Employment is one of ` + employmentValues() + `.
Return only the JSON object.`)
	return b.String(), nil
}

func employmentValues() string {
	return strings.Join([]string{
		string(domain.EmploymentSalaried),
		string(domain.EmploymentContract),
		string(domain.EmploymentSelfEmployed),
	}, ", ")
}
