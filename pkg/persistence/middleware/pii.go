package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
)

const mask = "***"

var textPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`), "[email]"},
	// Aadhaar before phones: "1234 5678 9012" also holds ten digits.
	{regexp.MustCompile(`\b\d{4}[\s-]\d{4}[\s-]\d{4}\b|\b\d{12}\b`), "[aadhaar]"},
	{regexp.MustCompile(`(?:\+91[\s-]?|\b0?)[6-9]\d{9}\b`), "[phone]"},
	{regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`), "[pan]"},
}

// MaskText replaces emails, Indian mobile numbers, Aadhaar and PAN numbers in free text
// with placeholders. It is used for persisted history and for log payloads.
func MaskText(s string) string {
	for _, p := range textPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks PII in message history and replaces
// customer values whose keys match one of the patterns. The caller's session is never
// modified.
func NewPIIMiddleware(keyPatterns []string) Middleware {
	patterns := make([]*regexp.Regexp, len(keyPatterns))
	for i, p := range keyPatterns {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, session *domain.Session) error {
	cloned := session.Clone()
	for i := range cloned.History {
		cloned.History[i].Content = MaskText(cloned.History[i].Content)
	}
	for k := range cloned.Customer {
		if m.matches(k) {
			cloned.Customer[k] = mask
		}
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) matches(key string) bool {
	key = strings.ToLower(key)
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
