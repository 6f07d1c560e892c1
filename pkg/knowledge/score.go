package knowledge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aretw0/lendflow/pkg/domain"
)

var termPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "can": true, "do": true, "for": true, "from": true, "how": true, "i": true,
	"if": true, "in": true, "is": true, "it": true, "me": true, "my": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "what": true, "when": true, "which": true,
	"who": true, "why": true, "will": true, "with": true, "you": true, "your": true,
}

// Terms lowercases s and splits it into distinct content words. A trailing plural "s" is
// dropped so that "rates" matches "rate".
func Terms(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range termPattern.FindAllString(strings.ToLower(s), -1) {
		if stopwords[t] {
			continue
		}
		if len(t) > 3 && strings.HasSuffix(t, "s") {
			t = strings.TrimSuffix(t, "s")
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Score returns the share of query terms present in doc, in [0, 1].
func Score(query []string, doc Document) float64 {
	if len(query) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, t := range Terms(doc.Content) {
		have[t] = true
	}
	for _, v := range doc.Metadata {
		for _, t := range Terms(strings.ReplaceAll(v, "_", " ")) {
			have[t] = true
		}
	}
	matched := 0
	for _, t := range query {
		if have[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

// Rank scores docs against query and returns at most limit hits with a positive score,
// best first. Ties keep the input order.
func Rank(query string, docs []Document, limit int) []domain.KnowledgeHit {
	terms := Terms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil
	}
	type scored struct {
		doc   Document
		score float64
	}
	var candidates []scored
	for _, d := range docs {
		if s := Score(terms, d); s > 0 {
			candidates = append(candidates, scored{d, s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	hits := make([]domain.KnowledgeHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.doc.Hit(c.score)
	}
	return hits
}
