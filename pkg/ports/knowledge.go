package ports

import (
	"context"

	"github.com/aretw0/lendflow/pkg/domain"
)

// KnowledgeSearcher returns knowledge snippets ordered by decreasing relevance.
// Results only enrich a turn; they never drive routing.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error)
}

// Watchable defines an interface for sources that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying documents change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
