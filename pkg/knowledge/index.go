package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/ports"
)

// DefaultLimit is the number of hits returned when the caller does not ask for a count.
const DefaultLimit = 3

// Source provides the documents of a knowledge base.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// WatchableSource is a Source that reports changes.
type WatchableSource interface {
	Source
	ports.Watchable
}

// Index is an in-memory searcher over a set of documents. It implements ports.Watchable:
// subscribers are signaled after every change.
type Index struct {
	mu   sync.RWMutex
	docs []Document

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewIndex creates an index holding docs.
func NewIndex(docs ...Document) *Index {
	idx := &Index{}
	idx.Replace(docs)
	return idx
}

// NewSeedIndex creates an index over the built-in documents.
func NewSeedIndex() *Index {
	return NewIndex(Seed()...)
}

// Replace swaps the indexed documents.
func (i *Index) Replace(docs []Document) {
	cp := append([]Document(nil), docs...)
	i.mu.Lock()
	i.docs = cp
	i.mu.Unlock()
	i.notify()
}

// Add indexes more documents. A document whose ID is already indexed replaces it.
func (i *Index) Add(docs ...Document) {
	defer i.notify()
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, d := range docs {
		replaced := false
		for j := range i.docs {
			if i.docs[j].ID == d.ID {
				i.docs[j] = d
				replaced = true
				break
			}
		}
		if !replaced {
			i.docs = append(i.docs, d)
		}
	}
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Search implements ports.KnowledgeSearcher.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Rank(query, i.docs, limit), nil
}

// Load replaces the indexed documents with those of src.
func (i *Index) Load(ctx context.Context, src Source) error {
	docs, err := src.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load knowledge documents: %w", err)
	}
	i.Replace(docs)
	return nil
}

// Follow loads src and reloads it on every change it reports, until ctx is done.
// Reload failures are logged and keep the previous documents.
func (i *Index) Follow(ctx context.Context, src WatchableSource, logger *slog.Logger) error {
	if err := i.Load(ctx, src); err != nil {
		return err
	}
	ch, err := src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch knowledge source: %w", err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if err := i.Load(ctx, src); err != nil {
					if logger != nil {
						logger.Warn("knowledge reload failed", "err", err)
					}
					continue
				}
				if logger != nil {
					logger.Info("knowledge reloaded", "documents", i.Len())
				}
			}
		}
	}()
	return nil
}

// Watch implements ports.Watchable. The channel is closed when ctx is done.
func (i *Index) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	i.subMu.Lock()
	if i.subs == nil {
		i.subs = make(map[chan struct{}]struct{})
	}
	i.subs[ch] = struct{}{}
	i.subMu.Unlock()

	go func() {
		<-ctx.Done()
		i.subMu.Lock()
		delete(i.subs, ch)
		close(ch)
		i.subMu.Unlock()
	}()
	return ch, nil
}

func (i *Index) notify() {
	i.subMu.Lock()
	defer i.subMu.Unlock()
	for ch := range i.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
