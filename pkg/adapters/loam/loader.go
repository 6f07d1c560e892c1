// Package loam loads knowledge documents from a directory of Markdown, JSON or YAML files
// through the Loam document library.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam repository to knowledge.WatchableSource.
type Loader struct {
	Repo *loam.TypedRepository[DocumentMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocumentMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository in dir.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo)), nil
}

// Get retrieves one document. The ID may omit the file extension.
func (l *Loader) Get(ctx context.Context, id string) (knowledge.Document, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return toDocument(doc.ID, doc.Data, doc.Content), nil
}

// Documents implements knowledge.Source. Documents are sorted by ID.
// List only carries metadata, so each body is read with Get.
func (l *Loader) Documents(ctx context.Context) ([]knowledge.Document, error) {
	listed, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]knowledge.Document, 0, len(listed))
	for _, entry := range listed {
		rawID := entry.Data.ID
		if rawID == "" {
			rawID = entry.ID
		}
		id := trimExtension(rawID)
		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, entry.ID)
		}
		seen[id] = entry.ID

		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		d := toDocument(entry.ID, doc.Data, doc.Content)
		if d.Content == "" {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toDocument(docID string, meta DocumentMetadata, body string) knowledge.Document {
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}

	content := strings.TrimSpace(meta.Content)
	if content == "" {
		content = strings.TrimSpace(body)
	}

	md := flattenMetadata(meta.Metadata)
	if meta.Category != "" {
		md[knowledge.MetaCategory] = meta.Category
	}
	if meta.Type != "" {
		md[knowledge.MetaType] = meta.Type
	}
	if len(md) == 0 {
		md = nil
	}

	return knowledge.Document{ID: trimExtension(rawID), Content: content, Metadata: md}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Loam debounces; a pending signal already covers this change.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}

// flattenMetadata converts a nested map into a flat map[string]string, joining nested keys
// with dashes and lists with spaces.
func flattenMetadata(src map[string]any) map[string]string {
	res := make(map[string]string)
	var visit func(prefix string, v any)

	visit = func(prefix string, v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, sub := range val {
				fullKey := k
				if prefix != "" {
					fullKey = prefix + "-" + k
				}
				visit(fullKey, sub)
			}
		case map[any]any:
			for k, sub := range val {
				strKey := fmt.Sprintf("%v", k)
				fullKey := strKey
				if prefix != "" {
					fullKey = prefix + "-" + strKey
				}
				visit(fullKey, sub)
			}
		case []any:
			var parts []string
			for _, item := range val {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			res[prefix] = strings.Join(parts, " ")
		default:
			if prefix != "" {
				res[prefix] = fmt.Sprintf("%v", val)
			}
		}
	}

	for k, v := range src {
		visit(k, v)
	}
	return res
}
