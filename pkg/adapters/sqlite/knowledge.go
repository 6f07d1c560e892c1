package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/lendflow/pkg/domain"
	"github.com/aretw0/lendflow/pkg/knowledge"
	"github.com/oklog/ulid/v2"
)

// Knowledge stores documents in the knowledge_documents table and implements
// ports.KnowledgeSearcher over them.
type Knowledge struct {
	db *sql.DB
}

// Put inserts or replaces doc and returns its ID. Documents without an ID get a ULID.
func (k *Knowledge) Put(ctx context.Context, doc knowledge.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = ulid.Make().String()
	}
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = k.db.ExecContext(ctx, `
		INSERT INTO knowledge_documents (id, content, metadata, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`,
		doc.ID, doc.Content, string(meta), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to store document %s: %w", doc.ID, err)
	}
	return doc.ID, nil
}

// Seed stores docs that are not present yet and reports how many were added.
func (k *Knowledge) Seed(ctx context.Context, docs []knowledge.Document) (int, error) {
	added := 0
	for _, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return added, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		res, err := k.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO knowledge_documents (id, content, metadata, created_at) VALUES (?, ?, ?, ?)`,
			doc.ID, doc.Content, string(meta), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return added, fmt.Errorf("failed to seed document %s: %w", doc.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

// Delete removes a document. Unknown IDs are ignored.
func (k *Knowledge) Delete(ctx context.Context, id string) error {
	_, err := k.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, id)
	return err
}

// Count returns the number of stored documents.
func (k *Knowledge) Count(ctx context.Context) (int, error) {
	var n int
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_documents`).Scan(&n)
	return n, err
}

// Search selects documents sharing at least one term with the query and ranks them.
func (k *Knowledge) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeHit, error) {
	terms := knowledge.Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = knowledge.DefaultLimit
	}

	where := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		where[i] = "(content LIKE ? OR metadata LIKE ?)"
		args[i] = "%" + t + "%"
	}
	// Each term is bound twice.
	bound := make([]any, 0, 2*len(args))
	for _, a := range args {
		bound = append(bound, a, a)
	}

	rows, err := k.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, content, metadata FROM knowledge_documents
		WHERE %s
		ORDER BY id`, strings.Join(where, " OR ")), bound...)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	defer rows.Close()

	var docs []knowledge.Document
	for rows.Next() {
		var (
			doc  knowledge.Document
			meta sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return knowledge.Rank(query, docs, limit), nil
}
