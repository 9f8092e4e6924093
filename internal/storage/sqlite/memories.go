package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

var _ core.MemoryStore = (*MemoriesRepo)(nil)

type MemoriesRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMemoriesRepo(db *sql.DB) *MemoriesRepo {
	return &MemoriesRepo{db: db, now: time.Now}
}

// Search returns the memories stored under namespace and its children,
// most recently updated first.
func (r *MemoriesRepo) Search(ctx context.Context, namespace core.Namespace) ([]core.MemoryItem, error) {
	ns := namespace.String()
	query := `SELECT namespace, key, content, kind, created_at, updated_at
		FROM memories WHERE namespace = ? OR namespace LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC, key`

	rows, err := r.db.QueryContext(ctx, query, ns, escapeLike(ns)+"/%")
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var items []core.MemoryItem
	for rows.Next() {
		var item core.MemoryItem
		var itemNS string
		if err := rows.Scan(&itemNS, &item.Key, &item.Content, &item.Kind, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		item.Namespace = core.ParseNamespace(itemNS)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Put inserts the item or replaces the content of an existing key while
// keeping its creation time.
func (r *MemoriesRepo) Put(ctx context.Context, item core.MemoryItem) error {
	if item.Key == "" {
		return fmt.Errorf("memory key is required")
	}

	now := r.now().UTC()
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `INSERT INTO memories (namespace, key, content, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			content = excluded.content,
			kind = excluded.kind,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, item.Namespace.String(), item.Key, item.Content, item.Kind, created.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

// Delete removes every memory under namespace and reports how many went.
func (r *MemoriesRepo) Delete(ctx context.Context, namespace core.Namespace) (int64, error) {
	ns := namespace.String()
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memories WHERE namespace = ? OR namespace LIKE ? ESCAPE '\'`, ns, escapeLike(ns)+"/%")
	if err != nil {
		return 0, fmt.Errorf("failed to delete memories: %w", err)
	}
	return res.RowsAffected()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
