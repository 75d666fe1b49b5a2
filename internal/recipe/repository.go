package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a database-backed store for recipes added at runtime
// (imported from a page or saved after generation).
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts or updates a recipe. source records where it came from.
func (r *Repository) Save(ctx context.Context, rec Recipe, source string) error {
	recipeJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recipe to JSON: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recipes (id, data, source, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		rec.ID, string(recipeJSON), source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save recipe %s: %w", rec.ID, err)
	}
	return nil
}

// List returns every stored recipe in insertion order.
func (r *Repository) List(ctx context.Context) ([]Recipe, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, data FROM recipes ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []Recipe
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		var rec Recipe
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipe JSON for ID %s: %w", id, err)
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

// LoadInto adds every stored recipe to store, skipping ids already present.
func (r *Repository) LoadInto(ctx context.Context, store *Store) (int, error) {
	recipes, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, rec := range recipes {
		if store.Exists(rec.ID) {
			continue
		}
		if err := store.Add(rec); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
