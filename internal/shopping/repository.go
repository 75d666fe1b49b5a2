package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"chefitup/internal/mealplan"
)

// Repository persists one shopping list per user and week.
// Load returns nil, nil when no list exists.
type Repository interface {
	Load(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error)
	Save(ctx context.Context, list ShoppingList) error
}

type listKey struct {
	userID string
	week   string
}

// MemoryRepository keeps lists in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	lists map[listKey]ShoppingList
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lists: make(map[listKey]ShoppingList)}
}

// Load implements Repository.
func (r *MemoryRepository) Load(_ context.Context, userID string, weekStart time.Time) (*ShoppingList, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lists[listKey{userID, mealplan.FormatWeek(weekStart)}]
	if !ok {
		return nil, nil
	}
	c := l.clone()
	return &c, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, list ShoppingList) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lists[listKey{list.UserID, mealplan.FormatWeek(list.WeekStart)}] = list.clone()
	return nil
}

// SQLRepository handles persistence of shopping lists in SQLite.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a new shopping list repository.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Load implements Repository.
func (r *SQLRepository) Load(ctx context.Context, userID string, weekStart time.Time) (*ShoppingList, error) {
	var (
		id        string
		items     string
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, items, updated_at FROM shopping_lists WHERE user_id = ? AND week_start = ?`,
		userID, mealplan.FormatWeek(weekStart),
	).Scan(&id, &items, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shopping list by user and week: %w", err)
	}

	list := ShoppingList{
		ID:        id,
		UserID:    userID,
		WeekStart: weekStart.UTC(),
	}
	if list.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse shopping list timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &list.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shopping list items: %w", err)
	}
	return &list, nil
}

// Save implements Repository.
func (r *SQLRepository) Save(ctx context.Context, list ShoppingList) error {
	items := list.Items
	if items == nil {
		items = []Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal shopping list items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO shopping_lists (id, user_id, week_start, items, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			id = excluded.id,
			items = excluded.items,
			updated_at = excluded.updated_at`,
		list.ID, list.UserID, mealplan.FormatWeek(list.WeekStart), string(itemsJSON), list.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save shopping list: %w", err)
	}
	return nil
}
