package mealplan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

type planKey struct {
	userID string
	week   string
}

// MemoryRepository keeps plans in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	plans map[planKey]MealPlan
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{plans: make(map[planKey]MealPlan)}
}

// Load implements Repository.
func (r *MemoryRepository) Load(_ context.Context, userID string, weekStart time.Time) (*MealPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[planKey{userID, FormatWeek(weekStart)}]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, plan MealPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plans[planKey{plan.UserID, FormatWeek(plan.WeekStart)}] = plan.Clone()
	return nil
}

// SQLRepository stores each plan as a JSON document in the meal_plans table.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a new SQLRepository.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Load implements Repository.
func (r *SQLRepository) Load(ctx context.Context, userID string, weekStart time.Time) (*MealPlan, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM meal_plans WHERE user_id = ? AND week_start = ?`,
		userID, FormatWeek(weekStart),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query meal plan for user %s: %w", userID, err)
	}

	var plan MealPlan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meal plan: %w", err)
	}
	return &plan, nil
}

// Save implements Repository.
func (r *SQLRepository) Save(ctx context.Context, plan MealPlan) error {
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal meal plan: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meal_plans (id, user_id, week_start, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		plan.ID, plan.UserID, FormatWeek(plan.WeekStart), string(data), plan.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save meal plan for user %s: %w", plan.UserID, err)
	}
	return nil
}
