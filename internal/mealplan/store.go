package mealplan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chefitup/internal/logging"

	"go.uber.org/zap"
)

// Repository persists meal plans keyed by user and week start.
// Load returns nil, nil when no plan exists.
type Repository interface {
	Load(ctx context.Context, userID string, weekStart time.Time) (*MealPlan, error)
	Save(ctx context.Context, plan MealPlan) error
}

// RecipeLookup resolves a recipe id; used to reject meals that reference
// unknown recipes.
type RecipeLookup interface {
	Exists(id string) bool
}

// Store implements the weekly meal plan operations on top of a Repository.
type Store struct {
	repo    Repository
	recipes RecipeLookup
	logger  *zap.Logger
	now     func() time.Time

	// mu serializes read-modify-write cycles inside this process. Writers in
	// other processes still race with last-write-wins.
	mu sync.Mutex
}

// NewStore creates a Store. recipes may be nil to skip recipe id checks.
func NewStore(repo Repository, recipes RecipeLookup, logger *zap.Logger) *Store {
	return &Store{
		repo:    repo,
		recipes: recipes,
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

func checkKey(userID string, weekStart time.Time) error {
	if userID == "" {
		return ErrMissingUser
	}
	if !IsWeekStart(weekStart) {
		return fmt.Errorf("%w: got %s", ErrInvalidWeekStart, weekStart.Format(time.RFC3339))
	}
	return nil
}

// Get returns the plan for the week, creating and storing an empty grid when
// none exists. Repeated calls return the same plan.
func (s *Store) Get(ctx context.Context, userID string, weekStart time.Time) (MealPlan, error) {
	if err := checkKey(userID, weekStart); err != nil {
		return MealPlan{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrCreate(ctx, userID, weekStart.UTC())
}

func (s *Store) loadOrCreate(ctx context.Context, userID string, weekStart time.Time) (MealPlan, error) {
	existing, err := s.repo.Load(ctx, userID, weekStart)
	if err != nil {
		return MealPlan{}, fmt.Errorf("failed to load meal plan: %w", err)
	}
	if existing != nil {
		existing.fill()
		return *existing, nil
	}

	plan := New(userID, weekStart)
	plan.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, plan); err != nil {
		return MealPlan{}, fmt.Errorf("failed to save meal plan: %w", err)
	}
	s.logger.Debug("created empty meal plan",
		zap.String("user_id", userID),
		zap.String("week", FormatWeek(weekStart)))
	return plan, nil
}

// AddMeal places a recipe in a slot, replacing whatever was there.
func (s *Store) AddMeal(ctx context.Context, userID string, weekStart time.Time, day Day, slot Slot, recipeID string, servings int) error {
	if err := checkKey(userID, weekStart); err != nil {
		return err
	}
	if !validDay(day) || !validSlot(slot) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidSlot, day, slot)
	}
	if servings < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidServings, servings)
	}
	if recipeID == "" {
		return ErrMissingRecipe
	}
	if s.recipes != nil && !s.recipes.Exists(recipeID) {
		return fmt.Errorf("%w %q", ErrUnknownRecipe, recipeID)
	}

	return s.update(ctx, userID, weekStart, func(p *MealPlan) bool {
		p.Days[day][slot] = &PlannedMeal{RecipeID: recipeID, Servings: servings}
		return true
	})
}

// RemoveMeal clears a slot. Clearing an unset slot is a no-op.
func (s *Store) RemoveMeal(ctx context.Context, userID string, weekStart time.Time, day Day, slot Slot) error {
	if err := checkKey(userID, weekStart); err != nil {
		return err
	}
	if !validDay(day) || !validSlot(slot) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidSlot, day, slot)
	}

	return s.update(ctx, userID, weekStart, func(p *MealPlan) bool {
		if p.Days[day][slot] == nil {
			return false
		}
		p.Days[day][slot] = nil
		return true
	})
}

func (s *Store) update(ctx context.Context, userID string, weekStart time.Time, mutate func(*MealPlan) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.loadOrCreate(ctx, userID, weekStart.UTC())
	if err != nil {
		return err
	}
	plan = plan.Clone()
	if !mutate(&plan) {
		return nil
	}
	plan.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, plan); err != nil {
		return fmt.Errorf("failed to save meal plan: %w", err)
	}
	return nil
}
