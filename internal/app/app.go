// Package app wires the recipe catalog, meal plans, shopping lists, the AI
// pipeline, Instacart and the session bridge into one service used by the
// HTTP API, the Telegram bot and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"chefitup/internal/assistant"
	"chefitup/internal/config"
	"chefitup/internal/database"
	"chefitup/internal/instacart"
	"chefitup/internal/llm"
	"chefitup/internal/logging"
	"chefitup/internal/mealplan"
	"chefitup/internal/metrics"
	"chefitup/internal/recipe"
	"chefitup/internal/session"
	"chefitup/internal/shopping"
	"chefitup/internal/supabase"

	"go.uber.org/zap"
)

const (
	sourceGenerated = "generated"
	sourceImported  = "imported"
)

var (
	// ErrAuthUnavailable is returned when no hosted auth project is configured.
	ErrAuthUnavailable = errors.New("authentication is not configured")
	// ErrNothingToExport is returned when a list has no unchecked items.
	ErrNothingToExport = errors.New("shopping list has no items to export")
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *database.DB
	recipes    *recipe.Store
	recipeRepo *recipe.Repository
	plans      *mealplan.Store
	lists      shopping.Repository
	listMu     sync.Mutex

	generator *assistant.Generator
	searcher  *assistant.Searcher
	importer  *assistant.Importer
	instacart *instacart.Client

	tokens   *session.TokenParser
	supabase *supabase.Client

	metricsStore *metrics.Store
	collector    *metrics.Collector
	recorder     *metrics.Recorder

	closers   []llm.Closer
	aiEnabled bool
}

// Option customizes New.
type Option func(*options)

type options struct {
	creative, precise llm.TextGenerator
	injected          bool
}

// WithGenerators replaces the configured LLM providers. creative drives
// recipe generation and import, precise drives search. Either may be nil.
func WithGenerators(creative, precise llm.TextGenerator) Option {
	return func(o *options) {
		o.creative, o.precise, o.injected = creative, precise, true
	}
}

// New opens the database, loads the recipe catalog and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	logger = logging.OrNop(logger)

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: logger}
	if !o.injected {
		if err := a.openGenerators(ctx, &o); err != nil {
			return nil, err
		}
	}

	db, err := database.NewDB(cfg.DatabasePath, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	recipes, err := recipe.Load(cfg.RecipeCatalogPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load recipe catalog: %w", err)
	}
	a.recipes = recipes
	a.recipeRepo = recipe.NewRepository(db.SQL)
	n, err := a.recipeRepo.LoadInto(ctx, recipes)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load saved recipes: %w", err)
	}
	logger.Info("recipe catalog loaded", zap.Int("recipes", recipes.Len()), zap.Int("saved", n))

	a.plans = mealplan.NewStore(mealplan.NewSQLRepository(db.SQL), recipes, logger)
	a.lists = shopping.NewSQLRepository(db.SQL)

	a.metricsStore = metrics.NewStore(db.SQL)
	a.collector = metrics.NewCollector()
	a.recorder = metrics.NewRecorder(a.metricsStore, a.collector, logger)

	a.aiEnabled = o.creative != nil
	a.generator = assistant.NewGenerator(o.creative, a.recorder, logger)
	a.importer = assistant.NewImporter(o.creative, a.recorder, logger)
	searchGen := o.precise
	if !cfg.AISearchEnabled {
		searchGen = nil
	}
	a.searcher = assistant.NewSearcher(recipes, searchGen, a.recorder, logger)

	a.instacart = instacart.NewClient(cfg, a.collector, logger)
	a.tokens = session.NewTokenParser(cfg.SupabaseJWTSecret)
	if cfg.SupabaseConfigured() {
		a.supabase = supabase.NewClient(cfg)
	}

	return a, nil
}

func (a *App) openGenerators(ctx context.Context, o *options) error {
	creative, err := llm.NewFromConfig(ctx, a.cfg, llm.CreativeTemperature)
	if errors.Is(err, llm.ErrNotConfigured) {
		a.logger.Warn("no LLM provider configured, AI features disabled", zap.String("provider", a.cfg.LLMProvider))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	a.track(creative)

	precise, err := llm.NewFromConfig(ctx, a.cfg, llm.PreciseTemperature)
	if err != nil {
		a.Close()
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	a.track(precise)

	o.creative, o.precise = creative, precise
	return nil
}

func (a *App) track(gen llm.TextGenerator) {
	if c, ok := gen.(llm.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close releases the LLM clients and the database.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	return errors.Join(errs...)
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Collector returns the Prometheus collector.
func (a *App) Collector() *metrics.Collector { return a.collector }

// AIAvailable reports whether an LLM provider is configured.
func (a *App) AIAvailable() bool { return a.aiEnabled }

// ListRecipes returns the catalog recipes matching f.
func (a *App) ListRecipes(f recipe.Filter) []recipe.Recipe {
	return a.recipes.List(f)
}

// Recipe returns one recipe by id.
func (a *App) Recipe(id string) (recipe.Recipe, error) {
	return a.recipes.Get(id)
}

// SearchRecipes answers a free-text query. It never fails.
func (a *App) SearchRecipes(ctx context.Context, query string) assistant.SearchResult {
	return a.searcher.Search(ctx, query)
}

// GenerateRecipe asks the model for a new recipe and adds it to the catalog.
func (a *App) GenerateRecipe(ctx context.Context, prompt string) (recipe.Recipe, error) {
	r, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if err := a.keep(ctx, r, sourceGenerated); err != nil {
		return recipe.Recipe{}, err
	}
	return r, nil
}

// ImportRecipe extracts a recipe from a web page and adds it to the catalog.
func (a *App) ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error) {
	r, err := a.importer.Import(ctx, url)
	if err != nil {
		return recipe.Recipe{}, err
	}
	if err := a.keep(ctx, r, sourceImported); err != nil {
		return recipe.Recipe{}, err
	}
	return r, nil
}

func (a *App) keep(ctx context.Context, r recipe.Recipe, source string) error {
	if err := a.recipeRepo.Save(ctx, r, source); err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}
	if err := a.recipes.Add(r); err != nil {
		return fmt.Errorf("failed to add recipe to catalog: %w", err)
	}
	return nil
}

// MealPlan returns the user's plan for the week containing week.
func (a *App) MealPlan(ctx context.Context, userID string, week time.Time) (mealplan.MealPlan, error) {
	return a.plans.Get(ctx, userID, mealplan.WeekStart(week))
}

// SetMeal puts a recipe into one slot and returns the updated plan.
func (a *App) SetMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot, recipeID string, servings int) (mealplan.MealPlan, error) {
	ws := mealplan.WeekStart(week)
	if err := a.plans.AddMeal(ctx, userID, ws, day, slot, recipeID, servings); err != nil {
		return mealplan.MealPlan{}, err
	}
	return a.plans.Get(ctx, userID, ws)
}

// ClearMeal empties one slot and returns the updated plan.
func (a *App) ClearMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot) (mealplan.MealPlan, error) {
	ws := mealplan.WeekStart(week)
	if err := a.plans.RemoveMeal(ctx, userID, ws, day, slot); err != nil {
		return mealplan.MealPlan{}, err
	}
	return a.plans.Get(ctx, userID, ws)
}

// GenerateShoppingList rebuilds the week's list from the meal plan,
// replacing any existing list.
func (a *App) GenerateShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error) {
	plan, err := a.MealPlan(ctx, userID, week)
	if err != nil {
		return shopping.ShoppingList{}, err
	}
	list, err := shopping.Generate(plan, a.recipes)
	if err != nil {
		return shopping.ShoppingList{}, err
	}

	a.listMu.Lock()
	defer a.listMu.Unlock()
	return a.saveList(ctx, list)
}

// ShoppingList returns the week's list. A week without a list yields an
// empty one that is not stored.
func (a *App) ShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error) {
	if userID == "" {
		return shopping.ShoppingList{}, mealplan.ErrMissingUser
	}
	ws := mealplan.WeekStart(week)
	list, err := a.lists.Load(ctx, userID, ws)
	if err != nil {
		return shopping.ShoppingList{}, err
	}
	if list == nil {
		return shopping.NewList(userID, ws), nil
	}
	return *list, nil
}

// AddShoppingItem adds a hand-entered item.
func (a *App) AddShoppingItem(ctx context.Context, userID string, week time.Time, name, quantity, unit string) (shopping.ShoppingList, error) {
	return a.updateList(ctx, userID, week, func(l shopping.ShoppingList) (shopping.ShoppingList, error) {
		return shopping.AddManualItem(l, name, quantity, unit)
	})
}

// AddRecipeToShoppingList merges one recipe's ingredients into the list.
func (a *App) AddRecipeToShoppingList(ctx context.Context, userID string, week time.Time, recipeID string, servings int) (shopping.ShoppingList, error) {
	if servings < 1 {
		return shopping.ShoppingList{}, mealplan.ErrInvalidServings
	}
	r, err := a.recipes.Get(recipeID)
	if err != nil {
		return shopping.ShoppingList{}, err
	}
	return a.updateList(ctx, userID, week, func(l shopping.ShoppingList) (shopping.ShoppingList, error) {
		return shopping.AddRecipe(l, r, servings), nil
	})
}

// ToggleShoppingItem flips an item's checked state.
func (a *App) ToggleShoppingItem(ctx context.Context, userID string, week time.Time, itemID string) (shopping.ShoppingList, error) {
	return a.updateList(ctx, userID, week, func(l shopping.ShoppingList) (shopping.ShoppingList, error) {
		return shopping.ToggleChecked(l, itemID)
	})
}

// RemoveShoppingItem deletes one item.
func (a *App) RemoveShoppingItem(ctx context.Context, userID string, week time.Time, itemID string) (shopping.ShoppingList, error) {
	return a.updateList(ctx, userID, week, func(l shopping.ShoppingList) (shopping.ShoppingList, error) {
		return shopping.RemoveItem(l, itemID)
	})
}

// ClearCheckedItems drops every checked item.
func (a *App) ClearCheckedItems(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error) {
	return a.updateList(ctx, userID, week, func(l shopping.ShoppingList) (shopping.ShoppingList, error) {
		return shopping.ClearChecked(l), nil
	})
}

func (a *App) updateList(ctx context.Context, userID string, week time.Time, mutate func(shopping.ShoppingList) (shopping.ShoppingList, error)) (shopping.ShoppingList, error) {
	a.listMu.Lock()
	defer a.listMu.Unlock()

	list, err := a.ShoppingList(ctx, userID, week)
	if err != nil {
		return shopping.ShoppingList{}, err
	}
	list, err = mutate(list)
	if err != nil {
		return shopping.ShoppingList{}, err
	}
	return a.saveList(ctx, list)
}

func (a *App) saveList(ctx context.Context, list shopping.ShoppingList) (shopping.ShoppingList, error) {
	list.UpdatedAt = time.Now().UTC()
	if err := a.lists.Save(ctx, list); err != nil {
		return shopping.ShoppingList{}, fmt.Errorf("failed to save shopping list: %w", err)
	}
	return list, nil
}

// ExportShoppingList sends the unchecked items of the week's list to
// Instacart.
func (a *App) ExportShoppingList(ctx context.Context, userID string, week time.Time, title string) (instacart.Link, error) {
	list, err := a.ShoppingList(ctx, userID, week)
	if err != nil {
		return instacart.Link{}, err
	}
	var items []shopping.Item
	for _, it := range list.Items {
		if !it.Checked {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return instacart.Link{}, ErrNothingToExport
	}
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf("%s (week of %s)", instacart.DefaultTitle, mealplan.FormatWeek(list.WeekStart))
	}
	return a.instacart.Export(ctx, items, title)
}

// SetInstacartMockMode toggles simulated exports at runtime.
func (a *App) SetInstacartMockMode(on bool) { a.instacart.SetMockMode(on) }

// InstacartMockMode reports whether exports are simulated.
func (a *App) InstacartMockMode() bool { return a.instacart.MockMode() }

// TestInstacartConnection checks the configured Instacart key.
func (a *App) TestInstacartConnection(ctx context.Context) error {
	return a.instacart.TestConnection(ctx)
}

// NewSession returns an anonymous session bridge for one client.
func (a *App) NewSession() (*session.Bridge, error) {
	if a.supabase == nil {
		return nil, ErrAuthUnavailable
	}
	return session.New(a.supabase, a.tokens, a.logger), nil
}

// Authenticate returns the identity carried by an access token. Without a
// JWT secret the token is confirmed with the auth project and the identity
// comes from its answer.
func (a *App) Authenticate(ctx context.Context, accessToken string) (session.Claims, error) {
	if a.tokens.Verifies() {
		return a.tokens.Parse(accessToken)
	}
	if a.supabase == nil {
		return session.Claims{}, ErrAuthUnavailable
	}

	claims, err := a.tokens.Parse(accessToken)
	if err != nil {
		return session.Claims{}, err
	}

	user, err := a.supabase.GetUser(ctx, accessToken)
	var remote *supabase.Error
	if errors.As(err, &remote) && remote.StatusCode >= 400 && remote.StatusCode < 500 {
		return session.Claims{}, fmt.Errorf("%w: %v", session.ErrInvalidToken, err)
	}
	if err != nil {
		return session.Claims{}, err
	}
	if user.ID == "" {
		return session.Claims{}, fmt.Errorf("%w: unknown user", session.ErrInvalidToken)
	}

	claims.Subject = user.ID
	claims.Email = user.Email
	claims.UserMetadata = user.UserMetadata
	return claims, nil
}

// MetricsReport summarizes LLM usage and process health.
type MetricsReport struct {
	Daily  []metrics.DailyUsage
	Agents []metrics.AgentUsage
	Health metrics.SysHealth
}

// Metrics returns usage for the last days days.
func (a *App) Metrics(ctx context.Context, days int) (MetricsReport, error) {
	daily, err := a.metricsStore.GetDailyUsage(ctx, days)
	if err != nil {
		return MetricsReport{}, err
	}
	agents, err := a.metricsStore.GetAgentUsage(ctx, days)
	if err != nil {
		return MetricsReport{}, err
	}
	return MetricsReport{
		Daily:  daily,
		Agents: agents,
		Health: metrics.GetSysHealth(filepath.Dir(a.cfg.DatabasePath)),
	}, nil
}

// CleanupMetrics removes usage records older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	return a.metricsStore.Cleanup(ctx, days)
}
