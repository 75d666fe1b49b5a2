// Package httpapi exposes the meal planner as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/assistant"
	"chefitup/internal/instacart"
	"chefitup/internal/logging"
	"chefitup/internal/mealplan"
	"chefitup/internal/metrics"
	"chefitup/internal/recipe"
	"chefitup/internal/session"
	"chefitup/internal/shopping"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 60 * time.Second

// Service is what the API needs from the application. *app.App implements it.
type Service interface {
	ListRecipes(f recipe.Filter) []recipe.Recipe
	Recipe(id string) (recipe.Recipe, error)
	SearchRecipes(ctx context.Context, query string) assistant.SearchResult
	GenerateRecipe(ctx context.Context, prompt string) (recipe.Recipe, error)
	ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error)

	MealPlan(ctx context.Context, userID string, week time.Time) (mealplan.MealPlan, error)
	SetMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot, recipeID string, servings int) (mealplan.MealPlan, error)
	ClearMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot) (mealplan.MealPlan, error)

	GenerateShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	ShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	AddShoppingItem(ctx context.Context, userID string, week time.Time, name, quantity, unit string) (shopping.ShoppingList, error)
	AddRecipeToShoppingList(ctx context.Context, userID string, week time.Time, recipeID string, servings int) (shopping.ShoppingList, error)
	ToggleShoppingItem(ctx context.Context, userID string, week time.Time, itemID string) (shopping.ShoppingList, error)
	RemoveShoppingItem(ctx context.Context, userID string, week time.Time, itemID string) (shopping.ShoppingList, error)
	ClearCheckedItems(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	ExportShoppingList(ctx context.Context, userID string, week time.Time, title string) (instacart.Link, error)
	SetInstacartMockMode(on bool)
	InstacartMockMode() bool
	TestInstacartConnection(ctx context.Context) error

	NewSession() (*session.Bridge, error)
	Authenticate(ctx context.Context, accessToken string) (session.Claims, error)

	AIAvailable() bool
	Collector() *metrics.Collector
}

var _ Service = (*app.App)(nil)

// Server is the HTTP front end.
type Server struct {
	svc    Service
	logger *zap.Logger
	router *chi.Mux
	server *http.Server
	now    func() time.Time
}

// NewServer creates a Server listening on addr.
func NewServer(svc Service, addr string, logger *zap.Logger) *Server {
	s := &Server{
		svc:    svc,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
	s.router = s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(instrument(s.svc.Collector()))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.svc.Collector().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", s.handleSignIn)
			r.Post("/signup", s.handleSignUp)
			r.Post("/signout", s.handleSignOut)
			r.Get("/oauth/{provider}", s.handleOAuthStart)
			r.Post("/oauth/callback", s.handleOAuthCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/me", s.handleMe)
			r.Patch("/me/preferences", s.handleUpdatePreferences)

			r.Route("/recipes", func(r chi.Router) {
				r.Get("/", s.handleListRecipes)
				r.Post("/search", s.handleSearchRecipes)
				r.Post("/generate", s.handleGenerateRecipe)
				r.Post("/import", s.handleImportRecipe)
				r.Get("/{id}", s.handleGetRecipe)
			})

			r.Route("/meal-plans/{week}", func(r chi.Router) {
				r.Get("/", s.handleGetMealPlan)
				r.Put("/{day}/{slot}", s.handleSetMeal)
				r.Delete("/{day}/{slot}", s.handleClearMeal)
			})

			r.Route("/shopping-lists/{week}", func(r chi.Router) {
				r.Get("/", s.handleGetShoppingList)
				r.Post("/generate", s.handleGenerateShoppingList)
				r.Post("/items", s.handleAddShoppingItem)
				r.Post("/recipes", s.handleAddRecipeToList)
				r.Post("/items/{id}/toggle", s.handleToggleShoppingItem)
				r.Delete("/items/{id}", s.handleRemoveShoppingItem)
				r.Post("/clear-checked", s.handleClearChecked)
				r.Post("/export", s.handleExport)
			})

			r.Route("/instacart", func(r chi.Router) {
				r.Get("/status", s.handleInstacartStatus)
				r.Put("/mock-mode", s.handleSetMockMode)
				r.Post("/test-connection", s.handleTestConnection)
			})
		})
	})

	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP API listening", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      "chefitup",
		"ai_available": s.svc.AIAvailable(),
		"timestamp":    s.now().Unix(),
	})
}
