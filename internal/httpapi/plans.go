package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"chefitup/internal/mealplan"
	"chefitup/internal/shopping"

	"github.com/go-chi/chi/v5"
)

type setMealRequest struct {
	RecipeID string `json:"recipe_id" validate:"required"`
	Servings int    `json:"servings" validate:"required,gte=1"`
}

type addItemRequest struct {
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

type addRecipeRequest struct {
	RecipeID string `json:"recipe_id" validate:"required"`
	Servings int    `json:"servings" validate:"required,gte=1"`
}

type exportRequest struct {
	Title string `json:"title"`
}

type exportResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Mock      bool      `json:"mock"`
}

type shoppingListResponse struct {
	shopping.ShoppingList
	Groups []shopping.CategoryGroup `json:"groups"`
}

func listResponse(l shopping.ShoppingList) shoppingListResponse {
	return shoppingListResponse{ShoppingList: l, Groups: shopping.GroupByCategory(l)}
}

// week reads the {week} parameter: a date inside the week or "current".
func (s *Server) week(r *http.Request) (time.Time, error) {
	raw := chi.URLParam(r, "week")
	if strings.EqualFold(raw, "current") {
		return mealplan.WeekStart(s.now()), nil
	}
	t, err := mealplan.ParseWeek(raw)
	if err != nil {
		return time.Time{}, badRequest{fmt.Errorf("invalid week %q: use YYYY-MM-DD or current", raw)}
	}
	return t, nil
}

func daySlot(r *http.Request) (mealplan.Day, mealplan.Slot, error) {
	day, err := mealplan.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		return "", "", badRequest{err}
	}
	slot, err := mealplan.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		return "", "", badRequest{err}
	}
	return day, slot, nil
}

// handleGetMealPlan handles GET /api/meal-plans/{week}
func (s *Server) handleGetMealPlan(w http.ResponseWriter, r *http.Request) {
	week, err := s.week(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.svc.MealPlan(r.Context(), userID(r), week)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleSetMeal handles PUT /api/meal-plans/{week}/{day}/{slot}
func (s *Server) handleSetMeal(w http.ResponseWriter, r *http.Request) {
	week, err := s.week(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	day, slot, err := daySlot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req setMealRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.svc.SetMeal(r.Context(), userID(r), week, day, slot, req.RecipeID, req.Servings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleClearMeal handles DELETE /api/meal-plans/{week}/{day}/{slot}
func (s *Server) handleClearMeal(w http.ResponseWriter, r *http.Request) {
	week, err := s.week(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	day, slot, err := daySlot(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plan, err := s.svc.ClearMeal(r.Context(), userID(r), week, day, slot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// listHandler adapts a shopping list operation on the {week} list.
func (s *Server) listHandler(op func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		week, err := s.week(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		list, err := op(r, userID(r), week)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse(list))
	}
}

// handleGetShoppingList handles GET /api/shopping-lists/{week}
func (s *Server) handleGetShoppingList(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		return s.svc.ShoppingList(r.Context(), user, week)
	})(w, r)
}

// handleGenerateShoppingList handles POST /api/shopping-lists/{week}/generate
func (s *Server) handleGenerateShoppingList(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		return s.svc.GenerateShoppingList(r.Context(), user, week)
	})(w, r)
}

// handleAddShoppingItem handles POST /api/shopping-lists/{week}/items
func (s *Server) handleAddShoppingItem(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		var req addItemRequest
		if err := decode(r, &req); err != nil {
			return shopping.ShoppingList{}, err
		}
		return s.svc.AddShoppingItem(r.Context(), user, week, req.Name, req.Quantity, req.Unit)
	})(w, r)
}

// handleAddRecipeToList handles POST /api/shopping-lists/{week}/recipes
func (s *Server) handleAddRecipeToList(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		var req addRecipeRequest
		if err := decode(r, &req); err != nil {
			return shopping.ShoppingList{}, err
		}
		return s.svc.AddRecipeToShoppingList(r.Context(), user, week, req.RecipeID, req.Servings)
	})(w, r)
}

// handleToggleShoppingItem handles POST /api/shopping-lists/{week}/items/{id}/toggle
func (s *Server) handleToggleShoppingItem(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		return s.svc.ToggleShoppingItem(r.Context(), user, week, chi.URLParam(r, "id"))
	})(w, r)
}

// handleRemoveShoppingItem handles DELETE /api/shopping-lists/{week}/items/{id}
func (s *Server) handleRemoveShoppingItem(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		return s.svc.RemoveShoppingItem(r.Context(), user, week, chi.URLParam(r, "id"))
	})(w, r)
}

// handleClearChecked handles POST /api/shopping-lists/{week}/clear-checked
func (s *Server) handleClearChecked(w http.ResponseWriter, r *http.Request) {
	s.listHandler(func(r *http.Request, user string, week time.Time) (shopping.ShoppingList, error) {
		return s.svc.ClearCheckedItems(r.Context(), user, week)
	})(w, r)
}

// handleExport handles POST /api/shopping-lists/{week}/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	week, err := s.week(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req exportRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	link, err := s.svc.ExportShoppingList(r.Context(), userID(r), week, req.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{URL: link.URL, ExpiresAt: link.ExpiresAt, Mock: link.Mock})
}
