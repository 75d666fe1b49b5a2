package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"chefitup/internal/recipe"

	"github.com/go-chi/chi/v5"
)

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Tier    string          `json:"tier"`
	Recipes []recipe.Recipe `json:"recipes"`
}

type generateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type importRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// handleListRecipes handles GET /api/recipes
func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := recipe.Filter{
		Query:       q.Get("q"),
		CuisineType: q.Get("cuisine"),
	}
	for _, d := range strings.Split(q.Get("diet"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			f.DietaryRestrictions = append(f.DietaryRestrictions, d)
		}
	}
	if mt := q.Get("max_time"); mt != "" {
		n, err := strconv.Atoi(mt)
		if err != nil || n < 0 {
			writeErrorMessage(w, http.StatusBadRequest, "max_time must be a non-negative number of minutes")
			return
		}
		f.MaxTotalTime = n
	}

	writeJSON(w, http.StatusOK, map[string]any{"recipes": s.svc.ListRecipes(f)})
}

// handleGetRecipe handles GET /api/recipes/{id}
func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Recipe(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSearchRecipes handles POST /api/recipes/search
func (s *Server) handleSearchRecipes(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res := s.svc.SearchRecipes(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, searchResponse{Tier: string(res.Tier), Recipes: res.Recipes})
}

// handleGenerateRecipe handles POST /api/recipes/generate
func (s *Server) handleGenerateRecipe(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.svc.GenerateRecipe(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleImportRecipe handles POST /api/recipes/import
func (s *Server) handleImportRecipe(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.svc.ImportRecipe(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
