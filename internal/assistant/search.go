package assistant

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"chefitup/internal/llm"
	"chefitup/internal/logging"
	"chefitup/internal/recipe"

	"go.uber.org/zap"
)

const (
	agentSearchExtract = "search_extract"
	agentSearchRank    = "search_rank"

	rankLimit = 5
)

// Tier names the stage that produced a search result.
type Tier string

const (
	TierAll     Tier = "all"
	TierExtract Tier = "extract"
	TierRank    Tier = "rank"
	TierPlain   Tier = "plain"
)

var errNoMatches = errors.New("no matching recipes")

//go:embed search_extract_prompt.md
var searchExtractPrompt string

//go:embed search_rank_prompt.md
var searchRankPrompt string

// Catalog is the read side of the recipe store used by search.
type Catalog interface {
	List(f recipe.Filter) []recipe.Recipe
	Get(id string) (recipe.Recipe, error)
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Recipes []recipe.Recipe
	Tier    Tier
}

// Searcher answers free-text recipe queries. It first asks the model for
// structured filters, then for a ranking of the catalog, and finally falls
// back to a plain substring match.
type Searcher struct {
	catalog  Catalog
	textGen  llm.TextGenerator
	recorder MetricsRecorder
	logger   *zap.Logger
}

// NewSearcher creates a Searcher. A nil textGen disables the AI tiers.
func NewSearcher(catalog Catalog, textGen llm.TextGenerator, recorder MetricsRecorder, logger *zap.Logger) *Searcher {
	return &Searcher{
		catalog:  catalog,
		textGen:  textGen,
		recorder: orNoRecorder(recorder),
		logger:   logging.OrNop(logger),
	}
}

// Search never fails: every AI problem degrades to the next tier.
func (s *Searcher) Search(ctx context.Context, query string) SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.done(TierAll, s.catalog.List(recipe.Filter{}))
	}

	tier := TierExtract
	if s.textGen == nil {
		tier = TierPlain
	}

	for {
		switch tier {
		case TierExtract:
			recipes, err := s.extract(ctx, query)
			if err == nil {
				return s.done(TierExtract, recipes)
			}
			s.fallback(tier, TierRank, query, err)
			tier = TierRank

		case TierRank:
			recipes, err := s.rank(ctx, query)
			if err == nil {
				return s.done(TierRank, recipes)
			}
			s.fallback(tier, TierPlain, query, err)
			tier = TierPlain

		default:
			return s.done(TierPlain, s.catalog.List(recipe.Filter{Query: query}))
		}
	}
}

func (s *Searcher) done(tier Tier, recipes []recipe.Recipe) SearchResult {
	s.recorder.ObserveSearch(string(tier))
	if recipes == nil {
		recipes = []recipe.Recipe{}
	}
	return SearchResult{Recipes: recipes, Tier: tier}
}

func (s *Searcher) fallback(from, to Tier, query string, err error) {
	reason := "provider"
	switch {
	case errors.Is(err, errNoMatches):
		reason = "empty"
	case isParseError(err):
		reason = "parse"
	}
	s.logger.Warn("search tier failed",
		zap.String("tier", string(from)),
		zap.String("next", string(to)),
		zap.String("reason", reason),
		zap.String("query", query),
		zap.Error(err))
}

type searchParams struct {
	Keywords            []string `json:"keywords"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	CuisineType         *string  `json:"cuisineType"`
	MaxTime             *float64 `json:"maxTime"`
}

func (p searchParams) filter() recipe.Filter {
	f := recipe.Filter{
		Keywords:            nonBlank(p.Keywords),
		DietaryRestrictions: nonBlank(p.DietaryRestrictions),
	}
	if p.CuisineType != nil && !isAnyCuisine(*p.CuisineType) {
		f.CuisineType = strings.TrimSpace(*p.CuisineType)
	}
	if p.MaxTime != nil && *p.MaxTime > 0 && !math.IsInf(*p.MaxTime, 0) {
		f.MaxTotalTime = int(math.Round(*p.MaxTime))
	}
	return f
}

func (s *Searcher) extract(ctx context.Context, query string) ([]recipe.Recipe, error) {
	prompt, err := render("search_extract", searchExtractPrompt, struct{ Query string }{query})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := call(ctx, s.textGen, s.recorder, agentSearchExtract, prompt)
	if err != nil {
		return nil, err
	}

	var params searchParams
	if err := json.Unmarshal([]byte(stripFences(raw)), &params); err != nil {
		return nil, &ParseError{Agent: agentSearchExtract, Raw: raw, Err: err}
	}

	f := params.filter()
	if len(f.Keywords) == 0 && len(f.DietaryRestrictions) == 0 && f.CuisineType == "" && f.MaxTotalTime == 0 {
		return nil, &ParseError{Agent: agentSearchExtract, Raw: raw, Err: errors.New("no search parameters extracted")}
	}

	recipes := s.catalog.List(f)
	if len(recipes) == 0 {
		return nil, errNoMatches
	}
	return recipes, nil
}

type catalogEntry struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	CuisineType         string   `json:"cuisineType"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	PrepTime            int      `json:"prepTime"`
	CookTime            int      `json:"cookTime"`
}

func (s *Searcher) rank(ctx context.Context, query string) ([]recipe.Recipe, error) {
	all := s.catalog.List(recipe.Filter{})
	entries := make([]catalogEntry, 0, len(all))
	for _, r := range all {
		entries = append(entries, catalogEntry{
			ID:                  r.ID,
			Title:               r.Title,
			Description:         r.Description,
			CuisineType:         r.CuisineType,
			DietaryRestrictions: r.DietaryRestrictions,
			PrepTime:            r.PrepTime,
			CookTime:            r.CookTime,
		})
	}
	catalogJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}

	prompt, err := render("search_rank", searchRankPrompt, struct {
		Query   string
		Catalog string
		Limit   int
	}{query, string(catalogJSON), rankLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := call(ctx, s.textGen, s.recorder, agentSearchRank, prompt)
	if err != nil {
		return nil, err
	}

	ids, err := parseRankedIDs(raw)
	if err != nil {
		return nil, &ParseError{Agent: agentSearchRank, Raw: raw, Err: err}
	}

	seen := make(map[string]bool, len(ids))
	var recipes []recipe.Recipe
	for _, id := range ids {
		if seen[id] || len(recipes) == rankLimit {
			continue
		}
		seen[id] = true
		r, err := s.catalog.Get(id)
		if err != nil {
			continue
		}
		recipes = append(recipes, r)
	}
	if len(recipes) == 0 {
		return nil, errNoMatches
	}
	return recipes, nil
}

// parseRankedIDs accepts either a bare JSON array of ids or an object with an
// "ids" array.
func parseRankedIDs(raw string) ([]string, error) {
	body := []byte(stripFences(raw))

	var ids []string
	if err := json.Unmarshal(body, &ids); err == nil {
		return ids, nil
	}

	var wrapped struct {
		IDs       []string `json:"ids"`
		RecipeIDs []string `json:"recipeIds"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.IDs != nil {
		return wrapped.IDs, nil
	}
	if wrapped.RecipeIDs != nil {
		return wrapped.RecipeIDs, nil
	}
	return nil, errors.New(`missing "ids"`)
}

func nonBlank(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isAnyCuisine(c string) bool {
	c = strings.TrimSpace(c)
	return c == "" || strings.EqualFold(c, "all") || strings.EqualFold(c, "null")
}
