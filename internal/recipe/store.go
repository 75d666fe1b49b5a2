package recipe

import (
	"fmt"
	"strings"
	"sync"
)

// Filter narrows a catalog listing. Every field is optional and the set
// fields combine with AND.
type Filter struct {
	// Query matches a case-insensitive substring of the title or description.
	Query string
	// Keywords match when any keyword is a substring of the title or description.
	Keywords []string
	// CuisineType matches ignoring case. Empty or "all" disables it.
	CuisineType string
	// DietaryRestrictions must all be present on the recipe.
	DietaryRestrictions []string
	// MaxTotalTime caps prep plus cook minutes. Zero disables it.
	MaxTotalTime int
}

// Store is an in-memory recipe catalog. Reads are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	recipes []Recipe
	byID    map[string]int
}

// NewStore validates the recipes and builds a store that keeps their order.
func NewStore(recipes []Recipe) (*Store, error) {
	s := &Store{byID: make(map[string]int, len(recipes))}
	for _, r := range recipes {
		if err := s.add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) add(r Recipe) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("duplicate recipe id %q", r.ID)
	}
	s.byID[r.ID] = len(s.recipes)
	s.recipes = append(s.recipes, r)
	return nil
}

// Add appends a recipe (for example one imported from a web page) to the catalog.
func (s *Store) Add(r Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(r)
}

// Get returns the recipe with the given id or ErrNotFound.
func (s *Store) Get(id string) (Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return Recipe{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.recipes[i], nil
}

// Exists reports whether a recipe with the given id is in the catalog.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of recipes in the catalog.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recipes)
}

// List returns the recipes matching f in catalog order.
func (s *Store) List(f Filter) []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := newMatcher(f)
	out := make([]Recipe, 0, len(s.recipes))
	for _, r := range s.recipes {
		if m.match(r) {
			out = append(out, r)
		}
	}
	return out
}

type matcher struct {
	query    string
	keywords []string
	cuisine  string
	diets    []string
	maxTime  int
}

func newMatcher(f Filter) matcher {
	m := matcher{
		query:   strings.ToLower(strings.TrimSpace(f.Query)),
		maxTime: f.MaxTotalTime,
		diets:   f.DietaryRestrictions,
	}
	for _, k := range f.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	if c := strings.TrimSpace(f.CuisineType); !strings.EqualFold(c, "all") {
		m.cuisine = c
	}
	return m
}

func (m matcher) match(r Recipe) bool {
	text := strings.ToLower(r.Title) + "\n" + strings.ToLower(r.Description)

	if m.query != "" && !strings.Contains(text, m.query) {
		return false
	}
	if len(m.keywords) > 0 {
		hit := false
		for _, k := range m.keywords {
			if strings.Contains(text, k) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if m.cuisine != "" && !strings.EqualFold(r.CuisineType, m.cuisine) {
		return false
	}
	for _, d := range m.diets {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if !r.HasRestriction(strings.TrimSpace(d)) {
			return false
		}
	}
	if m.maxTime > 0 && r.TotalTime() > m.maxTime {
		return false
	}
	return true
}
