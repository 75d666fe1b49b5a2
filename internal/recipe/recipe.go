package recipe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Difficulty is how demanding a recipe is to cook.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Ingredient is one line of a recipe's ingredient list. Quantity is kept as
// text because catalogs carry values like "1/2", "1 1/2" or "a pinch".
type Ingredient struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Category string `json:"category"`
}

// Nutrition holds per-serving nutrition facts.
type Nutrition struct {
	Calories      float64  `json:"calories" validate:"gte=0"`
	Protein       float64  `json:"protein" validate:"gte=0"`
	Carbs         float64  `json:"carbs" validate:"gte=0"`
	Fat           float64  `json:"fat" validate:"gte=0"`
	GlycemicIndex *float64 `json:"glycemic_index,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Recipe is a catalog entry. Times are minutes.
type Recipe struct {
	ID                  string       `json:"id" validate:"required"`
	Title               string       `json:"title" validate:"required"`
	Description         string       `json:"description"`
	Image               string       `json:"image"`
	PrepTime            int          `json:"prep_time" validate:"gte=0"`
	CookTime            int          `json:"cook_time" validate:"gte=0"`
	Servings            int          `json:"servings" validate:"gte=1"`
	Difficulty          Difficulty   `json:"difficulty" validate:"oneof=easy medium hard"`
	CuisineType         string       `json:"cuisine_type"`
	DietaryRestrictions []string     `json:"dietary_restrictions"`
	Ingredients         []Ingredient `json:"ingredients" validate:"required,min=1,dive"`
	Instructions        []string     `json:"instructions" validate:"required,min=1,dive,required"`
	Nutrition           Nutrition    `json:"nutrition"`
}

// ErrNotFound is returned when no recipe has the requested id.
var ErrNotFound = errors.New("recipe not found")

var validate = validator.New()

// TotalTime is prep plus cook time in minutes.
func (r Recipe) TotalTime() int {
	return r.PrepTime + r.CookTime
}

// HasRestriction reports whether the recipe is tagged with the given dietary
// restriction, ignoring case.
func (r Recipe) HasRestriction(tag string) bool {
	for _, t := range r.DietaryRestrictions {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a recipe.
func (r Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid recipe %q: %w", r.ID, err)
	}
	return nil
}
