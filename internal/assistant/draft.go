package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chefitup/internal/recipe"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PlaceholderImage is the image path given to recipes that do not carry one.
const PlaceholderImage = "/images/recipe-placeholder.jpg"

var validate = validator.New()

// recipeDraft is the JSON shape the LLM is asked to produce for generated
// and imported recipes.
type recipeDraft struct {
	Title               string            `json:"title" validate:"required"`
	Description         string            `json:"description"`
	PrepTime            int               `json:"prepTime" validate:"gte=0"`
	CookTime            int               `json:"cookTime" validate:"gte=0"`
	Servings            int               `json:"servings" validate:"gte=1"`
	Difficulty          string            `json:"difficulty" validate:"oneof=easy medium hard"`
	CuisineType         string            `json:"cuisineType"`
	DietaryRestrictions []string          `json:"dietaryRestrictions"`
	Ingredients         []draftIngredient `json:"ingredients" validate:"required,min=1,dive"`
	Instructions        []string          `json:"instructions" validate:"required,min=1,dive,required"`
	NutritionInfo       *draftNutrition   `json:"nutritionInfo"`
}

type draftIngredient struct {
	Name     string      `json:"name" validate:"required"`
	Quantity looseString `json:"quantity"`
	Unit     string      `json:"unit"`
	Category string      `json:"category"`
}

type draftNutrition struct {
	Calories      float64  `json:"calories"`
	Protein       float64  `json:"protein"`
	Carbs         float64  `json:"carbs"`
	Fat           float64  `json:"fat"`
	GlycemicIndex *float64 `json:"glycemicIndex"`
}

// looseString accepts a JSON string or number. Models often answer
// "quantity": 2 instead of "quantity": "2".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("quantity must be a string or number: %w", err)
	}
	if f, err := n.Float64(); err == nil {
		*s = looseString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	*s = looseString(n.String())
	return nil
}

// parseRecipeDraft decodes and validates an LLM answer and turns it into a
// recipe with the given id prefix.
func parseRecipeDraft(agent, raw, idPrefix string) (recipe.Recipe, error) {
	var draft recipeDraft
	if err := json.Unmarshal([]byte(stripFences(raw)), &draft); err != nil {
		return recipe.Recipe{}, &ParseError{Agent: agent, Raw: raw, Err: err}
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Difficulty = strings.ToLower(strings.TrimSpace(draft.Difficulty))
	if err := validate.Struct(draft); err != nil {
		return recipe.Recipe{}, &ParseError{Agent: agent, Raw: raw, Err: err}
	}

	r := draft.toRecipe(idPrefix + uuid.NewString())
	if err := r.Validate(); err != nil {
		return recipe.Recipe{}, &ParseError{Agent: agent, Raw: raw, Err: err}
	}
	return r, nil
}

func (d recipeDraft) toRecipe(id string) recipe.Recipe {
	r := recipe.Recipe{
		ID:                  id,
		Title:               d.Title,
		Description:         strings.TrimSpace(d.Description),
		Image:               PlaceholderImage,
		PrepTime:            d.PrepTime,
		CookTime:            d.CookTime,
		Servings:            d.Servings,
		Difficulty:          recipe.Difficulty(d.Difficulty),
		CuisineType:         strings.TrimSpace(d.CuisineType),
		DietaryRestrictions: d.DietaryRestrictions,
		Instructions:        d.Instructions,
	}
	if r.DietaryRestrictions == nil {
		r.DietaryRestrictions = []string{}
	}

	for i, ing := range d.Ingredients {
		category := strings.TrimSpace(ing.Category)
		if category == "" {
			category = "Other"
		}
		r.Ingredients = append(r.Ingredients, recipe.Ingredient{
			ID:       fmt.Sprintf("ing-%d", i+1),
			Name:     strings.TrimSpace(ing.Name),
			Quantity: strings.TrimSpace(string(ing.Quantity)),
			Unit:     strings.TrimSpace(ing.Unit),
			Category: category,
		})
	}

	if n := d.NutritionInfo; n != nil {
		r.Nutrition = recipe.Nutrition{
			Calories:      n.Calories,
			Protein:       n.Protein,
			Carbs:         n.Carbs,
			Fat:           n.Fat,
			GlycemicIndex: n.GlycemicIndex,
		}
	}
	return r
}

// isParseError reports whether err came from decoding a model answer.
func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
