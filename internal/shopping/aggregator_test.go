package shopping

import (
	"errors"
	"testing"
	"time"

	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(id string) (recipe.Recipe, error)

func (f resolverFunc) Get(id string) (recipe.Recipe, error) { return f(id) }

func catalog(recipes ...recipe.Recipe) RecipeResolver {
	byID := map[string]recipe.Recipe{}
	for _, r := range recipes {
		byID[r.ID] = r
	}
	return resolverFunc(func(id string) (recipe.Recipe, error) {
		r, ok := byID[id]
		if !ok {
			return recipe.Recipe{}, recipe.ErrNotFound
		}
		return r, nil
	})
}

var week = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

var (
	pancakes = recipe.Recipe{
		ID: "pancakes", Title: "Pancakes", Servings: 2,
		Ingredients: []recipe.Ingredient{
			{Name: "Flour", Quantity: "2", Unit: "cups", Category: "Baking"},
			{Name: "Milk", Quantity: "1 1/2", Unit: "cup", Category: "Dairy"},
			{Name: "Salt", Quantity: "a pinch", Unit: "", Category: "Spices"},
		},
	}
	bread = recipe.Recipe{
		ID: "bread", Title: "Bread", Servings: 4,
		Ingredients: []recipe.Ingredient{
			{Name: "flour", Quantity: "2", Unit: "Cups", Category: "Pantry"},
			{Name: "Yeast", Quantity: "1/4", Unit: "oz", Category: "Baking"},
			{Name: "Salt", Quantity: "1", Unit: "", Category: "Spices"},
		},
	}
)

func planWith(meals map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal) mealplan.MealPlan {
	p := mealplan.New("user-1", week)
	for d, slots := range meals {
		for s, m := range slots {
			m := m
			p.Days[d][s] = &m
		}
	}
	return p
}

func findItem(t *testing.T, l ShoppingList, name string) Item {
	t.Helper()
	for _, it := range l.Items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("item %q not found in %+v", name, l.Items)
	return Item{}
}

func TestGenerateEmptyPlan(t *testing.T) {
	l, err := Generate(mealplan.New("user-1", week), catalog())
	require.NoError(t, err)

	assert.Empty(t, l.Items)
	assert.Empty(t, GroupByCategory(l))
	assert.Equal(t, "user-1", l.UserID)
	assert.True(t, l.WeekStart.Equal(week))
}

func TestGenerateMergesAcrossRecipes(t *testing.T) {
	plan := planWith(map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal{
		mealplan.Monday:  {mealplan.Breakfast: {RecipeID: "pancakes", Servings: 2}},
		mealplan.Tuesday: {mealplan.Dinner: {RecipeID: "bread", Servings: 4}},
	})

	l, err := Generate(plan, catalog(pancakes, bread))
	require.NoError(t, err)

	flour := findItem(t, l, "Flour")
	assert.Equal(t, "4", flour.Quantity)
	assert.Equal(t, "cups", flour.Unit)
	assert.Equal(t, "Baking", flour.Category)
	assert.ElementsMatch(t, []string{"pancakes", "bread"}, flour.RecipeIDs)

	salt := findItem(t, l, "Salt")
	assert.Equal(t, "1 + a pinch", salt.Quantity)
	assert.Len(t, salt.RecipeIDs, 2)

	assert.Len(t, l.Items, 4)
}

func TestGenerateScalesServings(t *testing.T) {
	plan := planWith(map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal{
		mealplan.Wednesday: {mealplan.Lunch: {RecipeID: "pancakes", Servings: 4}},
	})

	l, err := Generate(plan, catalog(pancakes))
	require.NoError(t, err)

	for _, ing := range pancakes.Ingredients {
		item := findItem(t, l, ing.Name)
		base, numeric := ParseQuantity(ing.Quantity)
		if !numeric {
			assert.Equal(t, ing.Quantity, item.Quantity)
			continue
		}
		got, ok := ParseQuantity(item.Quantity)
		require.True(t, ok)
		assert.InDelta(t, base*2, got, 1e-9)
	}
}

func TestGenerateSameRecipeTwice(t *testing.T) {
	plan := planWith(map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal{
		mealplan.Monday: {mealplan.Lunch: {RecipeID: "bread", Servings: 2}},
		mealplan.Friday: {mealplan.Lunch: {RecipeID: "bread", Servings: 2}},
	})

	l, err := Generate(plan, catalog(bread))
	require.NoError(t, err)

	flour := findItem(t, l, "flour")
	assert.Equal(t, "2", flour.Quantity)
	assert.Equal(t, []string{"bread"}, flour.RecipeIDs)
}

func TestGenerateUnknownRecipe(t *testing.T) {
	plan := planWith(map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal{
		mealplan.Monday: {mealplan.Lunch: {RecipeID: "ghost", Servings: 1}},
	})

	_, err := Generate(plan, catalog())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRecipe))
	assert.True(t, errors.Is(err, recipe.ErrNotFound))
}

func TestGenerateFromEmbeddedCatalog(t *testing.T) {
	store, err := recipe.LoadEmbedded()
	require.NoError(t, err)

	plan := planWith(map[mealplan.Day]map[mealplan.Slot]mealplan.PlannedMeal{
		mealplan.Monday:  {mealplan.Dinner: {RecipeID: "recipe-1", Servings: 4}},
		mealplan.Tuesday: {mealplan.Dinner: {RecipeID: "recipe-2", Servings: 4}},
	})

	l, err := Generate(plan, store)
	require.NoError(t, err)

	oil := findItem(t, l, "Olive oil")
	assert.Equal(t, "4", oil.Quantity)
	assert.Equal(t, "tbsp", oil.Unit)

	groups := GroupByCategory(l)
	require.NotEmpty(t, groups)
	assert.Equal(t, "Pasta & Grains", groups[0].Category)
}

func TestAddRecipe(t *testing.T) {
	l, err := AddManualItem(ShoppingList{UserID: "u"}, "flour", "1", "cups")
	require.NoError(t, err)

	l = AddRecipe(l, pancakes, 1)

	flour := findItem(t, l, "flour")
	assert.Equal(t, "2", flour.Quantity)
	assert.Equal(t, ManualCategory, flour.Category)
	assert.Equal(t, []string{"pancakes"}, flour.RecipeIDs)

	milk := findItem(t, l, "Milk")
	assert.Equal(t, "0.75", milk.Quantity)
}

func TestAddManualItem(t *testing.T) {
	l, err := AddManualItem(ShoppingList{}, "  Milk ", "1", "gal")
	require.NoError(t, err)
	require.Len(t, l.Items, 1)

	it := l.Items[0]
	assert.Equal(t, "Milk", it.Name)
	assert.Equal(t, ManualCategory, it.Category)
	assert.Empty(t, it.RecipeIDs)
	assert.NotEmpty(t, it.ID)

	_, err = AddManualItem(l, "   ", "1", "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestToggleChecked(t *testing.T) {
	l, _ := AddManualItem(ShoppingList{}, "Eggs", "12", "")
	id := l.Items[0].ID

	once, err := ToggleChecked(l, id)
	require.NoError(t, err)
	assert.True(t, once.Items[0].Checked)
	assert.False(t, l.Items[0].Checked, "input list must not change")

	twice, err := ToggleChecked(once, id)
	require.NoError(t, err)
	assert.Equal(t, l.Items, twice.Items)

	_, err = ToggleChecked(l, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem(t *testing.T) {
	l, _ := AddManualItem(ShoppingList{}, "Eggs", "12", "")
	l, _ = AddManualItem(l, "Milk", "1", "gal")

	out, err := RemoveItem(l, l.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Milk", out.Items[0].Name)
	assert.Len(t, l.Items, 2)

	_, err = RemoveItem(l, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClearChecked(t *testing.T) {
	l, _ := AddManualItem(ShoppingList{}, "Eggs", "12", "")
	l, _ = AddManualItem(l, "Milk", "1", "gal")
	l, _ = AddManualItem(l, "Bread", "1", "loaf")

	t.Run("NothingChecked", func(t *testing.T) {
		assert.Equal(t, l, ClearChecked(l))
	})

	t.Run("RemovesChecked", func(t *testing.T) {
		checked, err := ToggleChecked(l, l.Items[1].ID)
		require.NoError(t, err)

		out := ClearChecked(checked)
		require.Len(t, out.Items, 2)
		assert.Equal(t, "Eggs", out.Items[0].Name)
		assert.Equal(t, "Bread", out.Items[1].Name)
		assert.Zero(t, out.CheckedCount())
	})
}

func TestGroupByCategory(t *testing.T) {
	l := ShoppingList{Items: []Item{
		{ID: "1", Name: "Apples", Category: "Produce"},
		{ID: "2", Name: "Milk", Category: "Dairy"},
		{ID: "3", Name: "Pears", Category: "Produce"},
		{ID: "4", Name: "Batteries", Category: ""},
	}}

	groups := GroupByCategory(l)
	require.Len(t, groups, 3)
	assert.Equal(t, "Produce", groups[0].Category)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, "Dairy", groups[1].Category)
	assert.Equal(t, ManualCategory, groups[2].Category)
}
