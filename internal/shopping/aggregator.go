package shopping

import (
	"fmt"
	"strings"
	"time"

	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"

	"github.com/google/uuid"
)

// RecipeResolver looks up the recipe behind a planned meal.
type RecipeResolver interface {
	Get(id string) (recipe.Recipe, error)
}

// Generate builds a shopping list from every set meal of plan. Ingredient
// quantities are scaled by servings over the recipe's base servings and
// merged on case-insensitive name and unit.
func Generate(plan mealplan.MealPlan, resolver RecipeResolver) (ShoppingList, error) {
	b := newBuilder(ShoppingList{
		ID:        uuid.NewString(),
		UserID:    plan.UserID,
		WeekStart: plan.WeekStart,
		Items:     []Item{},
	})

	for _, m := range plan.Meals() {
		r, err := resolver.Get(m.RecipeID)
		if err != nil {
			return ShoppingList{}, fmt.Errorf("%w: %s on %s %s: %w", ErrUnknownRecipe, m.RecipeID, m.Day, m.Slot, err)
		}
		b.addRecipe(r, m.Servings)
	}
	return b.build(), nil
}

// AddRecipe merges one recipe, scaled to servings, into an existing list.
func AddRecipe(list ShoppingList, r recipe.Recipe, servings int) ShoppingList {
	b := newBuilder(list)
	b.addRecipe(r, servings)
	return b.build()
}

// AddManualItem appends a hand-entered item in the "Other" category.
func AddManualItem(list ShoppingList, name, quantity, unit string) (ShoppingList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return list, ErrEmptyName
	}

	out := list.clone()
	out.Items = append(out.Items, Item{
		ID:        uuid.NewString(),
		Name:      name,
		Quantity:  strings.TrimSpace(quantity),
		Unit:      strings.TrimSpace(unit),
		Category:  ManualCategory,
		RecipeIDs: []string{},
	})
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// ToggleChecked flips the checked flag of one item.
func ToggleChecked(list ShoppingList, itemID string) (ShoppingList, error) {
	i := list.indexOf(itemID)
	if i < 0 {
		return list, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	out := list.clone()
	out.Items[i].Checked = !out.Items[i].Checked
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// RemoveItem deletes one item.
func RemoveItem(list ShoppingList, itemID string) (ShoppingList, error) {
	i := list.indexOf(itemID)
	if i < 0 {
		return list, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	out := list.clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}

// ClearChecked removes every checked item. A list with nothing checked is
// returned unchanged.
func ClearChecked(list ShoppingList) ShoppingList {
	if list.CheckedCount() == 0 {
		return list
	}
	out := list.clone()
	kept := out.Items[:0]
	for _, it := range out.Items {
		if !it.Checked {
			kept = append(kept, it)
		}
	}
	out.Items = kept
	out.UpdatedAt = time.Now().UTC()
	return out
}

// GroupByCategory groups items by category, ordering categories by their
// first appearance in the list.
func GroupByCategory(list ShoppingList) []CategoryGroup {
	groups := []CategoryGroup{}
	index := map[string]int{}
	for _, it := range list.Items {
		cat := it.Category
		if cat == "" {
			cat = ManualCategory
		}
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, CategoryGroup{Category: cat})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

func mergeKey(name, unit string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(unit))
}

// builder merges ingredients into a list while keeping exact running totals,
// so quantities are only rounded once when the list is built.
type builder struct {
	list    ShoppingList
	amounts []amount
	dirty   []bool
	index   map[string]int
}

func newBuilder(list ShoppingList) *builder {
	b := &builder{
		list:    list.clone(),
		amounts: make([]amount, len(list.Items)),
		dirty:   make([]bool, len(list.Items)),
		index:   make(map[string]int, len(list.Items)),
	}
	for i, it := range b.list.Items {
		b.amounts[i].add(it.Quantity)
		key := mergeKey(it.Name, it.Unit)
		if _, ok := b.index[key]; !ok {
			b.index[key] = i
		}
	}
	return b
}

func (b *builder) addRecipe(r recipe.Recipe, servings int) {
	factor := 1.0
	if r.Servings > 0 && servings > 0 {
		factor = float64(servings) / float64(r.Servings)
	}
	for _, ing := range r.Ingredients {
		b.addIngredient(ing, r.ID, factor)
	}
}

func (b *builder) addIngredient(ing recipe.Ingredient, recipeID string, factor float64) {
	key := mergeKey(ing.Name, ing.Unit)
	i, ok := b.index[key]
	if !ok {
		i = len(b.list.Items)
		b.index[key] = i
		b.list.Items = append(b.list.Items, Item{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(ing.Name),
			Unit:      strings.TrimSpace(ing.Unit),
			Category:  ing.Category,
			RecipeIDs: []string{},
		})
		b.amounts = append(b.amounts, amount{})
		b.dirty = append(b.dirty, false)
	}

	if v, numeric := ParseQuantity(ing.Quantity); numeric {
		b.amounts[i].total += v * factor
		b.amounts[i].hasTotal = true
	} else {
		b.amounts[i].add(ing.Quantity)
	}
	b.dirty[i] = true

	item := &b.list.Items[i]
	for _, id := range item.RecipeIDs {
		if id == recipeID {
			return
		}
	}
	item.RecipeIDs = append(item.RecipeIDs, recipeID)
}

func (b *builder) build() ShoppingList {
	changed := false
	for i := range b.list.Items {
		if b.dirty[i] {
			b.list.Items[i].Quantity = b.amounts[i].String()
			changed = true
		}
	}
	if changed || b.list.UpdatedAt.IsZero() {
		b.list.UpdatedAt = time.Now().UTC()
	}
	return b.list
}
