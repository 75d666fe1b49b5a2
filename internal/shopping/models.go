package shopping

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ManualCategory is the category given to items a user adds by hand.
const ManualCategory = "Other"

var (
	ErrEmptyName     = errors.New("item name is required")
	ErrItemNotFound  = errors.New("shopping list item not found")
	ErrUnknownRecipe = errors.New("meal references an unknown recipe")
)

// Item is one line of a shopping list. RecipeIDs lists the recipes that
// contributed to it and is empty for manual items.
type Item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Quantity  string   `json:"quantity"`
	Unit      string   `json:"unit"`
	Category  string   `json:"category"`
	Checked   bool     `json:"checked"`
	RecipeIDs []string `json:"recipe_ids"`
}

// ShoppingList represents the shopping list for one user's week.
type ShoppingList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	WeekStart time.Time `json:"week_start"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryGroup is a display section of a list.
type CategoryGroup struct {
	Category string `json:"category"`
	Items    []Item `json:"items"`
}

// NewList returns an empty list for one user's week.
func NewList(userID string, weekStart time.Time) ShoppingList {
	return ShoppingList{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekStart: weekStart,
		Items:     []Item{},
	}
}

func (l ShoppingList) clone() ShoppingList {
	c := l
	c.Items = make([]Item, len(l.Items))
	for i, it := range l.Items {
		if it.RecipeIDs != nil {
			it.RecipeIDs = append(make([]string, 0, len(it.RecipeIDs)), it.RecipeIDs...)
		}
		c.Items[i] = it
	}
	return c
}

func (l ShoppingList) indexOf(id string) int {
	for i, it := range l.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// CheckedCount returns how many items are checked off.
func (l ShoppingList) CheckedCount() int {
	n := 0
	for _, it := range l.Items {
		if it.Checked {
			n++
		}
	}
	return n
}
