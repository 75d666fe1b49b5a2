package mealplan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Day is a day of the planning week.
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Days lists the week in plan order, starting on Monday.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Slot is a meal slot within a day.
type Slot string

const (
	Breakfast Slot = "breakfast"
	Lunch     Slot = "lunch"
	Dinner    Slot = "dinner"
)

// Slots lists the meal slots in display order.
var Slots = []Slot{Breakfast, Lunch, Dinner}

var (
	ErrInvalidWeekStart = errors.New("week start must be a Monday at 00:00 UTC")
	ErrInvalidServings  = errors.New("servings must be a positive integer")
	ErrInvalidSlot      = errors.New("unknown day or meal slot")
	ErrMissingUser      = errors.New("user id is required")
	ErrMissingRecipe    = errors.New("recipe id is required")
	ErrUnknownRecipe    = errors.New("unknown recipe")
)

// PlannedMeal is a recipe placed in a slot with a servings count.
type PlannedMeal struct {
	RecipeID string `json:"recipe_id"`
	Servings int    `json:"servings"`
}

// DayPlan maps each slot of a day to its meal. A nil meal is an unset slot.
type DayPlan map[Slot]*PlannedMeal

// MealPlan is one user's 7x3 grid for a single week.
type MealPlan struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	WeekStart time.Time       `json:"week_start"`
	Days      map[Day]DayPlan `json:"days"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New returns an empty plan with every day and slot present and unset.
func New(userID string, weekStart time.Time) MealPlan {
	p := MealPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekStart: weekStart,
		Days:      make(map[Day]DayPlan, len(Days)),
	}
	p.fill()
	return p
}

// fill adds any missing day or slot so the grid is always complete.
func (p *MealPlan) fill() {
	if p.Days == nil {
		p.Days = make(map[Day]DayPlan, len(Days))
	}
	for _, d := range Days {
		if p.Days[d] == nil {
			p.Days[d] = make(DayPlan, len(Slots))
		}
		for _, s := range Slots {
			if _, ok := p.Days[d][s]; !ok {
				p.Days[d][s] = nil
			}
		}
	}
}

// Meal returns the meal in a slot, or nil when unset.
func (p MealPlan) Meal(day Day, slot Slot) *PlannedMeal {
	dp, ok := p.Days[day]
	if !ok {
		return nil
	}
	return dp[slot]
}

// Clone returns a deep copy that shares no maps or meals with p.
func (p MealPlan) Clone() MealPlan {
	c := p
	c.Days = make(map[Day]DayPlan, len(p.Days))
	for d, dp := range p.Days {
		cdp := make(DayPlan, len(dp))
		for s, m := range dp {
			if m != nil {
				mc := *m
				cdp[s] = &mc
			} else {
				cdp[s] = nil
			}
		}
		c.Days[d] = cdp
	}
	return c
}

// ScheduledMeal is a set slot together with its position in the week.
type ScheduledMeal struct {
	Day  Day
	Slot Slot
	PlannedMeal
}

// Meals returns every set slot, Monday to Sunday and breakfast to dinner.
func (p MealPlan) Meals() []ScheduledMeal {
	var out []ScheduledMeal
	for _, d := range Days {
		for _, s := range Slots {
			if m := p.Meal(d, s); m != nil {
				out = append(out, ScheduledMeal{Day: d, Slot: s, PlannedMeal: *m})
			}
		}
	}
	return out
}

// IsEmpty reports whether no slot is set.
func (p MealPlan) IsEmpty() bool {
	return len(p.Meals()) == 0
}

// ParseDay accepts a day name in any case, e.g. "Monday" or "mon".
func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Days {
		if s == string(d) || (len(s) >= 3 && strings.HasPrefix(string(d), s)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: day %q", ErrInvalidSlot, s)
}

// ParseSlot accepts a slot name in any case.
func ParseSlot(s string) (Slot, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, sl := range Slots {
		if s == string(sl) {
			return sl, nil
		}
	}
	return "", fmt.Errorf("%w: slot %q", ErrInvalidSlot, s)
}

func validDay(d Day) bool {
	for _, x := range Days {
		if x == d {
			return true
		}
	}
	return false
}

func validSlot(s Slot) bool {
	for _, x := range Slots {
		if x == s {
			return true
		}
	}
	return false
}
