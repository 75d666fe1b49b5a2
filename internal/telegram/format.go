package telegram

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"chefitup/internal/app"
	"chefitup/internal/assistant"
	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"
	"chefitup/internal/shopping"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape makes user and model text safe inside legacy Markdown.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

// clean makes error text safe inside a code block.
func clean(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func formatSearch(query string, res assistant.SearchResult) string {
	var sb strings.Builder
	if query == "" {
		sb.WriteString("📚 *All recipes*\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("🔎 *Results for* _%s_\n\n", escape(query)))
	}
	if len(res.Recipes) == 0 {
		sb.WriteString("_Nothing matched. Try /generate to create one._")
		return sb.String()
	}
	for i, r := range res.Recipes {
		sb.WriteString(fmt.Sprintf("%d. *%s* (%d min)\n    `%s`\n", i+1, escape(r.Title), r.TotalTime(), r.ID))
	}
	sb.WriteString("\nSend /recipe <id> for details.")
	return sb.String()
}

func formatRecipe(r recipe.Recipe) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🍽 *%s*\n", escape(r.Title)))
	if r.Description != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", escape(r.Description)))
	}
	sb.WriteString(fmt.Sprintf("\n⏱ %d min prep, %d min cook · 👥 %d · %s", r.PrepTime, r.CookTime, r.Servings, r.Difficulty))
	if r.CuisineType != "" {
		sb.WriteString(" · " + escape(r.CuisineType))
	}
	sb.WriteString("\n")
	if len(r.DietaryRestrictions) > 0 {
		sb.WriteString("🌱 " + escape(strings.Join(r.DietaryRestrictions, ", ")) + "\n")
	}

	sb.WriteString("\n*Ingredients*\n")
	for _, ing := range r.Ingredients {
		sb.WriteString("• " + escape(itemText(ing.Quantity, ing.Unit, ing.Name)) + "\n")
	}
	sb.WriteString("\n*Steps*\n")
	for i, step := range r.Instructions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, escape(step)))
	}
	sb.WriteString(fmt.Sprintf("\nID: `%s`", r.ID))
	return sb.String()
}

func itemText(quantity, unit, name string) string {
	return strings.Join(strings.Fields(quantity+" "+unit+" "+name), " ")
}

func formatPlan(plan mealplan.MealPlan, title func(id string) string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Week of %s*\n\n", mealplan.FormatWeek(plan.WeekStart)))

	meals := plan.Meals()
	if len(meals) == 0 {
		sb.WriteString("_Nothing planned yet. Use /add to fill a slot._")
		return sb.String()
	}

	var day mealplan.Day
	for _, m := range meals {
		if m.Day != day {
			if day != "" {
				sb.WriteString("\n")
			}
			day = m.Day
			date := mealplan.DayDate(plan.WeekStart, day).Format("Jan 2")
			sb.WriteString(fmt.Sprintf("*%s* %s\n", capitalize(string(day)), date))
		}
		sb.WriteString(fmt.Sprintf("• %s: %s (%d servings)\n", m.Slot, escape(title(m.RecipeID)), m.Servings))
	}
	return sb.String()
}

// numbered returns items in display order, the order /check counts in.
func numbered(list shopping.ShoppingList) []shopping.Item {
	var items []shopping.Item
	for _, g := range shopping.GroupByCategory(list) {
		items = append(items, g.Items...)
	}
	return items
}

func formatList(list shopping.ShoppingList) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n")
	if len(list.Items) == 0 {
		sb.WriteString("\n_Empty. Send /list generate to build it from your plan._")
		return sb.String()
	}

	n := 0
	for _, g := range shopping.GroupByCategory(list) {
		sb.WriteString(fmt.Sprintf("\n*%s*\n", escape(g.Category)))
		for _, it := range g.Items {
			n++
			box := "▫️"
			if it.Checked {
				box = "✅"
			}
			sb.WriteString(fmt.Sprintf("%d. %s %s\n", n, box, escape(itemText(it.Quantity, it.Unit, it.Name))))
		}
	}
	if checked := list.CheckedCount(); checked > 0 {
		sb.WriteString(fmt.Sprintf("\n%d of %d checked", checked, len(list.Items)))
	}
	return sb.String()
}

func formatMetrics(report app.MetricsReport) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(report.Daily) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range report.Daily {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	if len(report.Agents) > 0 {
		sb.WriteString("\n🤖 *By Agent*\n")
		for _, a := range report.Agents {
			sb.WriteString(fmt.Sprintf("• %s: %d calls, %d tokens, %dms avg\n", escape(a.AgentName), a.Executions, a.TotalTokens, a.AvgLatencyMS))
		}
	}

	h := report.Health
	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", h.Uptime))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", h.Goroutines))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", h.DataDiskSize))
	return sb.String()
}
