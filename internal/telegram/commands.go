package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/assistant"
	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"
	"chefitup/internal/shopping"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// chat is one incoming command's conversation.
type chat struct {
	bot  *Bot
	id   int64
	user int64
}

func (c *chat) userID() string {
	return fmt.Sprintf("telegram-%d", c.user)
}

func (c *chat) week() time.Time {
	return mealplan.WeekStart(c.bot.now())
}

func (c *chat) reply(text string) {
	msg := tgbotapi.NewMessage(c.id, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.api.Send(msg); err != nil {
		c.bot.logger.Error("failed to send reply", zap.Int64("chat_id", c.id), zap.Error(err))
	}
}

func (c *chat) withTimeout(run func(ctx context.Context) string) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	c.reply(run(ctx))
}

// failure turns err into a chat message, logging what the user can't act on.
func (c *chat) failure(action string, err error) string {
	var provider *assistant.ProviderError
	switch {
	case errors.Is(err, context.Canceled):
		return "⏭ Superseded by a newer request."
	case errors.Is(err, assistant.ErrProviderUnavailable):
		return "🤖 The AI assistant is not configured right now."
	case errors.Is(err, recipe.ErrNotFound), errors.Is(err, mealplan.ErrUnknownRecipe):
		return "🤷 I don't know that recipe. Try /search first."
	case errors.Is(err, shopping.ErrItemNotFound):
		return "🤷 That item is no longer on your list."
	case errors.Is(err, app.ErrNothingToExport):
		return "🛒 Your list has nothing left to buy."
	case errors.Is(err, assistant.ErrInvalidURL), errors.Is(err, assistant.ErrEmptyPrompt),
		errors.Is(err, mealplan.ErrInvalidServings), errors.Is(err, mealplan.ErrInvalidSlot),
		errors.Is(err, mealplan.ErrMissingRecipe), errors.Is(err, shopping.ErrEmptyName):
		return "⚠️ " + capitalize(err.Error())
	case errors.As(err, &provider):
		c.bot.sendAdminAlert(fmt.Sprintf("⚠️ *Provider failure*\nAgent: %s\n`%s`", provider.Agent, clean(provider.Err.Error())))
	}

	c.bot.logger.Error("command failed", zap.String("action", action), zap.Int64("chat_id", c.id), zap.Error(err))
	return fmt.Sprintf("❌ *Error %s:*\n```\n%s\n```", action, clean(err.Error()))
}

func (c *chat) search(ctx context.Context, query string) string {
	res := c.bot.svc.SearchRecipes(ctx, query)
	if ctx.Err() != nil {
		return c.failure("searching", ctx.Err())
	}
	return formatSearch(query, res)
}

func (c *chat) generate(ctx context.Context, prompt string) string {
	r, err := c.bot.svc.GenerateRecipe(ctx, prompt)
	if err != nil {
		return c.failure("generating recipe", err)
	}
	return "✅ *Recipe created!*\n\n" + formatRecipe(r)
}

func (c *chat) importRecipe(ctx context.Context, url string) string {
	r, err := c.bot.svc.ImportRecipe(ctx, url)
	if err != nil {
		return c.failure("importing recipe", err)
	}
	return "✅ *Recipe imported!*\n\n" + formatRecipe(r)
}

func (c *chat) showRecipe(id string) string {
	if id == "" {
		return "Usage: /recipe <id>"
	}
	r, err := c.bot.svc.Recipe(id)
	if err != nil {
		return c.failure("loading recipe", err)
	}
	return formatRecipe(r)
}

func (c *chat) showPlan(ctx context.Context, args string) string {
	week := c.week()
	switch {
	case args == "":
	case strings.EqualFold(args, "next"):
		week = mealplan.NextWeekStart(c.bot.now())
	default:
		w, err := mealplan.ParseWeek(args)
		if err != nil {
			return "Usage: /plan [next | YYYY-MM-DD]"
		}
		week = w
	}

	plan, err := c.bot.svc.MealPlan(ctx, c.userID(), week)
	if err != nil {
		return c.failure("loading plan", err)
	}
	return formatPlan(plan, c.title)
}

// title resolves a recipe id for display.
func (c *chat) title(id string) string {
	r, err := c.bot.svc.Recipe(id)
	if err != nil {
		return id
	}
	return r.Title
}

func (c *chat) addMeal(ctx context.Context, args string) string {
	const usage = "Usage: /add <day> <slot> <recipe id> [servings]"
	fields := strings.Fields(args)
	if len(fields) < 3 || len(fields) > 4 {
		return usage
	}
	day, slot, err := parseDaySlot(fields[0], fields[1])
	if err != nil {
		return c.failure("adding meal", err)
	}
	servings := 2
	if len(fields) == 4 {
		if servings, err = strconv.Atoi(fields[3]); err != nil {
			return usage
		}
	}

	plan, err := c.bot.svc.SetMeal(ctx, c.userID(), c.week(), day, slot, fields[2], servings)
	if err != nil {
		return c.failure("adding meal", err)
	}
	return formatPlan(plan, c.title)
}

func (c *chat) removeMeal(ctx context.Context, args string) string {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "Usage: /remove <day> <slot>"
	}
	day, slot, err := parseDaySlot(fields[0], fields[1])
	if err != nil {
		return c.failure("removing meal", err)
	}

	plan, err := c.bot.svc.ClearMeal(ctx, c.userID(), c.week(), day, slot)
	if err != nil {
		return c.failure("removing meal", err)
	}
	return formatPlan(plan, c.title)
}

func (c *chat) showList(ctx context.Context, args string) string {
	var (
		list shopping.ShoppingList
		err  error
	)
	if strings.EqualFold(args, "generate") {
		list, err = c.bot.svc.GenerateShoppingList(ctx, c.userID(), c.week())
	} else {
		list, err = c.bot.svc.ShoppingList(ctx, c.userID(), c.week())
	}
	if err != nil {
		return c.failure("loading shopping list", err)
	}
	return formatList(list)
}

func (c *chat) addItem(ctx context.Context, args string) string {
	name, quantity, unit := parseItem(args)
	if name == "" {
		return "Usage: /item [qty] [unit] <name>"
	}
	list, err := c.bot.svc.AddShoppingItem(ctx, c.userID(), c.week(), name, quantity, unit)
	if err != nil {
		return c.failure("adding item", err)
	}
	return formatList(list)
}

func (c *chat) checkItem(ctx context.Context, args string) string {
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		return "Usage: /check <number>"
	}
	list, err := c.bot.svc.ShoppingList(ctx, c.userID(), c.week())
	if err != nil {
		return c.failure("loading shopping list", err)
	}
	items := numbered(list)
	if n > len(items) {
		return fmt.Sprintf("Your list has %d items.", len(items))
	}

	list, err = c.bot.svc.ToggleShoppingItem(ctx, c.userID(), c.week(), items[n-1].ID)
	if err != nil {
		return c.failure("checking item", err)
	}
	return formatList(list)
}

func (c *chat) clearChecked(ctx context.Context) string {
	list, err := c.bot.svc.ClearCheckedItems(ctx, c.userID(), c.week())
	if err != nil {
		return c.failure("clearing items", err)
	}
	return formatList(list)
}

func (c *chat) export(ctx context.Context, title string) string {
	link, err := c.bot.svc.ExportShoppingList(ctx, c.userID(), c.week(), title)
	if err != nil {
		return c.failure("exporting list", err)
	}
	text := fmt.Sprintf("🥕 *Ready on Instacart*\n%s", link.URL)
	if link.Mock {
		text += "\n_(mock link)_"
	}
	return text
}

func (c *chat) metrics(ctx context.Context) string {
	report, err := c.bot.svc.Metrics(ctx, 7)
	if err != nil {
		return c.failure("fetching metrics", err)
	}
	return formatMetrics(report)
}

func parseDaySlot(d, s string) (mealplan.Day, mealplan.Slot, error) {
	day, err := mealplan.ParseDay(d)
	if err != nil {
		return "", "", err
	}
	slot, err := mealplan.ParseSlot(s)
	if err != nil {
		return "", "", err
	}
	return day, slot, nil
}

// parseItem reads "[qty] [unit] name". A unit is only taken when a quantity
// comes first and at least one word is left for the name.
func parseItem(args string) (name, quantity, unit string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", "", ""
	}
	if _, ok := shopping.ParseQuantity(fields[0]); !ok || len(fields) == 1 {
		return strings.Join(fields, " "), "", ""
	}
	quantity, fields = fields[0], fields[1:]
	if len(fields) >= 2 {
		unit, fields = fields[0], fields[1:]
	}
	return strings.Join(fields, " "), quantity, unit
}
