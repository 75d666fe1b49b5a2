// Package telegram is the chat front end of the meal planner.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chefitup/internal/app"
	"chefitup/internal/assistant"
	"chefitup/internal/config"
	"chefitup/internal/instacart"
	"chefitup/internal/logging"
	"chefitup/internal/mealplan"
	"chefitup/internal/recipe"
	"chefitup/internal/shopping"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const commandTimeout = 2 * time.Minute

// Service is what the bot needs from the application. *app.App implements it.
type Service interface {
	SearchRecipes(ctx context.Context, query string) assistant.SearchResult
	Recipe(id string) (recipe.Recipe, error)
	GenerateRecipe(ctx context.Context, prompt string) (recipe.Recipe, error)
	ImportRecipe(ctx context.Context, url string) (recipe.Recipe, error)

	MealPlan(ctx context.Context, userID string, week time.Time) (mealplan.MealPlan, error)
	SetMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot, recipeID string, servings int) (mealplan.MealPlan, error)
	ClearMeal(ctx context.Context, userID string, week time.Time, day mealplan.Day, slot mealplan.Slot) (mealplan.MealPlan, error)

	GenerateShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	ShoppingList(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	AddShoppingItem(ctx context.Context, userID string, week time.Time, name, quantity, unit string) (shopping.ShoppingList, error)
	ToggleShoppingItem(ctx context.Context, userID string, week time.Time, itemID string) (shopping.ShoppingList, error)
	ClearCheckedItems(ctx context.Context, userID string, week time.Time) (shopping.ShoppingList, error)
	ExportShoppingList(ctx context.Context, userID string, week time.Time, title string) (instacart.Link, error)

	Metrics(ctx context.Context, days int) (app.MetricsReport, error)
}

var _ Service = (*app.App)(nil)

// sender is the part of the Telegram API the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps the Telegram API and the meal planner.
type Bot struct {
	api      sender
	svc      Service
	logger   *zap.Logger
	allowed  map[int64]bool
	adminID  int64
	requests *tracker
	now      func() time.Time
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc Service, logger *zap.Logger) (*Bot, error) {
	logger = logging.OrNop(logger)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("authorized on telegram", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %q: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	logger.Info("webhook set", zap.String("description", resp.Description))

	return newBot(api, svc, cfg, logger), nil
}

func newBot(api sender, svc Service, cfg *config.Config, logger *zap.Logger) *Bot {
	allowed := make(map[int64]bool, len(cfg.TelegramAllowedUserIDs))
	for _, id := range cfg.TelegramAllowedUserIDs {
		allowed[id] = true
	}
	return &Bot{
		api:      api,
		svc:      svc,
		logger:   logging.OrNop(logger),
		allowed:  allowed,
		adminID:  cfg.AdminTelegramID,
		requests: newTracker(),
		now:      time.Now,
	}
}

// Handler serves the webhook and a health check.
func (b *Bot) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook", b.handleWebhook)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("failed to parse update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.allowed[msg.From.ID] {
		b.logger.Warn("unauthorized access attempt",
			zap.Int64("telegram_user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		return
	}

	go b.processMessage(msg)
}

// processMessage routes one message to its command.
func (b *Bot) processMessage(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	cmd, args := msg.Command(), strings.TrimSpace(msg.CommandArguments())
	if cmd == "" {
		if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
			cmd, args = "import", text
		} else {
			cmd, args = "search", text
		}
	}

	c := &chat{bot: b, id: msg.Chat.ID, user: msg.From.ID}
	switch cmd {
	case "start", "help":
		c.reply(helpText)
	case "search":
		b.runTracked(c, "🔎 *Searching...*", func(ctx context.Context) string { return c.search(ctx, args) })
	case "generate":
		b.runTracked(c, "🧑‍🍳 *Cooking up a recipe...*", func(ctx context.Context) string { return c.generate(ctx, args) })
	case "import":
		b.runTracked(c, "✂️ *Importing recipe...*", func(ctx context.Context) string { return c.importRecipe(ctx, args) })
	case "recipe":
		c.reply(c.showRecipe(args))
	case "plan":
		c.withTimeout(func(ctx context.Context) string { return c.showPlan(ctx, args) })
	case "add":
		c.withTimeout(func(ctx context.Context) string { return c.addMeal(ctx, args) })
	case "remove":
		c.withTimeout(func(ctx context.Context) string { return c.removeMeal(ctx, args) })
	case "list":
		c.withTimeout(func(ctx context.Context) string { return c.showList(ctx, args) })
	case "item":
		c.withTimeout(func(ctx context.Context) string { return c.addItem(ctx, args) })
	case "check":
		c.withTimeout(func(ctx context.Context) string { return c.checkItem(ctx, args) })
	case "clear":
		c.withTimeout(c.clearChecked)
	case "export":
		c.withTimeout(func(ctx context.Context) string { return c.export(ctx, args) })
	case "metrics":
		if msg.From.ID != b.adminID {
			c.reply("⛔ *Access Denied*: Admin only.")
			return
		}
		c.withTimeout(c.metrics)
	default:
		c.reply(fmt.Sprintf("Unknown command /%s. Send /help for the list.", cmd))
	}
}

// runTracked sends a status message, runs work as the chat's current
// request and edits the status with the result while it is still current.
func (b *Bot) runTracked(c *chat, status string, work func(ctx context.Context) string) {
	reply := tgbotapi.NewMessage(c.id, status)
	reply.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(reply)
	if err != nil {
		b.logger.Error("failed to send initial reply", zap.Int64("chat_id", c.id), zap.Error(err))
		return
	}

	ctx, token, done := b.requests.begin(c.id, commandTimeout)
	defer done()

	text := work(ctx)
	if !b.requests.current(c.id, token) {
		b.logger.Info("dropping superseded result", zap.Int64("chat_id", c.id))
		return
	}

	edit := tgbotapi.NewEditMessageText(c.id, sent.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("failed to deliver result", zap.Int64("chat_id", c.id), zap.Error(err))
	}
}

func (b *Bot) sendAdminAlert(text string) {
	if b.adminID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(b.adminID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send admin alert", zap.Error(err))
	}
}

const helpText = `🍽 *ChefItUp*

*Recipes*
/search <what you feel like>
/recipe <id>
/generate <idea>
/import <url>

*This week*
/plan [next | YYYY-MM-DD]
/add <day> <slot> <recipe id> [servings]
/remove <day> <slot>

*Shopping list*
/list [generate]
/item [qty] [unit] <name>
/check <number>
/clear
/export [title]`
