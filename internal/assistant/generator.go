package assistant

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"chefitup/internal/llm"
	"chefitup/internal/logging"
	"chefitup/internal/recipe"

	"go.uber.org/zap"
)

const (
	agentGenerator = "recipe_generator"

	generatedIDPrefix = "generated-"
)

// ErrEmptyPrompt is returned when Generate is called without a request.
var ErrEmptyPrompt = errors.New("recipe request is empty")

//go:embed generate_recipe_prompt.md
var generateRecipePrompt string

// Generator turns a free-text request into a new recipe.
type Generator struct {
	textGen  llm.TextGenerator
	recorder MetricsRecorder
	logger   *zap.Logger
}

// NewGenerator creates a Generator. textGen may be nil when no provider is
// configured; Generate then fails with ErrProviderUnavailable.
func NewGenerator(textGen llm.TextGenerator, recorder MetricsRecorder, logger *zap.Logger) *Generator {
	return &Generator{
		textGen:  textGen,
		recorder: orNoRecorder(recorder),
		logger:   logging.OrNop(logger),
	}
}

// Generate asks the model for a recipe matching request. The result is
// validated but not stored.
func (g *Generator) Generate(ctx context.Context, request string) (recipe.Recipe, error) {
	if g.textGen == nil {
		return recipe.Recipe{}, ErrProviderUnavailable
	}
	request = strings.TrimSpace(request)
	if request == "" {
		return recipe.Recipe{}, ErrEmptyPrompt
	}

	prompt, err := buildGenerateRecipePrompt(request)
	if err != nil {
		return recipe.Recipe{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	raw, err := call(ctx, g.textGen, g.recorder, agentGenerator, prompt)
	if err != nil {
		return recipe.Recipe{}, err
	}

	r, err := parseRecipeDraft(agentGenerator, raw, generatedIDPrefix)
	if err != nil {
		g.logger.Warn("generated recipe rejected", zap.Error(err), zap.Int("raw_len", len(raw)))
		return recipe.Recipe{}, err
	}

	g.logger.Info("recipe generated", zap.String("recipe_id", r.ID), zap.String("title", r.Title))
	return r, nil
}

func buildGenerateRecipePrompt(request string) (string, error) {
	return render("generate_recipe", generateRecipePrompt, struct{ Request string }{request})
}
