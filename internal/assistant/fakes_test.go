package assistant

import (
	"context"
	"strings"
	"sync"

	"chefitup/internal/llm"
	"chefitup/internal/shared"
)

// scriptedGenerator answers by matching a marker in the prompt.
type scriptedGenerator struct {
	mu      sync.Mutex
	answers map[string]scriptedAnswer
	prompts []string
}

type scriptedAnswer struct {
	content string
	err     error
}

func newScripted() *scriptedGenerator {
	return &scriptedGenerator{answers: map[string]scriptedAnswer{}}
}

func (g *scriptedGenerator) on(marker, content string, err error) *scriptedGenerator {
	g.answers[marker] = scriptedAnswer{content: content, err: err}
	return g
}

func (g *scriptedGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	for marker, a := range g.answers {
		if strings.Contains(prompt, marker) {
			if a.err != nil {
				return llm.ContentResponse{}, a.err
			}
			return llm.ContentResponse{
				Content: a.content,
				Usage:   shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Model: "fake"},
			}, nil
		}
	}
	return llm.ContentResponse{Content: "{}"}, nil
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type recordedCall struct {
	meta shared.AgentMeta
	err  error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
	tiers []string
}

func (r *fakeRecorder) RecordAgent(_ context.Context, meta shared.AgentMeta, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{meta: meta, err: err})
}

func (r *fakeRecorder) ObserveSearch(tier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers = append(r.tiers, tier)
}

const (
	markerGenerate = "Create one detailed recipe"
	markerImport   = "Extract the recipe from the web page"
	markerExtract  = "Extract search parameters"
	markerRank     = "Pick the recipes that best match"
)

const validRecipeJSON = `{
  "title": "Zucchini Noodle Stir Fry",
  "description": "Low carb noodles with crisp vegetables.",
  "prepTime": 10,
  "cookTime": 12,
  "servings": 2,
  "difficulty": "Easy",
  "cuisineType": "Asian",
  "dietaryRestrictions": ["vegan", "low-carb"],
  "ingredients": [
    {"name": "zucchini", "quantity": 2, "unit": "", "category": "Produce"},
    {"name": "soy sauce", "quantity": "1 1/2", "unit": "tbsp"}
  ],
  "instructions": ["Spiralize the zucchini.", "Stir fry everything for 5 minutes."],
  "nutritionInfo": {"calories": 180, "protein": 6, "carbs": 14, "fat": 9, "glycemicIndex": 15}
}`
