// Package assistant holds the LLM-backed recipe features: generation from a
// prompt, import from a web page and tiered free-text search.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"chefitup/internal/llm"
	"chefitup/internal/shared"
)

// ErrProviderUnavailable is returned when no LLM provider is configured.
var ErrProviderUnavailable = errors.New("AI provider is not configured")

// ProviderError wraps a failed call to the LLM provider.
type ProviderError struct {
	Agent string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider call failed: %v", e.Agent, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError reports LLM output that is not the expected JSON shape.
type ParseError struct {
	Agent string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %v", e.Agent, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MetricsRecorder receives per-call metadata. metrics.Recorder implements it.
type MetricsRecorder interface {
	RecordAgent(ctx context.Context, meta shared.AgentMeta, err error)
	ObserveSearch(tier string)
}

type noRecorder struct{}

func (noRecorder) RecordAgent(context.Context, shared.AgentMeta, error) {}
func (noRecorder) ObserveSearch(string)                                 {}

func orNoRecorder(t MetricsRecorder) MetricsRecorder {
	if t == nil {
		return noRecorder{}
	}
	return t
}

// call runs one prompt through gen and reports it to telemetry.
func call(ctx context.Context, gen llm.TextGenerator, tel MetricsRecorder, agent, prompt string) (string, error) {
	start := time.Now()
	resp, err := gen.GenerateContent(ctx, prompt)
	tel.RecordAgent(ctx, shared.AgentMeta{
		AgentName: agent,
		Usage:     resp.Usage,
		Latency:   time.Since(start),
	}, err)
	if err != nil {
		return "", &ProviderError{Agent: agent, Err: err}
	}
	return resp.Content, nil
}

// stripFences removes a leading ``` line (with optional language tag) and a
// trailing ``` from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func render(name, tmplText string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(tmplText)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
