// Package narrative generates report prose for a diagnosis through an
// OpenAI-compatible chat completion API.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/aidiag/internal/model"
	"github.com/pavelanni/aidiag/internal/narrative/prompts"
)

// MinSummaryRunes is the shortest summary accepted from the model.
const MinSummaryRunes = 40

// ErrLowQuality is returned when the model's answer does not meet the
// quality bar. Callers fall back to the structured report.
var ErrLowQuality = errors.New("narrative below quality bar")

// Config holds the settings for a Client.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Variant  string
	Language string
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api      *openai.Client
	model    string
	variant  prompts.Variant
	language string
	prompts  *prompts.Set
	now      func() time.Time
}

// New creates a narrative client. An empty variant selects the standard one.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("narrative: model name is required")
	}
	variant := cfg.Variant
	if variant == "" {
		variant = string(prompts.Standard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("narrative: invalid prompt variant %q", variant)
	}
	set, err := prompts.Load(prompts.FS)
	if err != nil {
		return nil, fmt.Errorf("narrative: %w", err)
	}
	language := cfg.Language
	if language == "" {
		language = "Korean"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    cfg.Model,
		variant:  prompts.Variant(variant),
		language: language,
		prompts:  set,
		now:      time.Now,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// response is the JSON object the prompts ask the model for.
type response struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Opportunities   []string `json:"opportunities"`
	Threats         []string `json:"threats"`
	Recommendations []string `json:"recommendations"`
	Roadmap         []string `json:"roadmap"`
}

// Generate asks the model for a narrative of r. A reply that cannot be
// parsed or fails Check yields an error wrapping ErrLowQuality.
func (c *Client) Generate(ctx context.Context, r model.DiagnosisResult) (*model.Narrative, error) {
	systemPrompt, err := c.prompts.Build(c.variant, c.language, r)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Write the report for diagnosis " + r.DiagnosisID + "."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices: %w", ErrLowQuality)
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "diagnosis_id", r.DiagnosisID, "raw", raw)

	var parsed response
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse LLM response: %v: %w", err, ErrLowQuality)
	}

	modelName := resp.Model
	if modelName == "" {
		modelName = c.model
	}
	n := &model.Narrative{
		Summary:         strings.TrimSpace(parsed.Summary),
		Strengths:       clean(parsed.Strengths),
		Weaknesses:      clean(parsed.Weaknesses),
		Opportunities:   clean(parsed.Opportunities),
		Threats:         clean(parsed.Threats),
		Recommendations: clean(parsed.Recommendations),
		Roadmap:         clean(parsed.Roadmap),
		Model:           modelName,
		GeneratedAt:     c.now().UTC(),
	}
	if err := Check(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Ping verifies the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Check reports whether n is good enough to be presented as AI prose.
// The roadmap is optional; every other section must be present.
func Check(n *model.Narrative) error {
	if n == nil {
		return fmt.Errorf("no narrative: %w", ErrLowQuality)
	}
	if utf8.RuneCountInString(n.Summary) < MinSummaryRunes {
		return fmt.Errorf("summary shorter than %d characters: %w", MinSummaryRunes, ErrLowQuality)
	}
	required := []struct {
		name  string
		items []string
	}{
		{"strengths", n.Strengths},
		{"weaknesses", n.Weaknesses},
		{"opportunities", n.Opportunities},
		{"threats", n.Threats},
		{"recommendations", n.Recommendations},
	}
	for _, sec := range required {
		if len(sec.items) == 0 {
			return fmt.Errorf("section %s is empty: %w", sec.name, ErrLowQuality)
		}
	}
	return nil
}

func clean(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
