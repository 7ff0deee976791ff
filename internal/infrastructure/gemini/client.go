// Package gemini wraps the Google GenAI SDK with an ordered model fallback.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ErrNoModelAvailable is returned when every configured model candidate
// failed. Callers are expected to degrade, not abort.
var ErrNoModelAvailable = errors.New("all model candidates failed")

// Client calls the Gemini text API, trying a fixed ordered list of model
// identifiers. Availability and quota vary per model, so a failure on one
// candidate falls through to the next.
type Client struct {
	apiKey string
	models []string
}

// NewClient creates a new Gemini client. An empty apiKey is allowed and makes
// Configured() return false; Generate must not be called in that case.
func NewClient(apiKey string, models []string) *Client {
	return &Client{apiKey: apiKey, models: models}
}

// Configured reports whether a model credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Generate sends a single-turn prompt and returns the raw model text.
// Each model candidate is tried in order; any per-model error (not found,
// rate limited, transport failure, empty response) falls through to the next.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("gemini: no API key configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	for _, model := range c.models {
		resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			log.Warn().Err(err).Str("model", model).Msg("Model call failed, trying next candidate")
			continue
		}

		text := resp.Text()
		if text == "" {
			log.Warn().Str("model", model).Msg("Model returned empty response, trying next candidate")
			continue
		}

		return text, nil
	}

	return "", ErrNoModelAvailable
}
