// Package ai wraps the external reasoning service that actually produces
// findings. The analysis core never imports this package: it sees only
// opaque types.Task handles, and the scheduler owns retries, so calls
// here surface raw errors for classification.
package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Model tiers. Analysis prompts carry full trace excerpts and need the
// deeper model; the cheap model covers smoke checks.
const (
	ModelDefault = "claude-sonnet-4-5-20250929"
	ModelSimple  = "claude-3-5-haiku-20241022"
)

// GetModel returns the analysis model, honoring PERFSLEUTH_MODEL.
func GetModel() string {
	if model := os.Getenv("PERFSLEUTH_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// Supervisor issues prompts to the reasoning service.
type Supervisor struct {
	client *anthropic.Client
	model  string
}

// Config holds supervisor configuration.
type Config struct {
	APIKey string // if empty, read from ANTHROPIC_API_KEY
	Model  string // if empty, GetModel()
}

// NewSupervisor creates the service wrapper.
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = GetModel()
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Supervisor{client: &client, model: model}, nil
}

// Complete sends one prompt and returns the concatenated text blocks.
// Errors are returned raw; the scheduler classifies and retries them.
func (s *Supervisor) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
