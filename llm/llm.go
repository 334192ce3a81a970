// Package llm asks a language model for a JSON document.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dannidrenovci/myriad-slides/config"
)

// ErrEmptyResponse is returned when the model answered without content.
var ErrEmptyResponse = errors.New("model returned no content")

// Completer returns the model's answer to prompt as a JSON text.
type Completer interface {
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// New returns the completer selected by cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.Model, nil)
	case "gemini":
		return NewGemini(ctx, cfg.GeminiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// Unavailable stands in when no provider is configured; every call fails
// with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return "", fmt.Errorf("ai provider unavailable: %w", u.Err)
}
