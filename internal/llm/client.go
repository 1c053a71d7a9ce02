// Package llm provides the completion client used by the LLM-backed
// memory extractor.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates an LLM client for the configured provider. The "rules"
// provider has no LLM behind it and returns nil. Both HTTP providers share
// the extractor timeout as their request deadline.
func NewClient(cfg config.Config) (Client, error) {
	timeout := time.Duration(cfg.ExtractorTimeoutSeconds) * time.Second
	switch cfg.ExtractorProvider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires MNEMO_ANTHROPIC_KEY")
		}
		return NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel, timeout), nil
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, timeout), nil
	case "rules":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.ExtractorProvider)
	}
}
