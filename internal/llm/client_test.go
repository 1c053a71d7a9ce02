package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
)

func TestNewClientProviderSelection(t *testing.T) {
	t.Run("rules has no client", func(t *testing.T) {
		cfg := config.Default()
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if client != nil {
			t.Errorf("got %T, want nil for the rules provider", client)
		}
	})

	t.Run("anthropic requires a key", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExtractorProvider = "anthropic"
		if _, err := NewClient(cfg); err == nil {
			t.Error("want error for anthropic without a key")
		}

		cfg.AnthropicKey = "sk-test"
		cfg.ExtractorTimeoutSeconds = 12
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		a, ok := client.(*Anthropic)
		if !ok {
			t.Fatalf("got %T, want *Anthropic", client)
		}
		if a.client.Timeout != 12*time.Second {
			t.Errorf("timeout = %v, want the configured extractor timeout", a.client.Timeout)
		}
	})

	t.Run("ollama", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExtractorProvider = "ollama"
		cfg.ExtractorTimeoutSeconds = 12
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		o, ok := client.(*Ollama)
		if !ok {
			t.Fatalf("got %T, want *Ollama", client)
		}
		if o.client.Timeout != 12*time.Second {
			t.Errorf("timeout = %v, want the configured extractor timeout", o.client.Timeout)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.ExtractorProvider = "mystery"
		if _, err := NewClient(cfg); err == nil {
			t.Error("want error for an unknown provider")
		}
	})
}

func TestExtractionPromptShape(t *testing.T) {
	prompt := ExtractionPrompt("USER: I take lisinopril every morning")

	for _, want := range []string{"json", "confidence", "memory_type", "base_importance", "lisinopril"} {
		if !strings.Contains(strings.ToLower(prompt), want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
