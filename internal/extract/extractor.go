// Package extract turns user interactions into memory draft candidates.
//
// Two extractors implement the same port: an LLM-backed one and a
// rule-based fallback. The caller picks the strategy; an extractor that
// fails or times out is treated upstream as having produced zero drafts.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/llm"
	"github.com/mnemo-ai/mnemo/internal/memory"
)

// Interaction is one exchange between the user and the assistant.
type Interaction struct {
	ID         string `json:"id"`
	UserInput  string `json:"user_input"`
	Response   string `json:"response"`
	ToolResult string `json:"tool_result,omitempty"`
}

// Extractor proposes zero or more memory drafts for an interaction.
type Extractor interface {
	ExtractCandidates(ctx context.Context, in Interaction) ([]memory.Draft, error)
}

// New selects the extractor for the configured provider. LLM providers get
// the rule extractor as an implicit degraded path only at the call site,
// never inside the extractor itself.
func New(cfg config.Config, client llm.Client) Extractor {
	if cfg.ExtractorProvider == "rules" || client == nil {
		return NewRuleExtractor(cfg)
	}
	return NewLLMExtractor(cfg, client)
}

// LLMExtractor prompts a completion model and parses its JSON draft list.
type LLMExtractor struct {
	cfg    config.Config
	client llm.Client
}

// NewLLMExtractor creates an LLM-backed extractor.
func NewLLMExtractor(cfg config.Config, client llm.Client) *LLMExtractor {
	return &LLMExtractor{cfg: cfg, client: client}
}

// ExtractCandidates asks the model for drafts and sanitizes what comes
// back. LLM errors and timeouts propagate; the caller decides whether to
// fall back or skip memory creation for the interaction.
func (e *LLMExtractor) ExtractCandidates(ctx context.Context, in Interaction) ([]memory.Draft, error) {
	condensed := condense(in)
	if condensed == "" {
		return nil, nil
	}

	resp, err := e.client.Complete(ctx, llm.ExtractionPrompt(condensed))
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	raw, err := parseExtractionResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	drafts := make([]memory.Draft, 0, len(raw))
	for _, d := range raw {
		clean, err := sanitizeDraft(d, e.cfg)
		if err != nil {
			continue // bad candidate, not a failed extraction
		}
		drafts = append(drafts, clean)
	}
	return drafts, nil
}

// condense flattens an interaction into prompt text, skipping empty parts.
func condense(in Interaction) string {
	var b strings.Builder
	if s := strings.TrimSpace(in.UserInput); s != "" {
		b.WriteString("USER: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(in.Response); s != "" {
		b.WriteString("ASSISTANT: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(in.ToolResult); s != "" {
		b.WriteString("TOOL RESULT: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// parseExtractionResponse extracts a JSON array from the LLM response.
// The response might contain markdown code fences or other wrapper text.
func parseExtractionResponse(content string) ([]memory.Draft, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var drafts []memory.Draft
	if err := json.Unmarshal([]byte(content[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("unmarshal drafts: %w", err)
	}
	return drafts, nil
}

// sanitizeDraft checks a draft for obvious garbage and normalizes its
// fields. Returns an error if the draft should be rejected outright.
func sanitizeDraft(d memory.Draft, cfg config.Config) (memory.Draft, error) {
	d.Content = strings.TrimSpace(d.Content)
	if d.Content == "" {
		return d, fmt.Errorf("empty content")
	}

	if !memory.ValidTypes[d.Type] {
		return d, fmt.Errorf("invalid memory type %q", d.Type)
	}

	if d.Confidence < 0 {
		d.Confidence = 0
	}
	if d.Confidence > 1 {
		d.Confidence = 1
	}
	if d.BaseImportance < 0 {
		d.BaseImportance = 0
	}
	if d.BaseImportance > 10 {
		d.BaseImportance = 10
	}

	d.Category = strings.ToLower(strings.TrimSpace(d.Category))

	tags := make([]string, 0, len(d.SuggestedTags))
	for _, t := range d.SuggestedTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > cfg.MaxSuggestedTagsPerMemory {
		tags = tags[:cfg.MaxSuggestedTagsPerMemory]
	}
	d.SuggestedTags = tags

	return d, nil
}
