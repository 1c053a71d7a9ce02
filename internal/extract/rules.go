package extract

import (
	"context"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/memory"
)

// RuleExtractor is the degraded fallback when no LLM is available. It
// scans the user's own words for durable-sounding statements and emits
// low-confidence drafts. Deliberately conservative: admission thresholds
// will still reject most of what it produces.
type RuleExtractor struct {
	cfg config.Config
}

// NewRuleExtractor creates a rule-based extractor.
func NewRuleExtractor(cfg config.Config) *RuleExtractor {
	return &RuleExtractor{cfg: cfg}
}

// rulePattern maps a leading phrase to the draft it seeds.
type rulePattern struct {
	prefix     string
	memType    memory.MemoryType
	confidence float64
	importance int
}

var rulePatterns = []rulePattern{
	{"remember that", memory.TypeFact, 0.9, 7},
	{"don't forget", memory.TypeFact, 0.9, 7},
	{"i prefer", memory.TypePreference, 0.75, 5},
	{"i'd rather", memory.TypePreference, 0.7, 4},
	{"i always", memory.TypeHabit, 0.7, 4},
	{"i never", memory.TypeHabit, 0.7, 4},
	{"every week", memory.TypeHabit, 0.65, 4},
	{"i'm allergic to", memory.TypeFact, 0.9, 9},
	{"my goal is", memory.TypeGoal, 0.75, 6},
	{"i want to", memory.TypeGoal, 0.6, 4},
	{"my birthday is", memory.TypeFact, 0.85, 6},
}

// minStatementChars filters out fragments too short to be worth keeping.
const minStatementChars = 12

// ExtractCandidates implements Extractor. It never returns an error: a
// rule pass either matches or it doesn't.
func (e *RuleExtractor) ExtractCandidates(ctx context.Context, in Interaction) ([]memory.Draft, error) {
	var drafts []memory.Draft
	for _, sentence := range splitSentences(in.UserInput) {
		lower := strings.ToLower(sentence)
		for _, p := range rulePatterns {
			idx := strings.Index(lower, p.prefix)
			if idx < 0 {
				continue
			}
			statement := strings.TrimSpace(sentence[idx:])
			if len(statement) < minStatementChars {
				continue
			}
			drafts = append(drafts, memory.Draft{
				Content:        statement,
				Confidence:     p.confidence,
				SuggestedTags:  keywordTags(statement, e.cfg.MaxSuggestedTagsPerMemory),
				Type:           p.memType,
				BaseImportance: p.importance,
			})
			break // one draft per sentence
		}
	}
	return drafts, nil
}

// splitSentences does a cheap split on sentence punctuation.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stopWords are skipped when deriving tags from a statement.
var stopWords = map[string]bool{
	"i": true, "my": true, "me": true, "the": true, "a": true, "an": true,
	"to": true, "that": true, "is": true, "are": true, "and": true,
	"remember": true, "forget": true, "prefer": true, "always": true,
	"never": true, "want": true, "dont": true, "don't": true,
}

// keywordTags picks up to max distinct non-stopword tokens as tags.
func keywordTags(statement string, max int) []string {
	var tags []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(statement)) {
		w = strings.Trim(w, ",.;:!?'\"")
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
		if len(tags) >= max {
			break
		}
	}
	return tags
}
