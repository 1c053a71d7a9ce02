package memory

import (
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// Admission decides which extracted drafts become stored memories.
type Admission struct {
	cfg    config.Config
	scorer *Scorer
}

// NewAdmission creates an Admission filter backed by the given scorer.
func NewAdmission(cfg config.Config, scorer *Scorer) *Admission {
	return &Admission{cfg: cfg, scorer: scorer}
}

// Admit filters drafts down to the memories worth creating for one
// interaction. Drafts below the confidence threshold are dropped, the rest
// are scored, drafts below the importance floor are dropped, and the
// survivors are capped at MaxMemoriesPerInteraction, highest importance
// first. Ties break on confidence, then original draft order.
//
// Zero drafts in (extractor down or silent) means zero memories out; that
// is not an error. Persisting the result is the caller's job.
func (a *Admission) Admit(userID string, drafts []Draft, now time.Time) []Memory {
	type scored struct {
		draft      Draft
		importance int
		order      int
	}

	accepted := make([]scored, 0, len(drafts))
	for i, d := range drafts {
		if d.Confidence < a.cfg.MemoryCreationConfidenceThreshold {
			continue
		}
		importance := a.scorer.Score(d)
		if importance < a.cfg.MinImportanceForMemory {
			continue
		}
		accepted = append(accepted, scored{draft: d, importance: importance, order: i})
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].importance != accepted[j].importance {
			return accepted[i].importance > accepted[j].importance
		}
		if accepted[i].draft.Confidence != accepted[j].draft.Confidence {
			return accepted[i].draft.Confidence > accepted[j].draft.Confidence
		}
		return accepted[i].order < accepted[j].order
	})

	if len(accepted) > a.cfg.MaxMemoriesPerInteraction {
		accepted = accepted[:a.cfg.MaxMemoriesPerInteraction]
	}

	memories := make([]Memory, 0, len(accepted))
	for _, s := range accepted {
		// Suggested tags are only trusted above their own confidence bar; a
		// memory from a shakier draft is stored untagged rather than
		// mis-indexed.
		var tags []string
		if s.draft.Confidence >= a.cfg.TagSuggestionConfidenceThreshold {
			tags = dedupeTags(s.draft.SuggestedTags)
			if len(tags) > a.cfg.MaxSuggestedTagsPerMemory {
				tags = tags[:a.cfg.MaxSuggestedTagsPerMemory]
			}
		}
		memories = append(memories, Memory{
			UserID:         userID,
			Content:        s.draft.Content,
			Tags:           tags,
			Type:           s.draft.Type,
			Category:       s.draft.Category,
			Importance:     s.importance,
			BaseImportance: s.draft.BaseImportance,
			Confidence:     s.draft.Confidence,
			CreatedAt:      now,
			State:          StateActive,
		})
	}
	return memories
}
