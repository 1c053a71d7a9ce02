// Package memory implements the long-term memory engine: importance
// scoring, draft admission, weighted retrieval ranking, similarity-based
// consolidation, and time-based lifecycle sweeps.
//
// Everything in this package is a pure or near-pure function of its
// inputs. Persistence, clocks, and LLM calls live with the caller.
package memory

import "time"

// MemoryType classifies what kind of knowledge a memory captures.
type MemoryType string

const (
	TypePreference MemoryType = "preference"
	TypeFact       MemoryType = "fact"
	TypePattern    MemoryType = "pattern"
	TypeEvent      MemoryType = "event"
	TypeHabit      MemoryType = "habit"
	TypeGoal       MemoryType = "goal"
)

// ValidTypes defines the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypePreference: true,
	TypeFact:       true,
	TypePattern:    true,
	TypeEvent:      true,
	TypeHabit:      true,
	TypeGoal:       true,
}

// LifecycleState tracks where a memory sits in its retention lifecycle.
// Transitions only move forward: active -> aging -> archived.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateAging    LifecycleState = "aging"
	StateArchived LifecycleState = "archived"
)

// rank orders lifecycle states for the monotonicity guard.
func (s LifecycleState) rank() int {
	switch s {
	case StateActive:
		return 0
	case StateAging:
		return 1
	case StateArchived:
		return 2
	}
	return -1
}

// Before reports whether s precedes other in the lifecycle ordering.
func (s LifecycleState) Before(other LifecycleState) bool {
	return s.rank() < other.rank()
}

// Draft is an ephemeral memory candidate proposed by an extractor.
// It is consumed once by the admission filter and then discarded,
// whether or not it becomes a Memory.
type Draft struct {
	Content        string     `json:"content"`
	Confidence     float64    `json:"confidence"`
	SuggestedTags  []string   `json:"suggested_tags"`
	Type           MemoryType `json:"memory_type"`
	Category       string     `json:"category"`
	BaseImportance int        `json:"base_importance"`
}

// Memory is a durable, scored record derived from user interactions.
// BaseImportance and Confidence are kept from the admitting draft so
// consolidation can re-score a merge from the strongest member instead of
// averaging stored importance down.
type Memory struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Content        string         `json:"content"`
	Tags           []string       `json:"tags"`
	Type           MemoryType     `json:"memory_type"`
	Category       string         `json:"category"`
	Importance     int            `json:"importance"`
	BaseImportance int            `json:"base_importance"`
	Confidence     float64        `json:"confidence"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	State          LifecycleState `json:"lifecycle_state"`
	MergedFromIDs  []string       `json:"merged_from_ids,omitempty"`
}

// dedupeTags returns tags with duplicates removed, preserving first-seen order.
func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
