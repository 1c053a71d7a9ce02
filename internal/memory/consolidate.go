package memory

import (
	"sort"
	"strings"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// ContentMerger combines member contents into one merged content string.
// Injected so callers can swap in an LLM summarizer; the default is a
// deterministic "longest member plus distinct fragments" rule.
type ContentMerger interface {
	MergeContent(contents []string) string
}

// Consolidator groups similar memories and proposes merges.
type Consolidator struct {
	cfg    config.Config
	sim    Similarity
	scorer *Scorer
	merger ContentMerger
}

// NewConsolidator creates a Consolidator. A nil merger selects the default
// fragment merger.
func NewConsolidator(cfg config.Config, sim Similarity, scorer *Scorer, merger ContentMerger) *Consolidator {
	if merger == nil {
		merger = FragmentMerger{}
	}
	return &Consolidator{cfg: cfg, sim: sim, scorer: scorer, merger: merger}
}

// FindGroups partitions memories into merge candidates. Two memories link
// when tag similarity or content similarity clears its threshold; groups
// are the connected components of that relation, so A-B and B-C chain into
// one group even when A and C are not directly similar. Only groups of at
// least MinGroupSizeForConsolidation members are returned, each sorted by
// creation time for deterministic merge input.
func (c *Consolidator) FindGroups(memories []Memory) [][]Memory {
	n := len(memories)
	if n < c.cfg.MinGroupSizeForConsolidation {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]] // path halving
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if find(i) == find(j) {
				continue
			}
			if c.linked(memories[i], memories[j]) {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]Memory)
	for i, m := range memories {
		root := find(i)
		byRoot[root] = append(byRoot[root], m)
	}

	var groups [][]Memory
	for _, g := range byRoot {
		if len(g) < c.cfg.MinGroupSizeForConsolidation {
			continue
		}
		sortMembers(g)
		groups = append(groups, g)
	}

	// Deterministic output order: by the first member of each group.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0].ID < groups[j][0].ID
	})
	return groups
}

func (c *Consolidator) linked(a, b Memory) bool {
	if c.sim.Tags(a.Tags, b.Tags) >= c.cfg.TagSimilarityThreshold {
		return true
	}
	return c.sim.Content(a.Content, b.Content) >= c.cfg.ContentSimilarityThreshold
}

// Merge collapses a group into one memory. Tags are the union of member
// tags, provenance is the flattened union of member IDs and their own
// provenance, createdAt is the earliest and lastAccessedAt the latest seen.
// Importance is re-scored from the maximum base importance and confidence
// observed among members, never averaged down. The merged memory takes the
// most advanced lifecycle state among members, so merging never moves
// anything backward in the lifecycle. The result carries no ID; the store
// assigns one when it supersedes the members.
//
// Merge is associative: merging {A,B} and then the result with C yields
// the same tags, provenance, and importance as merging {A,B,C} at once.
func (c *Consolidator) Merge(group []Memory) Memory {
	if len(group) == 0 {
		return Memory{}
	}

	members := make([]Memory, len(group))
	copy(members, group)
	sortMembers(members)

	merged := Memory{
		UserID:    members[0].UserID,
		CreatedAt: members[0].CreatedAt,
		State:     StateActive,
	}

	var (
		tagSet     = map[string]bool{}
		tags       []string
		provenance = map[string]bool{}
		contents   = make([]string, 0, len(members))
	)

	for _, m := range members {
		if m.CreatedAt.Before(merged.CreatedAt) {
			merged.CreatedAt = m.CreatedAt
		}
		if merged.State.Before(m.State) {
			merged.State = m.State
		}
		if m.LastAccessedAt != nil {
			if merged.LastAccessedAt == nil || m.LastAccessedAt.After(*merged.LastAccessedAt) {
				t := *m.LastAccessedAt
				merged.LastAccessedAt = &t
			}
		}
		for _, t := range m.Tags {
			key := strings.ToLower(t)
			if key == "" || tagSet[key] {
				continue
			}
			tagSet[key] = true
			tags = append(tags, t)
		}
		// Provenance flattens to the original leaves: a member that is
		// itself a merge contributes the memories it came from, not its
		// own superseded ID.
		if len(m.MergedFromIDs) > 0 {
			for _, id := range m.MergedFromIDs {
				provenance[id] = true
			}
		} else if m.ID != "" {
			provenance[m.ID] = true
		}
		contents = append(contents, m.Content)

		if m.BaseImportance > merged.BaseImportance {
			merged.BaseImportance = m.BaseImportance
		}
		if m.Confidence > merged.Confidence {
			merged.Confidence = m.Confidence
		}
	}

	sort.Strings(tags)
	merged.Tags = tags

	merged.MergedFromIDs = make([]string, 0, len(provenance))
	for id := range provenance {
		merged.MergedFromIDs = append(merged.MergedFromIDs, id)
	}
	sort.Strings(merged.MergedFromIDs)

	merged.Content = c.merger.MergeContent(contents)
	// Earliest member wins type and category. The choice is stable across
	// merge orderings because an intermediate merge inherits its earliest
	// member's creation time along with its type.
	merged.Type = members[0].Type
	merged.Category = members[0].Category

	merged.Importance = c.scorer.Score(Draft{
		Content:        merged.Content,
		Confidence:     merged.Confidence,
		SuggestedTags:  merged.Tags,
		Type:           merged.Type,
		Category:       merged.Category,
		BaseImportance: merged.BaseImportance,
	})
	return merged
}

// sortMembers orders group members by creation time, then ID, so merge
// input order never depends on map iteration or caller ordering.
func sortMembers(g []Memory) {
	sort.Slice(g, func(i, j int) bool {
		if !g[i].CreatedAt.Equal(g[j].CreatedAt) {
			return g[i].CreatedAt.Before(g[j].CreatedAt)
		}
		return g[i].ID < g[j].ID
	})
}

// FragmentMerger is the default ContentMerger: keep the longest member
// content and append any other member content that is not a near-duplicate
// of what has already been kept.
type FragmentMerger struct{}

// nearDuplicateThreshold gates which fragments count as already covered.
const nearDuplicateThreshold = 0.9

// MergeContent implements ContentMerger.
func (FragmentMerger) MergeContent(contents []string) string {
	cleaned := make([]string, 0, len(contents))
	for _, c := range contents {
		c = strings.TrimSpace(c)
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}

	// Longest first; lexicographic tie-break keeps the result independent
	// of input order.
	sort.Slice(cleaned, func(i, j int) bool {
		if len(cleaned[i]) != len(cleaned[j]) {
			return len(cleaned[i]) > len(cleaned[j])
		}
		return cleaned[i] < cleaned[j]
	})

	kept := []string{cleaned[0]}
	for _, c := range cleaned[1:] {
		duplicate := false
		for _, k := range kept {
			if bigramJaccard(normalizeText(k), normalizeText(c)) >= nearDuplicateThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, "\n")
}
