package memory

import (
	"math"
	"sort"
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// Query carries the retrieval context: tags from the active conversation
// plus free text for content matching.
type Query struct {
	Tags []string `json:"tags"`
	Text string   `json:"text"`
}

// ScoredMemory pairs a memory with its computed relevance.
type ScoredMemory struct {
	Memory    Memory  `json:"memory"`
	Relevance float64 `json:"relevance"`
}

// Ranker orders candidate memories by weighted relevance to a query.
type Ranker struct {
	cfg config.Config
	sim Similarity
}

// NewRanker creates a Ranker with the given similarity provider.
func NewRanker(cfg config.Config, sim Similarity) *Ranker {
	return &Ranker{cfg: cfg, sim: sim}
}

// Rank scores each candidate against the query and returns the top
// min(k, MaxRetrievedMemories), best first. Candidates below the retrieval
// importance floor and archived memories are skipped.
//
// Relevance is a weighted sum of tag overlap, content similarity,
// normalized importance, and recency. Ties break on importance, then most
// recent access. Rank itself is pure; touching lastAccessedAt for the
// returned memories is an explicit separate step in the store layer.
func (r *Ranker) Rank(q Query, candidates []Memory, now time.Time, k int) []ScoredMemory {
	if k <= 0 || k > r.cfg.MaxRetrievedMemories {
		k = r.cfg.MaxRetrievedMemories
	}

	pool := candidates
	if len(pool) > r.cfg.MaxCandidateMemories {
		pool = pool[:r.cfg.MaxCandidateMemories]
	}

	results := make([]ScoredMemory, 0, len(pool))
	for _, m := range pool {
		if m.Importance < r.cfg.MinImportanceForRetrieval {
			continue
		}
		if m.State == StateArchived {
			continue
		}
		results = append(results, ScoredMemory{
			Memory:    m,
			Relevance: r.relevance(q, m, now),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		if results[i].Memory.Importance != results[j].Memory.Importance {
			return results[i].Memory.Importance > results[j].Memory.Importance
		}
		return accessMillis(results[i].Memory) > accessMillis(results[j].Memory)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// relevance computes the weighted sub-score sum for one memory.
func (r *Ranker) relevance(q Query, m Memory, now time.Time) float64 {
	tagScore := r.sim.Tags(q.Tags, m.Tags)
	contentScore := 0.0
	if q.Text != "" {
		contentScore = r.sim.Content(q.Text, m.Content)
	}
	importanceScore := float64(m.Importance) / 10
	recencyScore := r.recency(m, now)

	return r.cfg.RetrievalWeightTag*tagScore +
		r.cfg.RetrievalWeightContent*contentScore +
		r.cfg.RetrievalWeightImportance*importanceScore +
		r.cfg.RetrievalWeightRecency*recencyScore
}

// recency maps time since last access onto (0,1] with a configurable
// half-life. Never-accessed memories score 0.
func (r *Ranker) recency(m Memory, now time.Time) float64 {
	if m.LastAccessedAt == nil {
		return 0
	}
	elapsed := now.Sub(*m.LastAccessedAt)
	if elapsed <= 0 {
		return 1
	}
	halfLife := time.Duration(r.cfg.RecencyHalfLifeDays * 24 * float64(time.Hour))
	return math.Exp2(-float64(elapsed) / float64(halfLife))
}

func accessMillis(m Memory) int64 {
	if m.LastAccessedAt == nil {
		return 0
	}
	return m.LastAccessedAt.UnixMilli()
}
