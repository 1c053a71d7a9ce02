package memory

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto"
)

// Similarity scores how alike two tag sets or two content strings are.
// Implementations return values in [0,1]. The engine treats this as an
// injected capability; swapping in an embedding-backed provider changes
// nothing else.
type Similarity interface {
	Tags(a, b []string) float64
	Content(a, b string) float64
}

// JaccardSimilarity is the default provider: Jaccard overlap for tag sets
// and bigram Jaccard over normalized text for content. Cheap, deterministic,
// and good enough to gate consolidation without embeddings.
type JaccardSimilarity struct {
	cache *ristretto.Cache
}

// NewJaccardSimilarity creates the default provider. Content scores are
// memoized because consolidation compares every pair in a working set.
func NewJaccardSimilarity() (*JaccardSimilarity, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 22, // 4MB of cached scores
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity cache: %w", err)
	}
	return &JaccardSimilarity{cache: cache}, nil
}

// Tags returns the Jaccard overlap of two tag sets, case-insensitive.
func (j *JaccardSimilarity) Tags(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[strings.ToLower(strings.TrimSpace(t))] = true
	}
	delete(setA, "")

	setB := make(map[string]bool, len(b))
	for _, t := range b {
		setB[strings.ToLower(strings.TrimSpace(t))] = true
	}
	delete(setB, "")

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// Content returns the bigram Jaccard similarity of two strings after
// whitespace and case normalization.
func (j *JaccardSimilarity) Content(a, b string) float64 {
	a = normalizeText(a)
	b = normalizeText(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	key := pairKey(a, b)
	if j.cache != nil {
		if v, ok := j.cache.Get(key); ok {
			return v.(float64)
		}
	}

	sim := bigramJaccard(a, b)

	if j.cache != nil {
		j.cache.Set(key, sim, 16)
	}
	return sim
}

// Close releases the memoization cache.
func (j *JaccardSimilarity) Close() {
	if j.cache != nil {
		j.cache.Close()
	}
}

// pairKey builds an order-independent cache key so Content(a,b) and
// Content(b,a) share an entry.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func bigramJaccard(a, b string) float64 {
	bigramsA := bigrams(a)
	bigramsB := bigrams(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	shared := 0
	for bg := range bigramsA {
		if bigramsB[bg] {
			shared++
		}
	}

	union := len(bigramsA) + len(bigramsB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func bigrams(s string) map[string]bool {
	if len(s) < 2 {
		return nil
	}
	m := make(map[string]bool, len(s)-1)
	for i := 0; i < len(s)-1; i++ {
		m[s[i:i+2]] = true
	}
	return m
}
