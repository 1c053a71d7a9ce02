package memory

import (
	"math"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// Scorer computes a memory's importance from weighted sub-scores.
type Scorer struct {
	cfg config.Config
}

// NewScorer creates a Scorer. The config is assumed validated; weight-sum
// violations are caught at load time, not here.
func NewScorer(cfg config.Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the 0-10 importance of a draft:
//
//	10 * (wBase*base + wConf*confidence + wType*typeBoost + wCat*catBoost + wTag*tagBoost)
//
// where base is the author's estimate scaled to [0,1], type and category
// boosts come from config (0 when unlisted), and tagBoost is 1 when any
// suggested tag is on the priority list. The result rounds half up and
// clamps to [0,10]. Pure function, no I/O.
func (s *Scorer) Score(d Draft) int {
	base := clamp01(float64(d.BaseImportance) / 10)
	confidence := clamp01(d.Confidence)
	typeBoost := clamp01(s.cfg.TypeBoosts[string(d.Type)])
	catBoost := clamp01(s.cfg.CategoryBoosts[d.Category])

	tagBoost := 0.0
	for _, t := range d.SuggestedTags {
		if s.cfg.IsPriorityTag(t) {
			tagBoost = 1.0
			break
		}
	}

	raw := 10 * (s.cfg.ImportanceWeightBase*base +
		s.cfg.ImportanceWeightConfidence*confidence +
		s.cfg.ImportanceWeightType*typeBoost +
		s.cfg.ImportanceWeightCategory*catBoost +
		s.cfg.ImportanceWeightTag*tagBoost)

	score := int(math.Floor(raw + 0.5)) // half rounds up
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
