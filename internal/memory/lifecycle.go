package memory

import (
	"time"

	"github.com/mnemo-ai/mnemo/internal/config"
)

// StateTransition describes one proposed lifecycle change. PruneEligible
// marks archived low-importance memories the storage layer may delete; the
// engine itself never deletes anything.
type StateTransition struct {
	MemoryID      string         `json:"memory_id"`
	From          LifecycleState `json:"from"`
	To            LifecycleState `json:"to"`
	PruneEligible bool           `json:"prune_eligible"`
}

// Lifecycle classifies memories into active/aging/archived by idle time.
type Lifecycle struct {
	cfg config.Config
}

// NewLifecycle creates a Lifecycle manager.
func NewLifecycle(cfg config.Config) *Lifecycle {
	return &Lifecycle{cfg: cfg}
}

// Sweep computes the transitions due at now. It is a pure function of its
// inputs: the only clock is the now argument, so repeated sweeps at the
// same instant are no-ops after the first. Transitions only move forward;
// archived memories below the low-importance threshold are additionally
// flagged prune-eligible.
func (l *Lifecycle) Sweep(memories []Memory, now time.Time) []StateTransition {
	var transitions []StateTransition
	for _, m := range memories {
		if t, ok := l.evaluate(m, now); ok {
			transitions = append(transitions, t)
		}
	}
	return transitions
}

// evaluate computes the transition for a single memory, if any.
func (l *Lifecycle) evaluate(m Memory, now time.Time) (StateTransition, bool) {
	idle := now.Sub(idleSince(m))
	agingAfter := daysToDuration(l.cfg.MemoryAgingDays)
	archiveAfter := daysToDuration(l.cfg.MemoryArchivingDays)

	switch m.State {
	case StateActive:
		if idle > archiveAfter {
			return l.transition(m, StateArchived), true
		}
		if idle > agingAfter {
			return l.transition(m, StateAging), true
		}
	case StateAging:
		if idle > archiveAfter {
			return l.transition(m, StateArchived), true
		}
	case StateArchived:
		if m.Importance < l.cfg.LowImportanceThreshold {
			return StateTransition{
				MemoryID:      m.ID,
				From:          StateArchived,
				To:            StateArchived,
				PruneEligible: true,
			}, true
		}
	}
	return StateTransition{}, false
}

func (l *Lifecycle) transition(m Memory, to LifecycleState) StateTransition {
	t := StateTransition{MemoryID: m.ID, From: m.State, To: to}
	if to == StateArchived && m.Importance < l.cfg.LowImportanceThreshold {
		t.PruneEligible = true
	}
	return t
}

// idleSince is the reference point for idle time: last access when the
// memory has ever been retrieved, otherwise creation.
func idleSince(m Memory) time.Time {
	if m.LastAccessedAt != nil {
		return *m.LastAccessedAt
	}
	return m.CreatedAt
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
