// Package engine wires the memory components to storage and extraction,
// and serializes the three operation classes (admission, retrieval,
// maintenance) per user.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/extract"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/store"
)

// Engine orchestrates memory admission, retrieval, consolidation, and
// lifecycle sweeps.
type Engine struct {
	DB        *store.DB
	Extractor extract.Extractor
	Fallback  extract.Extractor

	cfg          config.Config
	scorer       *memory.Scorer
	admission    *memory.Admission
	ranker       *memory.Ranker
	consolidator *memory.Consolidator
	lifecycle    *memory.Lifecycle

	locks  sync.Map // userID -> *sync.Mutex
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// New creates an Engine. The similarity provider and content merger are
// injected; pass nil merger for the default fragment merger.
func New(db *store.DB, cfg config.Config, extractor extract.Extractor,
	sim memory.Similarity, merger memory.ContentMerger, log zerolog.Logger) *Engine {

	scorer := memory.NewScorer(cfg)
	return &Engine{
		DB:           db,
		Extractor:    extractor,
		Fallback:     extract.NewRuleExtractor(cfg),
		cfg:          cfg,
		scorer:       scorer,
		admission:    memory.NewAdmission(cfg, scorer),
		ranker:       memory.NewRanker(cfg, sim),
		consolidator: memory.NewConsolidator(cfg, sim, scorer, merger),
		lifecycle:    memory.NewLifecycle(cfg),
		stopCh:       make(chan struct{}),
		log:          log,
	}
}

// userLock returns the mutex serializing one user's memory operations.
// Different users proceed in parallel.
func (e *Engine) userLock(userID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ProcessInteraction runs the write path for one interaction: extract
// drafts, admit the worthwhile ones, persist them. Extraction failure is
// absorbed as zero drafts after trying the rule fallback; memory creation
// is best-effort enrichment and never fails the interaction.
func (e *Engine) ProcessInteraction(ctx context.Context, userID string, in extract.Interaction) ([]memory.Memory, error) {
	drafts := e.extractDrafts(ctx, in)
	if len(drafts) == 0 {
		return nil, nil
	}

	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	admitted := e.admission.Admit(userID, drafts, time.Now().UTC())
	if len(admitted) == 0 {
		return nil, nil
	}

	if err := e.DB.CreateMemories(ctx, admitted); err != nil {
		return nil, fmt.Errorf("persist admitted: %w", err)
	}

	e.log.Debug().Str("user", userID).
		Int("drafts", len(drafts)).Int("admitted", len(admitted)).
		Msg("interaction processed")
	return admitted, nil
}

func (e *Engine) extractDrafts(ctx context.Context, in extract.Interaction) []memory.Draft {
	timeout := time.Duration(e.cfg.ExtractorTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	drafts, err := e.Extractor.ExtractCandidates(ctx, in)
	if err == nil {
		return drafts
	}
	e.log.Warn().Err(err).Str("interaction", in.ID).Msg("extractor unavailable, using rule fallback")

	drafts, err = e.Fallback.ExtractCandidates(ctx, in)
	if err != nil {
		// Zero drafts, not an error: the interaction proceeds without
		// new memories.
		e.log.Warn().Err(err).Str("interaction", in.ID).Msg("fallback extraction failed")
		return nil
	}
	return drafts
}

// Retrieve runs the read path: narrow candidates through the tag index,
// rank them, then touch the returned memories so aging sees the access.
func (e *Engine) Retrieve(ctx context.Context, userID string, q memory.Query, k int) ([]memory.ScoredMemory, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	candidates, err := e.DB.CandidatesByTags(ctx, userID, q.Tags, e.cfg.MaxCandidateMemories)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	ranked := e.ranker.Rank(q, candidates, now, k)
	if len(ranked) == 0 {
		return nil, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Memory.ID
	}
	if err := e.DB.TouchMemories(ctx, ids, now); err != nil {
		return nil, fmt.Errorf("touch: %w", err)
	}
	return ranked, nil
}

// Consolidate finds similar memories for one user and merges each group,
// superseding the members. Archived memories are left out of the working
// set: a merge creates a retrievable record, and reactivating archived
// content is an external policy, not this engine's. Returns the merged
// memories created.
func (e *Engine) Consolidate(ctx context.Context, userID string) ([]memory.Memory, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	all, err := e.DB.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	working := make([]memory.Memory, 0, len(all))
	for _, m := range all {
		if m.State == memory.StateArchived {
			continue
		}
		working = append(working, m)
	}

	groups := e.consolidator.FindGroups(working)
	var created []memory.Memory
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		merged := e.consolidator.Merge(g)
		memberIDs := make([]string, len(g))
		for i, m := range g {
			memberIDs[i] = m.ID
		}
		if err := e.DB.ApplyMerge(ctx, &merged, memberIDs); err != nil {
			return created, fmt.Errorf("apply merge: %w", err)
		}

		e.log.Info().Str("user", userID).Int("members", len(g)).
			Str("merged", merged.ID).Msg("consolidated memory group")
		created = append(created, merged)
	}
	return created, nil
}

// Sweep computes and applies lifecycle transitions for one user.
// Transitions are applied one memory at a time, so a cancelled sweep
// loses only the memories not yet processed; applied transitions stand.
func (e *Engine) Sweep(ctx context.Context, userID string, now time.Time) ([]memory.StateTransition, error) {
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	all, err := e.DB.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	transitions := e.lifecycle.Sweep(all, now)
	applied := make([]memory.StateTransition, 0, len(transitions))
	for _, t := range transitions {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := e.DB.ApplyTransition(ctx, t); err != nil {
			return applied, fmt.Errorf("apply transition: %w", err)
		}
		applied = append(applied, t)
	}

	if len(applied) > 0 {
		e.log.Debug().Str("user", userID).Int("transitions", len(applied)).Msg("sweep applied")
	}
	return applied, nil
}

// SweepAll sweeps every user with stored memories.
func (e *Engine) SweepAll(ctx context.Context, now time.Time) (int, error) {
	users, err := e.DB.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, u := range users {
		transitions, err := e.Sweep(ctx, u, now)
		total += len(transitions)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ConsolidateAll consolidates every user with stored memories.
func (e *Engine) ConsolidateAll(ctx context.Context) (int, error) {
	users, err := e.DB.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, u := range users {
		merged, err := e.Consolidate(ctx, u)
		total += len(merged)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// StartMaintenance runs a sweep immediately and then periodic sweep and
// consolidation passes until Stop is called. Stop cancels the maintenance
// context, so an in-flight pass stops at its next per-memory step instead
// of running to completion.
func (e *Engine) StartMaintenance() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	if n, err := e.SweepAll(ctx, time.Now().UTC()); err != nil {
		e.log.Error().Err(err).Msg("startup sweep")
	} else if n > 0 {
		e.log.Info().Int("transitions", n).Msg("startup sweep applied")
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		sweepTicker := time.NewTicker(time.Duration(e.cfg.SweepIntervalHours) * time.Hour)
		defer sweepTicker.Stop()
		consolidateTicker := time.NewTicker(time.Duration(e.cfg.ConsolidateIntervalHours) * time.Hour)
		defer consolidateTicker.Stop()

		for {
			select {
			case <-sweepTicker.C:
				if n, err := e.SweepAll(ctx, time.Now().UTC()); err != nil {
					e.log.Error().Err(err).Msg("periodic sweep")
				} else if n > 0 {
					e.log.Info().Int("transitions", n).Msg("periodic sweep applied")
				}
			case <-consolidateTicker.C:
				if n, err := e.ConsolidateAll(ctx); err != nil {
					e.log.Error().Err(err).Msg("periodic consolidation")
				} else if n > 0 {
					e.log.Info().Int("merged", n).Msg("periodic consolidation applied")
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines and cancels any
// in-flight maintenance pass.
func (e *Engine) Stop() {
	close(e.stopCh)
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}
