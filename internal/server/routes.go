package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mnemo-ai/mnemo/internal/extract"
	"github.com/mnemo-ai/mnemo/internal/memory"
)

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		UserInput  string `json:"user_input"`
		Response   string `json:"response"`
		ToolResult string `json:"tool_result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserInput == "" && req.Response == "" {
		writeError(w, http.StatusBadRequest, "user_input or response required")
		return
	}

	in := extract.Interaction{
		ID:         uuid.NewString(),
		UserInput:  req.UserInput,
		Response:   req.Response,
		ToolResult: req.ToolResult,
	}

	created, err := s.engine.ProcessInteraction(r.Context(), userID, in)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("process interaction")
		writeError(w, http.StatusInternalServerError, "interaction processing failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"interaction_id":   in.ID,
		"memories_created": len(created),
		"memories":         created,
	})
}

func (s *Server) handleRelevant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	q := memory.Query{Text: r.URL.Query().Get("q")}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		q.Tags = strings.Split(tags, ",")
	}

	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		k = parsed
	}

	results, err := s.engine.Retrieve(r.Context(), userID, q, k)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("retrieve")
		writeError(w, http.StatusInternalServerError, "retrieval failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	memories, err := s.db.ListByUser(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("list memories")
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(memories),
		"memories": memories,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.db.UserStats(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("stats")
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	merged, err := s.engine.Consolidate(r.Context(), userID)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("consolidate")
		writeError(w, http.StatusInternalServerError, "consolidation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"merged_count": len(merged),
		"merged":       merged,
	})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	transitions, err := s.engine.Sweep(r.Context(), userID, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("sweep")
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transition_count": len(transitions),
		"transitions":      transitions,
	})
}

// handlePrune deletes memories a sweep has flagged prune-eligible. The
// engine only proposes; this endpoint is the explicit deletion decision.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	transitions, err := s.engine.Sweep(r.Context(), userID, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("prune sweep")
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	var ids []string
	for _, t := range transitions {
		if t.PruneEligible {
			ids = append(ids, t.MemoryID)
		}
	}

	deleted, err := s.db.DeleteMemories(r.Context(), ids)
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("prune delete")
		writeError(w, http.StatusInternalServerError, "prune failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pruned": deleted,
	})
}
