package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/extract"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/store"
)

func testServer(t *testing.T) (*Server, *store.DB) {
	t.Helper()
	cfg := config.Default()

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sim, err := memory.NewJaccardSimilarity()
	require.NoError(t, err)
	t.Cleanup(sim.Close)

	eng := engine.New(db, cfg, extract.NewRuleExtractor(cfg), sim, nil, zerolog.Nop())
	return New(db, eng, zerolog.Nop(), "test"), db
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, true, body["db"])
}

func TestInteractionEndpoint(t *testing.T) {
	s, db := testServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/users/u1/interactions", map[string]string{
		"user_input": "Remember that my dentist is Dr. Okafor downtown.",
		"response":   "Got it.",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode(t, rec)
	assert.NotEmpty(t, body["interaction_id"])
	assert.Equal(t, float64(1), body["memories_created"])

	stored, err := db.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "u1", stored[0].UserID)
}

func TestInteractionEndpointRejectsBadInput(t *testing.T) {
	s, _ := testServer(t)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/users/u1/interactions",
			bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty interaction", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodPost, "/api/users/u1/interactions", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRelevantEndpoint(t *testing.T) {
	s, db := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.CreateMemories(ctx, []memory.Memory{
		{UserID: "u1", Content: "takes lisinopril every morning", Tags: []string{"medication", "health"},
			Type: memory.TypeHabit, Importance: 8, CreatedAt: now, State: memory.StateActive},
		{UserID: "u1", Content: "supports the local soccer club", Tags: []string{"sports"},
			Type: memory.TypeFact, Importance: 5, CreatedAt: now, State: memory.StateActive},
	}))

	rec := doJSON(t, s, http.MethodGet, "/api/users/u1/memories/relevant?tags=medication&k=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])

	t.Run("bad k", func(t *testing.T) {
		rec := doJSON(t, s, http.MethodGet, "/api/users/u1/memories/relevant?k=lots", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListAndStatsEndpoints(t *testing.T) {
	s, db := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	archived := memory.Memory{UserID: "u1", Content: "old", Tags: []string{"x"},
		Type: memory.TypeFact, Importance: 2, CreatedAt: now, State: memory.StateArchived}
	active := memory.Memory{UserID: "u1", Content: "new", Tags: []string{"y"},
		Type: memory.TypeFact, Importance: 6, CreatedAt: now, State: memory.StateActive}
	require.NoError(t, db.CreateMemories(ctx, []memory.Memory{archived, active}))

	rec := doJSON(t, s, http.MethodGet, "/api/users/u1/memories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["count"])

	rec = doJSON(t, s, http.MethodGet, "/api/users/u1/memories/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)
	assert.Equal(t, float64(1), stats["active"])
	assert.Equal(t, float64(1), stats["archived"])
}

func TestConsolidateEndpoint(t *testing.T) {
	s, db := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, db.CreateMemories(ctx, []memory.Memory{
		{UserID: "u1", Content: "user takes medication every morning at 9am", Tags: []string{"medication", "health"},
			Type: memory.TypeHabit, Importance: 7, BaseImportance: 7, Confidence: 0.8, CreatedAt: now, State: memory.StateActive},
		{UserID: "u1", Content: "user takes medication every morning around 9am", Tags: []string{"medication", "health"},
			Type: memory.TypeHabit, Importance: 6, BaseImportance: 6, Confidence: 0.9, CreatedAt: now.Add(time.Minute), State: memory.StateActive},
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/users/u1/consolidate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["merged_count"])

	live, err := db.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestSweepAndPruneEndpoints(t *testing.T) {
	s, db := testServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	junk := memory.Memory{UserID: "u1", Content: "stale junk", Tags: []string{"x"},
		Type: memory.TypeFact, Importance: 1, CreatedAt: now.Add(-70 * 24 * time.Hour), State: memory.StateActive}
	keeper := memory.Memory{UserID: "u1", Content: "valuable", Tags: []string{"y"},
		Type: memory.TypeFact, Importance: 9, CreatedAt: now, State: memory.StateActive}
	require.NoError(t, db.CreateMemories(ctx, []memory.Memory{junk, keeper}))

	rec := doJSON(t, s, http.MethodPost, "/api/users/u1/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["transition_count"])

	rec = doJSON(t, s, http.MethodPost, "/api/users/u1/prune", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["pruned"])

	live, err := db.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "valuable", live[0].Content)
}
