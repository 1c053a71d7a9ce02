package memory

import (
	"fmt"
	"testing"
	"time"
)

func testAdmission(t *testing.T) *Admission {
	t.Helper()
	cfg := testConfig(t)
	return NewAdmission(cfg, NewScorer(cfg))
}

func TestAdmitRejectsLowConfidence(t *testing.T) {
	a := testAdmission(t)

	drafts := []Draft{
		{Content: "low confidence", Confidence: 0.5, BaseImportance: 9, Type: TypeFact},
		{Content: "high confidence", Confidence: 0.9, BaseImportance: 9, Type: TypeFact},
	}

	got := a.Admit("u1", drafts, time.Now())
	if len(got) != 1 {
		t.Fatalf("admitted %d, want 1", len(got))
	}
	if got[0].Content != "high confidence" {
		t.Errorf("admitted %q, want the high-confidence draft", got[0].Content)
	}
}

func TestAdmitRejectsLowImportance(t *testing.T) {
	a := testAdmission(t)

	// 10*(0.4*0.1 + 0.2*0.6) = 1.6 -> 2, below the floor of 3
	drafts := []Draft{
		{Content: "trivial", Confidence: 0.6, BaseImportance: 1},
	}

	if got := a.Admit("u1", drafts, time.Now()); len(got) != 0 {
		t.Errorf("admitted %d, want 0", len(got))
	}
}

func TestAdmitCap(t *testing.T) {
	a := testAdmission(t)

	var drafts []Draft
	for i := 0; i < 20; i++ {
		drafts = append(drafts, Draft{
			Content:        fmt.Sprintf("fact %d", i),
			Confidence:     0.9,
			BaseImportance: 8,
			Type:           TypeFact,
		})
	}

	got := a.Admit("u1", drafts, time.Now())
	if len(got) != 5 {
		t.Errorf("admitted %d, want cap of 5", len(got))
	}
}

func TestAdmitOrdering(t *testing.T) {
	a := testAdmission(t)

	drafts := []Draft{
		{Content: "mid", Confidence: 0.7, BaseImportance: 6, Type: TypeFact},
		{Content: "top", Confidence: 0.95, BaseImportance: 10, Type: TypeFact},
		{Content: "also-mid-first", Confidence: 0.7, BaseImportance: 6, Type: TypeFact},
	}

	got := a.Admit("u1", drafts, time.Now())
	if len(got) != 3 {
		t.Fatalf("admitted %d, want 3", len(got))
	}
	if got[0].Content != "top" {
		t.Errorf("first = %q, want highest importance first", got[0].Content)
	}
	// Equal importance and confidence: original draft order breaks the tie.
	if got[1].Content != "mid" || got[2].Content != "also-mid-first" {
		t.Errorf("tie-break order: got %q then %q", got[1].Content, got[2].Content)
	}
}

func TestAdmitConfidenceMonotonicity(t *testing.T) {
	a := testAdmission(t)

	base := Draft{Content: "same fact", BaseImportance: 7, Type: TypeFact, Category: "health"}

	d1 := base
	d1.Confidence = 0.95
	d2 := base
	d2.Confidence = 0.65

	got := a.Admit("u1", []Draft{d2, d1}, time.Now())
	if len(got) != 2 {
		t.Fatalf("admitted %d, want 2", len(got))
	}
	if got[0].Confidence < got[1].Confidence {
		t.Errorf("higher confidence ranked lower")
	}
	if got[0].Importance < got[1].Importance {
		t.Errorf("importance not monotonic in confidence: %d < %d", got[0].Importance, got[1].Importance)
	}
}

func TestAdmitEmptyDrafts(t *testing.T) {
	a := testAdmission(t)

	if got := a.Admit("u1", nil, time.Now()); len(got) != 0 {
		t.Errorf("admitted %d from zero drafts, want 0", len(got))
	}
}

func TestAdmitTagCapAndDedupe(t *testing.T) {
	a := testAdmission(t)

	drafts := []Draft{{
		Content:        "many tags",
		Confidence:     0.9,
		BaseImportance: 8,
		Type:           TypeFact,
		SuggestedTags:  []string{"a", "b", "a", "c", "d", "e", "f", "g"},
	}}

	got := a.Admit("u1", drafts, time.Now())
	if len(got) != 1 {
		t.Fatalf("admitted %d, want 1", len(got))
	}
	if len(got[0].Tags) != 5 {
		t.Errorf("tags = %v, want 5 after dedupe and cap", got[0].Tags)
	}
}

func TestAdmitTagConfidenceGate(t *testing.T) {
	a := testAdmission(t)

	// Above the creation threshold but below the tag-suggestion one: the
	// memory is kept, its tags are not.
	drafts := []Draft{{
		Content:        "shaky but worth keeping",
		Confidence:     0.65,
		BaseImportance: 8,
		Type:           TypeFact,
		SuggestedTags:  []string{"guess", "maybe"},
	}}

	got := a.Admit("u1", drafts, time.Now())
	if len(got) != 1 {
		t.Fatalf("admitted %d, want 1", len(got))
	}
	if len(got[0].Tags) != 0 {
		t.Errorf("tags = %v, want none below the suggestion threshold", got[0].Tags)
	}
}

func TestAdmitSetsCreationFields(t *testing.T) {
	a := testAdmission(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := a.Admit("u1", []Draft{
		{Content: "fact", Confidence: 0.8, BaseImportance: 7, Type: TypeFact},
	}, now)
	if len(got) != 1 {
		t.Fatalf("admitted %d, want 1", len(got))
	}

	m := got[0]
	if m.UserID != "u1" || m.State != StateActive || !m.CreatedAt.Equal(now) {
		t.Errorf("unexpected creation fields: %+v", m)
	}
	if m.ID != "" {
		t.Errorf("ID should be unset until the store persists it, got %q", m.ID)
	}
	if m.BaseImportance != 7 || m.Confidence != 0.8 {
		t.Errorf("scoring provenance not carried: base=%d conf=%f", m.BaseImportance, m.Confidence)
	}
}
