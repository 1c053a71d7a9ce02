package memory

import "testing"

func testSimilarity(t *testing.T) *JaccardSimilarity {
	t.Helper()
	sim, err := NewJaccardSimilarity()
	if err != nil {
		t.Fatalf("NewJaccardSimilarity: %v", err)
	}
	t.Cleanup(sim.Close)
	return sim
}

func TestTagSimilarity(t *testing.T) {
	sim := testSimilarity(t)

	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{name: "identical", a: []string{"health", "meds"}, b: []string{"health", "meds"}, want: 1},
		{name: "disjoint", a: []string{"health"}, b: []string{"finance"}, want: 0},
		{name: "half overlap", a: []string{"health", "meds"}, b: []string{"health", "sleep"}, want: 1.0 / 3.0},
		{name: "empty left", a: nil, b: []string{"health"}, want: 0},
		{name: "both empty", a: nil, b: nil, want: 0},
		{name: "case insensitive", a: []string{"Health"}, b: []string{"health"}, want: 1},
		{name: "duplicates collapse", a: []string{"health", "health"}, b: []string{"health"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sim.Tags(tt.a, tt.b)
			if !closeEnough(got, tt.want) {
				t.Errorf("Tags(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestContentSimilarity(t *testing.T) {
	sim := testSimilarity(t)

	t.Run("identical text", func(t *testing.T) {
		if got := sim.Content("take meds at 9am", "take meds at 9am"); got != 1 {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("whitespace and case normalized", func(t *testing.T) {
		if got := sim.Content("Take  Meds\tat 9am", "take meds at 9am"); got != 1 {
			t.Errorf("got %v, want 1", got)
		}
	})

	t.Run("empty strings", func(t *testing.T) {
		if got := sim.Content("", ""); got != 0 {
			t.Errorf("got %v, want 0 for empty inputs", got)
		}
	})

	t.Run("near duplicate scores high", func(t *testing.T) {
		a := "user takes medication every morning at 9am"
		b := "user takes medication every morning around 9am"
		if got := sim.Content(a, b); got < 0.6 {
			t.Errorf("got %v, want near-duplicate above the merge threshold", got)
		}
	})

	t.Run("unrelated scores low", func(t *testing.T) {
		a := "user takes medication every morning"
		b := "quarterly budget review happens on fridays"
		if got := sim.Content(a, b); got > 0.4 {
			t.Errorf("got %v, want unrelated text well below threshold", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a := "prefers window seats"
		b := "prefers aisle seats"
		if sim.Content(a, b) != sim.Content(b, a) {
			t.Error("Content is not symmetric")
		}
	})
}

func closeEnough(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
