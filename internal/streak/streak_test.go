package streak

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q): %v", name, err)
	}
	return loc
}

func TestEvaluateFirstClaim(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	can, s := Evaluate(now, nil, 0, 0, time.UTC)
	if !can || s != 1 {
		t.Fatalf("got (%v,%d), want (true,1)", can, s)
	}
}

func TestEvaluateBoundaryLaws(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name     string
		now      time.Time
		last     time.Time
		prior    int
		boundary int
		canClaim bool
		streak   int
	}{
		{
			name:     "same claim day rejected",
			now:      time.Date(2026, 3, 10, 20, 0, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			prior:    3,
			canClaim: false,
			streak:   3,
		},
		{
			name:     "one boundary crossed increments",
			now:      time.Date(2026, 3, 11, 8, 0, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			prior:    3,
			canClaim: true,
			streak:   4,
		},
		{
			name:     "increment caps at seven",
			now:      time.Date(2026, 3, 11, 8, 0, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			prior:    7,
			canClaim: true,
			streak:   7,
		},
		{
			name:     "two boundaries crossed resets",
			now:      time.Date(2026, 3, 12, 8, 0, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 8, 0, 0, 0, loc),
			prior:    5,
			canClaim: true,
			streak:   1,
		},
		{
			name:     "before boundary hour still previous claim day",
			now:      time.Date(2026, 3, 11, 5, 59, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 23, 0, 0, 0, loc),
			prior:    2,
			boundary: 6,
			canClaim: false,
			streak:   2,
		},
		{
			name:     "yesterday 23:00 to today 07:00 with 6am boundary",
			now:      time.Date(2026, 3, 11, 7, 0, 0, 0, loc),
			last:     time.Date(2026, 3, 10, 23, 0, 0, 0, loc),
			prior:    2,
			boundary: 6,
			canClaim: true,
			streak:   3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := tt.last
			can, s := Evaluate(tt.now, &last, tt.prior, tt.boundary, loc)
			if can != tt.canClaim || s != tt.streak {
				t.Errorf("got (%v,%d), want (%v,%d)", can, s, tt.canClaim, tt.streak)
			}
		})
	}
}

func TestEvaluateRespectsTimezone(t *testing.T) {
	manila := mustLoad(t, "Asia/Manila") // UTC+8, no DST
	// 22:00 UTC March 10 is 06:00 March 11 in Manila: with a 6 AM
	// boundary that is already the next claim day there.
	last := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC) // 10:00 Manila
	now := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	can, s := Evaluate(now, &last, 1, 6, manila)
	if !can || s != 2 {
		t.Fatalf("got (%v,%d), want (true,2)", can, s)
	}
}

func TestEvaluatePure(t *testing.T) {
	now := time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	c1, s1 := Evaluate(now, &last, 2, 6, time.UTC)
	c2, s2 := Evaluate(now, &last, 2, 6, time.UTC)
	if c1 != c2 || s1 != s2 {
		t.Fatalf("Evaluate is not deterministic: (%v,%d) vs (%v,%d)", c1, s1, c2, s2)
	}
}

func TestBoundaryDayNormalized(t *testing.T) {
	loc := time.UTC
	a := BoundaryDay(time.Date(2026, 3, 10, 5, 0, 0, 0, loc), 6, loc)
	b := BoundaryDay(time.Date(2026, 3, 9, 23, 0, 0, 0, loc), 6, loc)
	if !a.Equal(b) {
		t.Errorf("05:00 and previous 23:00 should share a claim day: %v vs %v", a, b)
	}
}
