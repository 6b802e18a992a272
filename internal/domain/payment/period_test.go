package payment

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("Failed to load location %s: %v", name, err)
	}
	return loc
}

func TestResolve(t *testing.T) {
	oslo := mustLocation(t, "Europe/Oslo")

	tests := []struct {
		name    string
		now     time.Time
		days    []int
		before  int
		after   int
		wantOK  bool
		wantKey string
	}{
		{
			name:    "inside window after anchor",
			now:     time.Date(2025, 5, 2, 12, 0, 0, 0, oslo),
			days:    []int{1, 16},
			before:  2,
			after:   2,
			wantOK:  true,
			wantKey: "2025-05-01",
		},
		{
			name:    "window start is inclusive",
			now:     time.Date(2025, 5, 14, 0, 0, 0, 0, oslo),
			days:    []int{1, 16},
			before:  2,
			after:   2,
			wantOK:  true,
			wantKey: "2025-05-16",
		},
		{
			name:    "window end is inclusive",
			now:     time.Date(2025, 5, 18, 0, 0, 0, 0, oslo),
			days:    []int{1, 16},
			before:  2,
			after:   2,
			wantOK:  true,
			wantKey: "2025-05-16",
		},
		{
			name:   "just past window end",
			now:    time.Date(2025, 5, 18, 0, 0, 1, 0, oslo),
			days:   []int{1, 16},
			before: 2,
			after:  2,
			wantOK: false,
		},
		{
			name:   "outside every window",
			now:    time.Date(2025, 5, 10, 9, 30, 0, 0, oslo),
			days:   []int{1, 16},
			before: 2,
			after:  2,
			wantOK: false,
		},
		{
			name:    "overlapping windows resolve to the earlier listed day",
			now:     time.Date(2025, 5, 11, 0, 0, 0, 0, oslo),
			days:    []int{12, 10},
			before:  3,
			after:   3,
			wantOK:  true,
			wantKey: "2025-05-12",
		},
		{
			name:    "list order wins over distance",
			now:     time.Date(2025, 5, 11, 0, 0, 0, 0, oslo),
			days:    []int{10, 12},
			before:  3,
			after:   3,
			wantOK:  true,
			wantKey: "2025-05-10",
		},
		{
			name:   "day missing in february is skipped",
			now:    time.Date(2025, 2, 27, 12, 0, 0, 0, oslo),
			days:   []int{30},
			before: 5,
			after:  5,
			wantOK: false,
		},
		{
			name:    "missing day skipped, next day still matches",
			now:     time.Date(2025, 2, 27, 12, 0, 0, 0, oslo),
			days:    []int{31, 28},
			before:  2,
			after:   2,
			wantOK:  true,
			wantKey: "2025-02-28",
		},
		{
			name:   "out of range days never match",
			now:    time.Date(2025, 5, 1, 0, 0, 0, 0, oslo),
			days:   []int{0, -1, 32},
			before: 2,
			after:  2,
			wantOK: false,
		},
		{
			name:   "empty day list",
			now:    time.Date(2025, 5, 1, 0, 0, 0, 0, oslo),
			days:   nil,
			before: 2,
			after:  2,
			wantOK: false,
		},
		{
			name:   "instant is converted into the reference timezone",
			now:    time.Date(2025, 4, 30, 22, 30, 0, 0, time.UTC), // 00:30 on May 1st in Oslo
			days:   []int{1},
			before: 0,
			after:  0,
			wantOK: false,
		},
		{
			name:    "zero offsets match only the anchor instant",
			now:     time.Date(2025, 4, 30, 22, 0, 0, 0, time.UTC), // midnight May 1st in Oslo
			days:    []int{1},
			before:  0,
			after:   0,
			wantOK:  true,
			wantKey: "2025-05-01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, ok := Resolve(tt.now, tt.days, tt.before, tt.after, oslo)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := occ.Key(); got != tt.wantKey {
				t.Errorf("Resolve() key = %s, want %s", got, tt.wantKey)
			}
			if !occ.Window.Contains(tt.now) {
				t.Errorf("window %v..%v does not contain %v", occ.Window.Start, occ.Window.End, tt.now)
			}
		})
	}
}

func TestResolveWindowBounds(t *testing.T) {
	oslo := mustLocation(t, "Europe/Oslo")
	now := time.Date(2025, 3, 30, 12, 0, 0, 0, oslo) // DST starts in Oslo on 2025-03-30

	occ, ok := Resolve(now, []int{31}, 2, 2, oslo)
	if !ok {
		t.Fatal("expected an active occurrence")
	}
	if want := time.Date(2025, 3, 29, 0, 0, 0, 0, oslo); !occ.Window.Start.Equal(want) {
		t.Errorf("window start = %v, want %v", occ.Window.Start, want)
	}
	if want := time.Date(2025, 4, 2, 0, 0, 0, 0, oslo); !occ.Window.End.Equal(want) {
		t.Errorf("window end = %v, want %v", occ.Window.End, want)
	}
}

func TestPeriodResolverUsesConfiguredLocation(t *testing.T) {
	oslo := mustLocation(t, "Europe/Oslo")
	r := PeriodResolver{Days: []int{1}, DaysBefore: 0, DaysAfter: 0, Location: oslo}

	occ, ok := r.Resolve(time.Date(2025, 4, 30, 22, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected an active occurrence")
	}
	if occ.Date.Location() != oslo {
		t.Errorf("occurrence location = %v, want %v", occ.Date.Location(), oslo)
	}
}
