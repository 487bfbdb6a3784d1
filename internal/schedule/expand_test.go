package schedule

import (
	"testing"
	"time"
)

// 2026-03-09 is a Monday.
var monday = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

func TestExpand_SlotEnumeration(t *testing.T) {
	rules := []Rule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:30"}}

	// Horizon starts tomorrow, so the matching Monday is 2026-03-16.
	slots := Expand(rules, monday, 7, 30*time.Minute, time.UTC)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d: %v", len(slots), slots)
	}
	wantStarts := []string{"09:00", "09:30", "10:00"}
	for i, s := range slots {
		if s.Start.Format("2006-01-02") != "2026-03-16" {
			t.Fatalf("slot %d on %s, want 2026-03-16", i, s.Start.Format("2006-01-02"))
		}
		if got := s.Start.Format("15:04"); got != wantStarts[i] {
			t.Fatalf("slot %d starts %s, want %s", i, got, wantStarts[i])
		}
		if !s.End.Equal(s.Start.Add(30 * time.Minute)) {
			t.Fatalf("slot %d has wrong duration", i)
		}
	}
}

func TestExpand_TrailingRemainderDropped(t *testing.T) {
	rules := []Rule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "09:40"}}
	slots := Expand(rules, monday, 7, 30*time.Minute, time.UTC)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot from a 40-minute window, got %d", len(slots))
	}
	if got := slots[0].Start.Format("15:04"); got != "09:00" {
		t.Fatalf("slot starts %s, want 09:00", got)
	}
}

func TestExpand_WindowShorterThanDuration(t *testing.T) {
	rules := []Rule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "09:20"}}
	if slots := Expand(rules, monday, 7, 30*time.Minute, time.UTC); len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestExpand_FirstBookableDayIsTomorrow(t *testing.T) {
	// Rule matches today's weekday; today must not appear in the horizon.
	rules := []Rule{{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00"}}
	slots := Expand(rules, monday, 7, 60*time.Minute, time.UTC)
	for _, s := range slots {
		if s.Start.Format("2006-01-02") == "2026-03-09" {
			t.Fatalf("today leaked into the horizon: %v", s)
		}
	}
	if len(slots) == 0 {
		t.Fatal("next Monday should have produced slots")
	}
}

func TestExpand_OverlappingRulesDeduplicated(t *testing.T) {
	rules := []Rule{
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "11:00"},
		{DayOfWeek: 2, StartTime: "10:00", EndTime: "12:00"},
	}
	slots := Expand(rules, monday, 2, 60*time.Minute, time.UTC)
	// Union of 09-11 and 10-12 at 60m: 09:00, 10:00, 11:00.
	if len(slots) != 3 {
		t.Fatalf("expected 3 deduplicated slots, got %d: %v", len(slots), slots)
	}
	seen := map[int64]bool{}
	for _, s := range slots {
		if seen[s.Start.Unix()] {
			t.Fatalf("duplicate slot start %v", s.Start)
		}
		seen[s.Start.Unix()] = true
	}
}

func TestExpand_RuleTimezone(t *testing.T) {
	// 09:00 in New York is 13:00 UTC on 2026-03-10 (EDT, UTC-4 after the
	// March 8 switch).
	rules := []Rule{{DayOfWeek: 2, StartTime: "09:00", EndTime: "10:00", Timezone: "America/New_York"}}
	slots := Expand(rules, monday, 2, 30*time.Minute, time.UTC)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	want := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("slot start %v, want %v", slots[0].Start, want)
	}
}

func TestFilterBusy(t *testing.T) {
	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	slot := func(h, m int) Interval {
		s := day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		return Interval{Start: s, End: s.Add(30 * time.Minute)}
	}

	t.Run("full containment filtered", func(t *testing.T) {
		wide := Interval{Start: day.Add(9*time.Hour + 30*time.Minute), End: day.Add(10*time.Hour + 30*time.Minute)}
		busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 5*time.Minute)}}
		if got := FilterBusy([]Interval{wide}, busy); len(got) != 0 {
			t.Fatalf("slot containing busy interval should be filtered, got %v", got)
		}
	})

	t.Run("partial overlaps filtered, adjacent kept", func(t *testing.T) {
		busy := []Interval{{Start: day.Add(9*time.Hour + 45*time.Minute), End: day.Add(10*time.Hour + 15*time.Minute)}}
		in := []Interval{slot(9, 30), slot(10, 0), slot(10, 15)}
		got := FilterBusy(in, busy)
		if len(got) != 1 {
			t.Fatalf("expected only the adjacent 10:15 slot to survive, got %v", got)
		}
		if !got[0].Start.Equal(slot(10, 15).Start) {
			t.Fatalf("wrong survivor: %v", got[0])
		}
	})

	t.Run("no busy is a no-op", func(t *testing.T) {
		in := []Interval{slot(9, 0), slot(9, 30)}
		if got := FilterBusy(in, nil); len(got) != 2 {
			t.Fatalf("expected passthrough, got %v", got)
		}
	})
}

func TestFilterPast(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC)
	mk := func(h, m int) Interval {
		s := time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
		return Interval{Start: s, End: s.Add(30 * time.Minute)}
	}
	got := FilterPast([]Interval{mk(9, 0), mk(9, 15), mk(9, 30)}, now)
	if len(got) != 1 {
		t.Fatalf("expected only the 09:30 slot, got %v", got)
	}
	if !got[0].Start.Equal(mk(9, 30).Start) {
		t.Fatalf("wrong survivor: %v", got[0])
	}
}

func TestAssemble(t *testing.T) {
	mk := func(d, h, m int) Interval {
		s := time.Date(2026, 3, d, h, m, 0, 0, time.UTC)
		return Interval{Start: s, End: s.Add(30 * time.Minute)}
	}
	grid := Assemble([]Interval{mk(10, 9, 0), mk(10, 9, 30), mk(12, 14, 0)}, time.UTC)
	if len(grid) != 2 {
		t.Fatalf("expected 2 days, got %d", len(grid))
	}
	if grid[0].Date != "2026-03-10" || grid[1].Date != "2026-03-12" {
		t.Fatalf("unexpected dates: %v", grid)
	}
	if len(grid[0].Times) != 2 || grid[0].Times[0] != "09:00" || grid[0].Times[1] != "09:30" {
		t.Fatalf("unexpected times for first day: %v", grid[0].Times)
	}
	// 2026-03-11 had no slots and must not appear at all.
	for _, d := range grid {
		if len(d.Times) == 0 {
			t.Fatalf("date %s emitted with empty times", d.Date)
		}
	}
}

func TestSlotAt(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	slot, err := SlotAt("2026-03-16", "09:30", 30*time.Minute, ny)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 16, 9, 30, 0, 0, ny)
	if !slot.Start.Equal(want) || !slot.End.Equal(want.Add(30*time.Minute)) {
		t.Fatalf("got %v, want start %v", slot, want)
	}

	if _, err := SlotAt("16/03/2026", "09:30", 30*time.Minute, ny); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := SlotAt("2026-03-16", "9am", 30*time.Minute, ny); err == nil {
		t.Fatal("expected error for malformed time")
	}
}

func TestRuleValidate(t *testing.T) {
	cases := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid", Rule{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", Timezone: "America/New_York"}, false},
		{"valid with seconds", Rule{DayOfWeek: 1, StartTime: "09:00:00", EndTime: "17:00:00"}, false},
		{"end before start", Rule{DayOfWeek: 1, StartTime: "17:00", EndTime: "09:00"}, true},
		{"equal start end", Rule{DayOfWeek: 1, StartTime: "09:00", EndTime: "09:00"}, true},
		{"bad weekday", Rule{DayOfWeek: 7, StartTime: "09:00", EndTime: "17:00"}, true},
		{"bad time", Rule{DayOfWeek: 1, StartTime: "25:00", EndTime: "26:00"}, true},
		{"bad zone", Rule{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", Timezone: "Mars/Olympus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
