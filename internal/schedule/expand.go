package schedule

import (
	"fmt"
	"sort"
	"time"
)

// DaySlots is one day's worth of bookable start times, formatted in the
// host's timezone. Days with no surviving slots are never emitted.
type DaySlots struct {
	Date  string   `json:"date"` // "2006-01-02"
	Times []string `json:"times"`
}

// Expand turns weekly rules into concrete candidate slots over the horizon.
// Day offsets run 1..days, so the first bookable day is tomorrow relative to
// now in the host's timezone. Each rule window is walked in steps of duration;
// a trailing remainder shorter than duration yields no slot. Duplicate starts
// from overlapping rules are collapsed.
func Expand(rules []Rule, now time.Time, days int, duration time.Duration, loc *time.Location) []Interval {
	if days <= 0 || duration <= 0 || len(rules) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[int64]struct{})
	var slots []Interval

	for d := 1; d <= days; d++ {
		for _, r := range rules {
			rloc := ruleLocation(r, loc)
			year, month, day := now.In(rloc).AddDate(0, 0, d).Date()
			midnight := time.Date(year, month, day, 0, 0, 0, 0, rloc)
			if int(midnight.Weekday()) != r.DayOfWeek {
				continue
			}
			startMin, err := parseHHMM(r.StartTime)
			if err != nil {
				continue
			}
			endMin, err := parseHHMM(r.EndTime)
			if err != nil || endMin <= startMin {
				continue
			}
			windowStart := time.Date(year, month, day, startMin/60, startMin%60, 0, 0, rloc)
			windowEnd := time.Date(year, month, day, endMin/60, endMin%60, 0, 0, rloc)

			for s := windowStart; !s.Add(duration).After(windowEnd); s = s.Add(duration) {
				key := s.Unix()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				slots = append(slots, Interval{Start: s, End: s.Add(duration)})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// FilterBusy drops candidates that overlap any busy interval. The single
// half-open overlap test covers partial and full containment alike.
func FilterBusy(slots, busy []Interval) []Interval {
	if len(busy) == 0 {
		return slots
	}
	out := slots[:0:0]
	for _, s := range slots {
		if !overlapsAny(s, busy) {
			out = append(out, s)
		}
	}
	return out
}

// FilterPast drops candidates starting at or before now. now is captured once
// by the caller so one request sees a consistent cut-off.
func FilterPast(slots []Interval, now time.Time) []Interval {
	out := slots[:0:0]
	for _, s := range slots {
		if s.Start.After(now) {
			out = append(out, s)
		}
	}
	return out
}

// Assemble groups slots by calendar date in loc and formats start times as
// "HH:MM". Input order is preserved, so callers pass Expand's sorted output.
func Assemble(slots []Interval, loc *time.Location) []DaySlots {
	if loc == nil {
		loc = time.UTC
	}
	var out []DaySlots
	for _, s := range slots {
		local := s.Start.In(loc)
		date := local.Format("2006-01-02")
		if len(out) == 0 || out[len(out)-1].Date != date {
			out = append(out, DaySlots{Date: date})
		}
		last := &out[len(out)-1]
		last.Times = append(last.Times, local.Format("15:04"))
	}
	return out
}

// SlotAt reconstructs the exact interval a guest picked from the grid:
// a "2006-01-02" date and "HH:MM" time in loc, plus the link's duration.
func SlotAt(date, timeOfDay string, duration time.Duration, loc *time.Location) (Interval, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("invalid date %q", date)
	}
	mins, err := parseHHMM(timeOfDay)
	if err != nil {
		return Interval{}, err
	}
	if duration <= 0 {
		return Interval{}, fmt.Errorf("invalid duration %s", duration)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, loc)
	return Interval{Start: start, End: start.Add(duration)}, nil
}
