package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule is one recurring weekly availability window: a host is bookable on
// DayOfWeek between StartTime and EndTime, interpreted in Timezone.
type Rule struct {
	DayOfWeek int    `json:"day_of_week"` // 0 = Sunday
	StartTime string `json:"start_time"`  // "HH:MM", 24h
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"` // IANA zone name
}

// Validate checks the rule's fields without expanding it.
func (r Rule) Validate() error {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0-6, got %d", r.DayOfWeek)
	}
	start, err := parseHHMM(r.StartTime)
	if err != nil {
		return err
	}
	end, err := parseHHMM(r.EndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("end_time %s must be after start_time %s", r.EndTime, r.StartTime)
	}
	if r.Timezone != "" {
		if _, err := time.LoadLocation(r.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", r.Timezone)
		}
	}
	return nil
}

// parseHHMM parses "HH:MM" into minutes since midnight. Trailing seconds
// (as stored by Postgres time columns) are ignored.
func parseHHMM(s string) (int, error) {
	if len(s) > 5 {
		s = s[:5]
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour*60 + minute, nil
}

func ruleLocation(r Rule, fallback *time.Location) *time.Location {
	if r.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
