package schedule

import "time"

// Interval is a closed-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
// Adjacent intervals (iv.End == other.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls within [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

func overlapsAny(iv Interval, others []Interval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
