package booking

import (
	"fmt"
	"sort"
	"time"
)

// minutesPerDay bounds every span to [00:00, 24:00).
const minutesPerDay = 24 * 60

// ParseTimeOfDay converts "HH:MM" to minutes since midnight. "24:00" is
// accepted as the exclusive end of day, matching FormatTimeOfDay's rendering
// of an interval that ends at midnight.
func ParseTimeOfDay(s string) (int, error) {
	if s == "24:00" {
		return minutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatTimeOfDay renders minutes since midnight as "HH:MM". 24:00 is the
// exclusive end of day.
func FormatTimeOfDay(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Span is a half-open interval [Start, End) in minutes since midnight.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) String() string {
	return fmt.Sprintf("[%02d:%02d, %02d:%02d)", s.Start/60, s.Start%60, s.End/60, s.End%60)
}

// Overlaps uses half-open semantics: spans that merely abut do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies fully inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

func clampSpan(s Span) (Span, bool) {
	if s.Start < 0 {
		s.Start = 0
	}
	if s.End > minutesPerDay {
		s.End = minutesPerDay
	}
	return s, s.Start < s.End
}

// MergeSpans unions a set of spans into an ordered, non-overlapping sequence.
// Abutting spans are coalesced.
func MergeSpans(spans []Span) []Span {
	var valid []Span
	for _, s := range spans {
		if c, ok := clampSpan(s); ok {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].Start < valid[j].Start })

	merged := []Span{valid[0]}
	for _, s := range valid[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// SubtractSpans removes every busy span from the open spans. Both inputs may
// be unsorted and overlapping; the result is ordered and non-overlapping.
func SubtractSpans(open, busy []Span) []Span {
	free := MergeSpans(open)
	for _, b := range MergeSpans(busy) {
		var next []Span
		for _, f := range free {
			if !f.Overlaps(b) {
				next = append(next, f)
				continue
			}
			if f.Start < b.Start {
				next = append(next, Span{Start: f.Start, End: b.Start})
			}
			if b.End < f.End {
				next = append(next, Span{Start: b.End, End: f.End})
			}
		}
		free = next
	}
	return free
}

// FreeSpans computes the bookable intervals: the union of open spans minus
// every busy span, keeping only segments of at least minDuration minutes.
func FreeSpans(open, busy []Span, minDuration int) []Span {
	var result []Span
	for _, f := range SubtractSpans(open, busy) {
		if f.End-f.Start >= minDuration {
			result = append(result, f)
		}
	}
	return result
}
