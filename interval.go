package metha

import (
	"time"

	"github.com/jinzhu/now"
)

// ChunkMode selects whether a wide [from, until] window is harvested as a
// single span or split into sequential sub-intervals. It is an opt-in
// convenience kept from an earlier interval-splitting harvester design;
// with ChunkNone (the default) the Harvester's observable behavior is
// exactly one window per set, one checkpoint cursor per set.
type ChunkMode int

const (
	// ChunkNone harvests [from, until] as a single span (default).
	ChunkNone ChunkMode = iota
	// ChunkDaily splits [from, until] into one sub-interval per day.
	ChunkDaily
	// ChunkMonthly splits [from, until] into one sub-interval per month.
	ChunkMonthly
)

// Interval is a closed date range, inclusive of both endpoints.
type Interval struct {
	Begin time.Time
	End   time.Time
}

// DailyIntervals splits iv into one Interval per calendar day.
func (iv Interval) DailyIntervals() []Interval {
	var out []Interval
	cur := startOfDay(iv.Begin)
	for !cur.After(iv.End) {
		dayBegin := cur
		if dayBegin.Before(iv.Begin) {
			dayBegin = iv.Begin
		}
		dayEnd := endOfDay(cur)
		if dayEnd.After(iv.End) {
			dayEnd = iv.End
		}
		out = append(out, Interval{Begin: dayBegin, End: dayEnd})
		cur = startOfDay(cur.AddDate(0, 0, 1))
	}
	return out
}

// MonthlyIntervals splits iv into one Interval per calendar month.
func (iv Interval) MonthlyIntervals() []Interval {
	var out []Interval
	cur := startOfMonth(iv.Begin)
	for !cur.After(iv.End) {
		monthBegin := cur
		if monthBegin.Before(iv.Begin) {
			monthBegin = iv.Begin
		}
		monthEnd := endOfMonth(cur)
		if monthEnd.After(iv.End) {
			monthEnd = iv.End
		}
		out = append(out, Interval{Begin: monthBegin, End: monthEnd})
		cur = startOfMonth(cur.AddDate(0, 1, 0))
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return now.New(t).BeginningOfDay()
}

func endOfDay(t time.Time) time.Time {
	return now.New(t).EndOfDay()
}

func startOfMonth(t time.Time) time.Time {
	return now.New(t).BeginningOfMonth()
}

func endOfMonth(t time.Time) time.Time {
	return now.New(t).EndOfMonth()
}

// chunkIntervals splits [from, until] per mode, returning a single
// Interval covering the whole span when mode is ChunkNone.
func chunkIntervals(from, until time.Time, mode ChunkMode) []Interval {
	iv := Interval{Begin: from, End: until}
	switch mode {
	case ChunkDaily:
		return iv.DailyIntervals()
	case ChunkMonthly:
		return iv.MonthlyIntervals()
	default:
		return []Interval{iv}
	}
}

// chunkDateLayout returns the time.Parse/Format layout matching granularity,
// used to convert chunk boundaries back and forth to the wire date strings
// ChunkInterval operates on.
func chunkDateLayout(g DateGranularity) string {
	if g == GranularityDay {
		return "2006-01-02"
	}
	return "2006-01-02T15:04:05Z"
}

// parseBoundary parses a wire date string per layout; a 10-character value
// is always accepted as a day-granularity date even under a second-level
// layout, since servers occasionally mix granularities across fields.
func parseBoundary(value, layout string) (time.Time, error) {
	if len(value) == 10 {
		return time.Parse("2006-01-02", value)
	}
	return time.Parse(layout, value)
}
