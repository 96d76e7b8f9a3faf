// Package timerange splits long date intervals into bounded windows for
// platforms that cap the size of a date-filtered query.
package timerange

import (
	"fmt"
	"time"
)

// Default window shape used for historical order queries.
const (
	DefaultChunk   = 7 * 24 * time.Hour
	DefaultOverlap = time.Second
)

// Window is one sub-interval of a split.
type Window struct {
	Start time.Time
	End   time.Time
}

// String formats the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Split cuts [from, to] into consecutive chunk-sized windows. Every window
// except the last extends overlap past the next window's start so records
// stamped exactly on a boundary are seen by both; the last window ends at to.
//
// Callers merging results across windows must deduplicate by identity.
// Split returns nil when from is after to, and a single window when they are equal.
func Split(from, to time.Time, chunk, overlap time.Duration) []Window {
	if from.After(to) {
		return nil
	}
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	if overlap < 0 {
		overlap = 0
	}
	if !from.Before(to) {
		return []Window{{Start: from, End: to}}
	}

	var windows []Window
	for start := from; start.Before(to); start = start.Add(chunk) {
		end := start.Add(chunk).Add(overlap)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	windows[len(windows)-1].End = to
	return windows
}

// SplitDefault splits with the 7 day / 1 second shape.
func SplitDefault(from, to time.Time) []Window {
	return Split(from, to, DefaultChunk, DefaultOverlap)
}
