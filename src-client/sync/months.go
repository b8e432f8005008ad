// Package sync tracks which months of the calendar are loaded and
// reconciles remote fetch results into the store.
package sync

import (
	"sort"
	"time"
)

// MonthKeyFormat is the canonical yyyy-mm granularity of range tracking.
const MonthKeyFormat = "2006-01"

func MonthKey(t time.Time) string {
	return t.Format(MonthKeyFormat)
}

func monthStart(key string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(MonthKeyFormat, key, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// EnumerateMonths lists every month key touched by [start, end],
// inclusive on both sides.
func EnumerateMonths(start, end time.Time) []string {
	if end.Before(start) {
		start, end = end, start
	}
	var keys []string
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	for !cursor.After(last) {
		keys = append(keys, MonthKey(cursor))
		cursor = cursor.AddDate(0, 1, 0)
	}
	return keys
}

// groupContiguous splits sorted month keys into runs of adjacent months
// so each run becomes one remote fetch.
func groupContiguous(keys []string, loc *time.Location) [][]string {
	if len(keys) == 0 {
		return nil
	}
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	var groups [][]string
	current := []string{sorted[0]}
	for _, key := range sorted[1:] {
		prev := monthStart(current[len(current)-1], loc)
		if monthStart(key, loc).Equal(prev.AddDate(0, 1, 0)) {
			current = append(current, key)
			continue
		}
		groups = append(groups, current)
		current = []string{key}
	}
	return append(groups, current)
}

// splitSegments caps each contiguous run at maxMonths so one fetch never
// covers an unbounded span.
func splitSegments(groups [][]string, maxMonths int) [][]string {
	if maxMonths <= 0 {
		return groups
	}
	var out [][]string
	for _, group := range groups {
		for len(group) > maxMonths {
			out = append(out, group[:maxMonths])
			group = group[maxMonths:]
		}
		if len(group) > 0 {
			out = append(out, group)
		}
	}
	return out
}

// segmentBounds resolves a run of month keys to its concrete fetch
// window: first month's start up to the start of the month after last.
func segmentBounds(keys []string, loc *time.Location) (time.Time, time.Time) {
	start := monthStart(keys[0], loc)
	end := monthStart(keys[len(keys)-1], loc).AddDate(0, 1, 0)
	return start, end
}

// bufferRange widens [start, end] by months on both sides.
func bufferRange(start, end time.Time, months int) (time.Time, time.Time) {
	return start.AddDate(0, -months, 0), end.AddDate(0, months, 0)
}
