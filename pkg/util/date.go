package util

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UnionDays merges several date lists into one sorted list of distinct days.
func UnionDays(lists ...[]time.Time) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, l := range lists {
		for _, t := range l {
			seen[Day(t)] = struct{}{}
		}
	}
	out := make([]time.Time, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RangeStart returns the first day covered by a chart range such as "5d",
// "3mo", "1y" or "ytd", counted back from now.
func RangeStart(now time.Time, rng string) (time.Time, error) {
	now = Day(now)
	if rng == "ytd" {
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	}

	unit := strings.TrimLeft(rng, "0123456789")
	n, err := strconv.Atoi(strings.TrimSuffix(rng, unit))
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("invalid range %q", rng)
	}
	switch unit {
	case "d":
		return now.AddDate(0, 0, -n), nil
	case "wk":
		return now.AddDate(0, 0, -7*n), nil
	case "mo":
		return now.AddDate(0, -n, 0), nil
	case "y":
		return now.AddDate(-n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("invalid range unit %q in %q", unit, rng)
	}
}

// FormatDays renders days as YYYY-MM-DD.
func FormatDays(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}
