package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week). Each field is kept as a bit set of
// its allowed values.
type Schedule struct {
	minutes uint64 // 0-59
	hours   uint64 // 0-23
	days    uint64 // 1-31
	months  uint64 // 1-12
	dows    uint64 // 0-6, 0=Sunday

	dayRestricted bool // day-of-month field was not *
	dowRestricted bool // day-of-week field was not *

	expr string
}

type fieldSpec struct {
	name string
	min  int
	max  int
}

var fieldSpecs = [5]fieldSpec{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Parse parses a cron expression with standard syntax: *, single values,
// ranges (1-5), steps (*/5, 1-10/2), and comma lists.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	var sets [5]uint64
	for i, field := range fields {
		set, err := parseField(field, fieldSpecs[i].min, fieldSpecs[i].max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", fieldSpecs[i].name, err)
		}
		sets[i] = set
	}

	return &Schedule{
		minutes:       sets[0],
		hours:         sets[1],
		days:          sets[2],
		months:        sets[3],
		dows:          sets[4],
		dayRestricted: fields[2] != "*",
		dowRestricted: fields[4] != "*",
		expr:          expr,
	}, nil
}

// String returns the original expression.
func (s *Schedule) String() string {
	return s.expr
}

// Matches reports whether t, truncated to the minute, is a scheduled
// time.
func (s *Schedule) Matches(t time.Time) bool {
	return has(s.minutes, t.Minute()) &&
		has(s.hours, t.Hour()) &&
		has(s.months, int(t.Month())) &&
		s.matchesDay(t)
}

// matchesDay handles the standard cron day quirk: when both day-of-month
// and day-of-week are restricted, a time matches if EITHER does.
func (s *Schedule) matchesDay(t time.Time) bool {
	dom := has(s.days, t.Day())
	dow := has(s.dows, int(t.Weekday()))

	switch {
	case s.dayRestricted && s.dowRestricted:
		return dom || dow
	case s.dayRestricted:
		return dom
	case s.dowRestricted:
		return dow
	default:
		return true
	}
}

// Next returns the first scheduled time strictly after t. The scan is
// bounded at four years out so a schedule that can never fire (e.g.
// "0 0 31 2 *") returns the zero time instead of looping forever.
func (s *Schedule) Next(t time.Time) time.Time {
	cur := t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for cur.Before(limit) {
		if s.Matches(cur) {
			return cur
		}
		cur = cur.Add(time.Minute)
	}

	return time.Time{}
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

// parseField parses one field into a bit set of allowed values.
func parseField(field string, min, max int) (uint64, error) {
	var set uint64
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty value in list")
		}
		s, err := parsePart(part, min, max)
		if err != nil {
			return 0, err
		}
		set |= s
	}
	return set, nil
}

// parsePart parses a single list element: *, N, a-b, or any of those
// with a /step suffix.
func parsePart(part string, min, max int) (uint64, error) {
	step := 1
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(stepStr)
		if err != nil {
			return 0, fmt.Errorf("invalid step value %q", stepStr)
		}
		if n <= 0 {
			return 0, fmt.Errorf("step must be greater than 0")
		}
		step = n
		part = base
	}

	lo, hi := min, max
	switch {
	case part == "*":
		// full range
	case strings.Contains(part, "-"):
		startStr, endStr, _ := strings.Cut(part, "-")
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q", startStr)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q", endStr)
		}
		if start > end {
			return 0, fmt.Errorf("invalid range: start %d > end %d", start, end)
		}
		lo, hi = start, end
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", part)
		}
		lo, hi = v, v
	}

	if lo < min || hi > max {
		return 0, fmt.Errorf("value out of bounds [%d, %d]: %s", min, max, part)
	}

	var set uint64
	for v := lo; v <= hi; v += step {
		set |= 1 << uint(v)
	}
	return set, nil
}
