package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Epoch field position in line 1 (0-indexed, end exclusive).
const (
	epochStart = 18
	epochEnd   = 32
)

// ParseEpoch extracts the epoch from columns 19-32 of line 1 and converts it
// to a UTC timestamp.
func ParseEpoch(line1 string) (time.Time, error) {
	if len(line1) < epochEnd {
		return time.Time{}, fmt.Errorf("line1 too short for epoch field: %d characters", len(line1))
	}
	return ParseEpochField(strings.TrimSpace(line1[epochStart:epochEnd]))
}

// ParseEpochField converts a YYDDD.DDDDDDDD epoch to time.Time.
// Year 00-56 -> 2000s, 57-99 -> 1900s. The day of year is 1-based.
func ParseEpochField(s string) (time.Time, error) {
	if len(s) < 3 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 0 {
		return time.Time{}, fmt.Errorf("invalid epoch year %q", yearStr)
	}
	if year < 57 {
		year += 2000
	} else {
		year += 1900
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}
	// Day 0 is accepted and lands on the last day of the previous year.
	if math.IsNaN(dayOfYear) || math.IsInf(dayOfYear, 0) || dayOfYear < 0 || dayOfYear >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %q out of range", dayStr)
	}

	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
