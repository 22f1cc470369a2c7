package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fixed-approximation seconds-per-unit used by duration parsing,
// matching original_source/src/time_utils.rs exactly.
const (
	secondsPerYear  = 31_557_600
	secondsPerMonth = 2_629_800
	secondsPerDay   = 86_400
	secondsPerHour  = 3_600
	secondsPerWeek  = 604_800
)

// ParseMemoryString parses a human memory string into bytes. Accepts
// suffixes k/kb, m/mb, g/gb, t/tb (binary units, case-insensitive);
// a bare number is interpreted as bytes. Mirrors
// original_source/src/client/commands/reports.rs's parse_memory_string.
func ParseMemoryString(s string) (int64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" {
		return 0, fmt.Errorf("model: memory string cannot be empty")
	}

	splitAt := len(trimmed)
	for i, r := range trimmed {
		if (r >= 'a' && r <= 'z') || r == '%' {
			splitAt = i
			break
		}
	}
	numPart := strings.TrimSpace(trimmed[:splitAt])
	unitPart := strings.TrimSpace(trimmed[splitAt:])

	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("model: invalid memory string %q: %w", s, err)
	}

	const (
		kb = 1024.0
		mb = kb * 1024.0
		gb = mb * 1024.0
		tb = gb * 1024.0
	)

	switch unitPart {
	case "k", "kb":
		return int64(value * kb), nil
	case "m", "mb":
		return int64(value * mb), nil
	case "g", "gb":
		return int64(value * gb), nil
	case "t", "tb":
		return int64(value * tb), nil
	case "":
		return int64(value), nil
	default:
		return 0, fmt.Errorf("model: unrecognized memory unit %q in %q", unitPart, s)
	}
}

var iso8601DurationPattern = regexp.MustCompile(
	`^P(?:(\d+)W)?(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`,
)

// ParseISO8601Duration converts an ISO-8601 duration string
// (PnYnMnDTnHnMnS or PnW) to a whole number of seconds using the
// fixed approximations of spec.md §4.2 / original_source/src/time_utils.rs.
func ParseISO8601Duration(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("model: duration string cannot be empty")
	}
	m := iso8601DurationPattern.FindStringSubmatch(trimmed)
	if m == nil || trimmed == "P" {
		return 0, fmt.Errorf("model: invalid ISO 8601 duration format %q", s)
	}

	// The week form is mutually exclusive with the Y/M/D/T form in the
	// ISO-8601 grammar; the combined pattern accepts a W group followed
	// by other groups (e.g. "P1W1D"), so such mixes are rejected below.
	weeks := parseUintGroup(m[1])
	years := parseUintGroup(m[2])
	months := parseUintGroup(m[3])
	days := parseUintGroup(m[4])
	hours := parseUintGroup(m[5])
	minutes := parseUintGroup(m[6])
	secondsFloat, err := parseFloatGroup(m[7])
	if err != nil {
		return 0, fmt.Errorf("model: invalid duration seconds in %q: %w", s, err)
	}

	if weeks > 0 && (years > 0 || months > 0 || days > 0 || hours > 0 || minutes > 0 || secondsFloat > 0) {
		return 0, fmt.Errorf("model: duration %q mixes weeks with other components", s)
	}

	if weeks > 0 {
		return int64(weeks) * secondsPerWeek, nil
	}

	if trimmed == "PT" || trimmed == "P" {
		return 0, fmt.Errorf("model: invalid ISO 8601 duration format %q", s)
	}

	total := int64(years)*secondsPerYear +
		int64(months)*secondsPerMonth +
		int64(days)*secondsPerDay +
		int64(hours)*secondsPerHour +
		int64(minutes)*60 +
		int64(secondsFloat)

	return total, nil
}

func parseUintGroup(g string) int64 {
	if g == "" {
		return 0
	}
	v, _ := strconv.ParseInt(g, 10, 64)
	return v
}

func parseFloatGroup(g string) (float64, error) {
	if g == "" {
		return 0, nil
	}
	return strconv.ParseFloat(g, 64)
}
