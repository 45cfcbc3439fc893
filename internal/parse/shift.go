package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	shiftSuffixRe = regexp.MustCompile(`(?i)[\s_-]*shift$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// dateLayouts are the accepted shift date spellings; the first is canonical.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102"}

// Shift is a normalised (shift_date, shift_type) pair.
type Shift struct {
	Date string
	Type string
}

// ParseShiftDate normalises a shift date to YYYY-MM-DD.
func ParseShiftDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("shift date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayouts[0]), nil
		}
	}
	return "", fmt.Errorf("unable to parse shift date: %q", raw)
}

// ParseShiftType normalises a shift type ("Night Shift" -> "night") and
// checks it against the allowed set. An empty allowed set accepts any type.
func ParseShiftType(raw string, allowed []string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = shiftSuffixRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "", fmt.Errorf("shift type is required")
	}
	if len(allowed) == 0 {
		return s, nil
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown shift type %q (allowed: %s)", raw, strings.Join(allowed, ", "))
}

// ParseShift normalises both halves of a shift key.
func ParseShift(rawDate, rawType string, allowed []string) (Shift, error) {
	date, err := ParseShiftDate(rawDate)
	if err != nil {
		return Shift{}, err
	}
	typ, err := ParseShiftType(rawType, allowed)
	if err != nil {
		return Shift{}, err
	}
	return Shift{Date: date, Type: typ}, nil
}

// AssetRefs trims asset references and drops blanks and duplicates, keeping
// first-seen order.
func AssetRefs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
