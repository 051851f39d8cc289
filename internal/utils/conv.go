package utils

import (
	"strconv"
	"strings"
)

// IntInRange parses s and clamps it to [min, max]; fallback is used when s
// is empty or not a number.
func IntInRange(s string, fallback, min, max int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		i = fallback
	}
	if i < min {
		return min
	}
	if max > 0 && i > max {
		return max
	}
	return i
}
