package core

import (
	"regexp"
	"strconv"
)

var naturalChunkRE = regexp.MustCompile(`\d+|\D+`)

// naturalChunks splits s into a sequence of alternating digit/non-digit runs,
// so that runs of digits compare by numeric value rather than lexically.
func naturalChunks(s string) []string {
	return naturalChunkRE.FindAllString(s, -1)
}

// naturalSortLE is a total order ("less than or equal") over strings where
// embedded digit runs compare numerically: "case2" < "case10". Used by
// TestGroup to check that subgroup names, taken in the lexical order of the
// directory walk, are also increasing in natural-sort order.
func naturalSortLE(a, b string) bool {
	return naturalSortCompare(a, b) <= 0
}

// naturalSortCompare returns -1, 0, or 1 the way strings.Compare does, but
// with numeric comparison of embedded digit runs.
func naturalSortCompare(a, b string) int {
	ac, bc := naturalChunks(a), naturalChunks(b)
	n := len(ac)
	if len(bc) < n {
		n = len(bc)
	}
	for i := 0; i < n; i++ {
		x, y := ac[i], bc[i]
		if x == y {
			continue
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if xn != yn {
				if xn < yn {
					return -1
				}
				return 1
			}
			continue
		}
		if x < y {
			return -1
		}
		return 1
	}
	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	default:
		return 0
	}
}
