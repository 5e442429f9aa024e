package goutil

import (
	"strconv"
	"strings"
)

func ContainsStr(arr []string, str string) bool {
	for _, v := range arr {
		if v == str {
			return true
		}
	}
	return false
}

// UniqUint64 keeps the first occurrence of each value, preserving order.
func UniqUint64(arr []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(arr))
	res := make([]uint64, 0, len(arr))
	for _, v := range arr {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	return res
}

// ParseID parses a positive decimal id. Zero and anything unparsable are rejected.
func ParseID(s string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
