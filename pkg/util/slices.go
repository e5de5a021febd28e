package util

import "iter"

// CollectMatching takes values from seq until limit matches of p have been
// collected. A limit of zero or less returns nothing.
func CollectMatching[T any](seq iter.Seq[T], limit int, p func(T) bool) []T {
	matched := []T{}
	if limit <= 0 {
		return matched
	}

	for v := range seq {
		if !p(v) {
			continue
		}

		matched = append(matched, v)
		if len(matched) >= limit {
			break
		}
	}

	return matched
}
