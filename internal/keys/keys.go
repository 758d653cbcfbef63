// Package keys maps logical cache keys onto backend keys.
package keys

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Prefixed returns the backend key for key. No escaping is applied: a logical
// key that itself starts with the prefix is indistinguishable from a nested
// namespace.
func Prefixed(prefix, key string) string {
	return prefix + key
}

// Filter keeps the keys that start with prefix+sub. Matching keys are
// returned unchanged and in input order.
func Filter(all []string, prefix, sub string) []string {
	want := prefix + sub
	out := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, want) {
			out = append(out, k)
		}
	}
	return out
}

// Shard returns depth nested directory segments derived from the key's
// xxhash, e.g. "3f/a1" for depth 2. depth is capped at 8 (the digest has 16
// hex characters).
func Shard(key string, depth int) string {
	if depth <= 0 {
		return ""
	}
	if depth > 8 {
		depth = 8
	}
	sum := strconv.FormatUint(xxhash.Sum64String(key), 16)
	if pad := 16 - len(sum); pad > 0 {
		sum = strings.Repeat("0", pad) + sum
	}
	parts := make([]string, depth)
	for i := range parts {
		parts[i] = sum[i*2 : i*2+2]
	}
	return strings.Join(parts, "/")
}
