package cache

import (
	"hash/fnv"
	"strings"
)

// ShapeKey fingerprints an ordered column list (case-insensitive) so that two
// result sets with the same columns share one scan plan.
func ShapeKey(typeName string, columns []string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(typeName))
	_, _ = h.Write([]byte{0})
	for _, col := range columns {
		_, _ = h.Write([]byte(strings.ToLower(col)))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
