package cache

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// GraphHash identifies a graph by its node id set and node count. The order
// of ids does not matter.
func GraphHash(nodeIDs []string) string {
	ids := slices.Clone(nodeIDs)
	slices.Sort(ids)
	d := xxhash.New()
	for _, id := range ids {
		_, _ = d.WriteString(id)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%d-%016x", len(ids), d.Sum64())
}

// RecommendationKey builds the in-memory cache key for a recommendation
// request against a given graph.
func RecommendationKey(graphHash, userID string, limit int) string {
	return fmt.Sprintf("%s|%s|%d", graphHash, userID, limit)
}
