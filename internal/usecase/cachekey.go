package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/kinokawa/feedsync"
	"github.com/kinokawa/feedsync/internal/domain"
	"github.com/kinokawa/feedsync/internal/utils"
)

// Cache keys are deterministic for semantically equal queries: slices
// are sorted and objects serialized with sorted keys before hashing,
// so {a,b} and {b,a} collapse onto the same entry.

func feedCacheKey(userID string, q domain.FeedQuery) string {
	return fmt.Sprintf("feed:%s:%s:%s:%s:%d:%d",
		userID,
		sortedJoin(q.Filters.SourceIDs),
		hashValue(normalizeFilters(q.Filters)),
		hashValue(q.Sort),
		q.Limit,
		q.Offset,
	)
}

func trendingCacheKey(userID, timeframe string, limit, offset int) string {
	return fmt.Sprintf("trending:%s:%s:%d:%d", userID, timeframe, limit, offset)
}

func personalizedCacheKey(userID string, limit, offset int) string {
	return fmt.Sprintf("personalized:%s:%d:%d", userID, limit, offset)
}

func unifiedCacheKey(userID, feedID string, limit, offset int) string {
	return fmt.Sprintf("unified:%s:%s:%d:%d", userID, feedID, limit, offset)
}

// userCachePattern matches every view cached for a user; all key
// variants carry the user id as their second segment.
func userCachePattern(userID string) string {
	return "*:" + userID + ":*"
}

// sourceCachePattern matches feed entries whose source set contains
// the source. Source ids appear verbatim in the key's source segment.
func sourceCachePattern(sourceID string) string {
	return "*" + sourceID + "*"
}

func normalizeFilters(f domain.ItemFilters) domain.ItemFilters {
	normalized := f
	normalized.SourceIDs = sortedCopy(f.SourceIDs)
	normalized.Keywords = sortedCopy(f.Keywords)
	normalized.ExcludeKeywords = sortedCopy(f.ExcludeKeywords)
	if len(f.ItemTypes) > 0 {
		types := make([]feedsync.ItemType, len(f.ItemTypes))
		copy(types, f.ItemTypes)
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		normalized.ItemTypes = types
	}
	return normalized
}

func hashValue(v any) string {
	encoded, err := utils.CanonicalJSON(v)
	if err != nil {
		return "0"
	}
	return fmt.Sprintf("%x", xxh3.Hash(encoded))
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

func sortedJoin(values []string) string {
	return strings.Join(sortedCopy(values), ",")
}
