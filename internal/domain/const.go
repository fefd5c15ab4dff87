package domain

const (
	RequesterIdCtxKey = "fs-requesterId"
)

const (
	RequesterIdHeader = "X-User-ID"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100

	DefaultMaxItemsPerSync = 50
	DefaultIntervalMinutes = 30
	DefaultSyncConcurrency = 4
)

// Trending timeframes map to fixed hour counts. No fuzzy parsing.
var TrendingTimeframes = map[string]int{
	"1h":  1,
	"6h":  6,
	"24h": 24,
	"7d":  168,
}
