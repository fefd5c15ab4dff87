package domain

import (
	"github.com/kinokawa/feedsync"
)

// Preferences drive the personalized feed ranking. How they are
// learned is a policy concern behind an injectable port; the engine
// only consumes them.
type Preferences struct {
	PreferredTypes    []feedsync.ItemType `json:"preferredTypes"`
	PreferredKeywords []string            `json:"preferredKeywords"`
}
