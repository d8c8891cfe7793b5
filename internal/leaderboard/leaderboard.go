// Package leaderboard ranks accounts by lifetime execution score.
package leaderboard

import (
	"context"
	"fmt"
)

// Entry is a single leaderboard row.
type Entry struct {
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// Board records lifetime scores and answers ranking queries.
// Ranks are 1-based and equal scores share the better rank, so scores
// 300, 150, 150, 90 rank 1, 2, 2, 4. Rank returns -1 for accounts the
// board has never seen.
type Board interface {
	Record(ctx context.Context, accountID int64, score int) error
	Top(ctx context.Context, limit int) ([]Entry, error)
	Rank(ctx context.Context, accountID int64) (int64, error)
}

// Backend names accepted by the serve command.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ValidateBackend reports whether name is a known backend.
func ValidateBackend(name string) error {
	switch name {
	case BackendSQLite, BackendRedis:
		return nil
	}
	return fmt.Errorf("unknown leaderboard backend %q (want %s or %s)", name, BackendSQLite, BackendRedis)
}

// assignRanks numbers entries already sorted by descending score.
func assignRanks(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
