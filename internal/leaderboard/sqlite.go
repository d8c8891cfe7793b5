package leaderboard

import (
	"context"

	"github.com/pavelanni/alicorn/internal/store"
)

type sqliteBoard struct {
	store *store.Store
}

// NewSQLite returns a board that reads rankings straight from the accounts
// table. Accounts are credited by the store, so Record has nothing to do.
func NewSQLite(s *store.Store) Board {
	return &sqliteBoard{store: s}
}

func (b *sqliteBoard) Record(ctx context.Context, accountID int64, score int) error {
	return nil
}

func (b *sqliteBoard) Top(ctx context.Context, limit int) ([]Entry, error) {
	accounts, err := b.store.ListAccountsByScore(limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(accounts))
	for i, a := range accounts {
		entries[i] = Entry{
			AccountID:   a.ID,
			DisplayName: a.DisplayName,
			Score:       a.ExecutionScore,
		}
	}
	assignRanks(entries)
	return entries, nil
}

func (b *sqliteBoard) Rank(ctx context.Context, accountID int64) (int64, error) {
	return b.store.AccountRank(accountID)
}
