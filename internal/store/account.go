package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/scoring"
)

const accountColumns = `id, display_name, execution_score, total_gleams, total_alicorns, created_at`

// CreateAccount inserts a new account with zero lifetime totals.
func (s *Store) CreateAccount(displayName string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO accounts (display_name, created_at) VALUES (?, ?)`,
		displayName, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create account", "display_name", displayName, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created account", "id", id, "display_name", displayName)
	return id, nil
}

// GetAccount returns an account by ID, or nil if it does not exist.
func (s *Store) GetAccount(id int64) (*model.Account, error) {
	return getAccount(s.db, id)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getAccount(q queryRower, id int64) (*model.Account, error) {
	var a model.Account
	err := q.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.DisplayName, &a.ExecutionScore, &a.TotalGleams, &a.TotalAlicorns, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// creditAccount adds a completed result to the owner's lifetime totals.
// The execution score grows by both pass scores.
func creditAccount(tx *sql.Tx, r model.AssessmentResult) (*model.Account, error) {
	acct, err := getAccount(tx, r.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", r.AccountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d: %w", r.AccountID, ErrNotFound)
	}

	acct.ExecutionScore += r.CurrentScore + r.AspirationalScore
	acct.TotalGleams += r.GleamsEarned
	acct.TotalAlicorns = scoring.RoundCents(acct.TotalAlicorns + r.AlicornsEarned)

	_, err = tx.Exec(
		`UPDATE accounts SET execution_score = ?, total_gleams = ?, total_alicorns = ? WHERE id = ?`,
		acct.ExecutionScore, acct.TotalGleams, acct.TotalAlicorns, acct.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("credit account %d: %w", acct.ID, err)
	}
	slog.Info("credited account", "id", acct.ID, "quest_id", r.QuestID, "execution_score", acct.ExecutionScore)
	return acct, nil
}

// ListAccountsByScore returns up to limit accounts, highest execution score first.
func (s *Store) ListAccountsByScore(limit int) ([]model.Account, error) {
	rows, err := s.db.Query(
		`SELECT `+accountColumns+` FROM accounts ORDER BY execution_score DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.ExecutionScore, &a.TotalGleams, &a.TotalAlicorns, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AccountRank returns the 1-based position of an account ordered by execution
// score, or -1 if the account does not exist. Ties share the better rank.
func (s *Store) AccountRank(id int64) (int64, error) {
	acct, err := s.GetAccount(id)
	if err != nil || acct == nil {
		return -1, err
	}
	var higher int64
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM accounts WHERE execution_score > ?`, acct.ExecutionScore,
	).Scan(&higher)
	if err != nil {
		return -1, err
	}
	return higher + 1, nil
}

// AccountCount returns the total number of accounts.
func (s *Store) AccountCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}
