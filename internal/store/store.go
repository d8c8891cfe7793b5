package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/alicorn/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by updates that target a missing row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		display_name TEXT NOT NULL,
		execution_score INTEGER NOT NULL DEFAULT 0,
		total_gleams INTEGER NOT NULL DEFAULT 0,
		total_alicorns REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		quest_id TEXT PRIMARY KEY,
		account_id INTEGER NOT NULL DEFAULT 0,
		stakeholder TEXT NOT NULL,
		current_level TEXT NOT NULL DEFAULT '',
		aspirational_level TEXT NOT NULL DEFAULT '',
		current_score INTEGER NOT NULL DEFAULT 0,
		aspirational_score INTEGER NOT NULL DEFAULT 0,
		gap INTEGER NOT NULL DEFAULT 0,
		gleams_earned INTEGER NOT NULL DEFAULT 0,
		alicorns_earned REAL NOT NULL DEFAULT 0,
		complete INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		responses TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_results_account ON results(account_id);

	CREATE TABLE IF NOT EXISTS quest_snapshots (
		quest_id TEXT PRIMARY KEY,
		account_id INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const resultColumns = `quest_id, account_id, stakeholder, current_level, aspirational_level,
	current_score, aspirational_score, gap, gleams_earned, alicorns_earned, complete, created_at, responses`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (model.AssessmentResult, error) {
	var r model.AssessmentResult
	var responses string
	err := row.Scan(&r.QuestID, &r.AccountID, &r.Stakeholder, &r.CurrentLevel, &r.AspirationalLevel,
		&r.CurrentScore, &r.AspirationalScore, &r.Gap, &r.GleamsEarned, &r.AlicornsEarned,
		&r.Complete, &r.Timestamp, &responses)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(responses), &r.Responses); err != nil {
		return r, fmt.Errorf("decode responses for %s: %w", r.QuestID, err)
	}
	return r, nil
}

// SaveResult stores a result and, when it is complete and owned by an account,
// credits the account's lifetime totals in the same transaction. It returns the
// updated account, or nil when no account was credited.
func (s *Store) SaveResult(r model.AssessmentResult) (*model.Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := saveResult(tx, r)
	if err != nil {
		return nil, err
	}
	return acct, tx.Commit()
}

func saveResult(tx *sql.Tx, r model.AssessmentResult) (*model.Account, error) {
	responses, err := json.Marshal(r.Responses)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO results (`+resultColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.QuestID, r.AccountID, r.Stakeholder, r.CurrentLevel, r.AspirationalLevel,
		r.CurrentScore, r.AspirationalScore, r.Gap, r.GleamsEarned, r.AlicornsEarned,
		r.Complete, r.Timestamp, string(responses),
	)
	if err != nil {
		return nil, fmt.Errorf("insert result %s: %w", r.QuestID, err)
	}
	if !r.Complete || r.AccountID == 0 {
		return nil, nil
	}
	return creditAccount(tx, r)
}

// GetResult returns the result of a quest, or nil if none was stored.
func (s *Store) GetResult(questID string) (*model.AssessmentResult, error) {
	row := s.db.QueryRow(`SELECT `+resultColumns+` FROM results WHERE quest_id = ?`, questID)
	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResults returns stored results, oldest first. Partial results are
// skipped unless includePartial is set.
func (s *Store) ListResults(includePartial bool) ([]model.AssessmentResult, error) {
	query := `SELECT ` + resultColumns + ` FROM results`
	if !includePartial {
		query += ` WHERE complete = 1`
	}
	query += ` ORDER BY created_at, quest_id`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.AssessmentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListResultsByAccount returns an account's results, newest first.
func (s *Store) ListResultsByAccount(accountID int64) ([]model.AssessmentResult, error) {
	rows, err := s.db.Query(
		`SELECT `+resultColumns+` FROM results WHERE account_id = ? ORDER BY created_at DESC, quest_id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.AssessmentResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}
