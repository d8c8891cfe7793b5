package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/quest"
)

// StaleSnapshotTTL is how long an untouched quest can be resumed.
const StaleSnapshotTTL = 30 * 24 * time.Hour

// QuestSnapshot is a persisted quest with its owner.
type QuestSnapshot struct {
	AccountID int64
	Snapshot  quest.Snapshot
	UpdatedAt time.Time
}

// SaveSnapshot inserts or replaces the stored state of a quest.
func (s *Store) SaveSnapshot(accountID int64, snap quest.Snapshot) error {
	return saveSnapshot(s.db, accountID, snap)
}

// FinishQuest stores a finished quest's final snapshot together with its
// result, crediting the owner as SaveResult does. Nothing is written unless
// every step succeeds.
func (s *Store) FinishQuest(accountID int64, snap quest.Snapshot, r model.AssessmentResult) (*model.Account, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	acct, err := saveResult(tx, r)
	if err != nil {
		return nil, err
	}
	if err := saveSnapshot(tx, accountID, snap); err != nil {
		return nil, err
	}
	return acct, tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveSnapshot(db execer, accountID int64, snap quest.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	_, err = db.Exec(
		`INSERT INTO quest_snapshots (quest_id, account_id, state, snapshot, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(quest_id) DO UPDATE SET state = excluded.state, snapshot = excluded.snapshot,
		 updated_at = excluded.updated_at`,
		snap.ID, accountID, string(snap.State), string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// GetSnapshot returns the stored state of a quest, or nil if not found.
func (s *Store) GetSnapshot(questID string) (*QuestSnapshot, error) {
	var qs QuestSnapshot
	var data string
	err := s.db.QueryRow(
		`SELECT account_id, snapshot, updated_at FROM quest_snapshots WHERE quest_id = ?`, questID,
	).Scan(&qs.AccountID, &data, &qs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &qs.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", questID, err)
	}
	return &qs, nil
}

// ListResumable returns the ids of an account's quests that are still open.
func (s *Store) ListResumable(accountID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT quest_id FROM quest_snapshots
		 WHERE account_id = ? AND state IN (?, ?, ?) ORDER BY updated_at DESC`,
		accountID, string(quest.StateIdle), string(quest.StateInProgress), string(quest.StatePaused),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSnapshot removes a stored quest.
func (s *Store) DeleteSnapshot(questID string) error {
	_, err := s.db.Exec(`DELETE FROM quest_snapshots WHERE quest_id = ?`, questID)
	return err
}

// CleanupStaleSnapshots removes quests not touched within StaleSnapshotTTL and
// returns how many were removed.
func (s *Store) CleanupStaleSnapshots() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quest_snapshots WHERE updated_at < ?`, time.Now().Add(-StaleSnapshotTTL))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
