package quest

import (
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/alicorn/internal/catalog"
	"github.com/pavelanni/alicorn/internal/model"
)

// ErrCatalogChanged is returned by Restore when the snapshot was taken against
// a different catalog version.
var ErrCatalogChanged = errors.New("catalog version changed")

// Snapshot is the flat, JSON-serializable state of a session. Queued intents
// are not part of it.
type Snapshot struct {
	ID             string                              `json:"id"`
	CatalogVersion string                              `json:"catalog_version,omitempty"`
	State          State                               `json:"state"`
	Stakeholder    model.Stakeholder                   `json:"stakeholder,omitempty"`
	LevelIndex     int                                 `json:"level_index"`
	Aspirational   bool                                `json:"aspirational"`
	Answers        map[model.LevelPass]model.AnswerMap `json:"answers"`
	Records        []model.LevelRecord                 `json:"records"`
	StartedAt      time.Time                           `json:"started_at"`
	Result         *model.AssessmentResult             `json:"result,omitempty"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	answers := make(map[model.LevelPass]model.AnswerMap, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v.Clone()
	}
	snap := Snapshot{
		ID:             s.id,
		CatalogVersion: s.catalog.Version(),
		State:          s.state,
		Stakeholder:    s.stakeholder,
		LevelIndex:     s.levelIdx,
		Aspirational:   s.aspirational,
		Answers:        answers,
		Records:        cloneRecords(s.records),
		StartedAt:      s.startedAt,
	}
	if r, ok := s.Result(); ok {
		snap.Result = &r
	}
	return snap
}

// Restore rebuilds a session from a snapshot taken against the same catalog.
func Restore(c *catalog.Catalog, snap Snapshot, opts ...Option) (*Session, error) {
	if !snap.State.valid() {
		return nil, fmt.Errorf("restore %s: unknown state %q", snap.ID, snap.State)
	}
	if snap.CatalogVersion != "" && snap.CatalogVersion != c.Version() {
		return nil, fmt.Errorf("restore %s: %w", snap.ID, ErrCatalogChanged)
	}
	if snap.LevelIndex < 0 || snap.LevelIndex >= c.Len() {
		return nil, fmt.Errorf("restore %s: level index %d out of range", snap.ID, snap.LevelIndex)
	}
	if snap.State != StateIdle && !snap.Stakeholder.Valid() {
		return nil, fmt.Errorf("restore %s: %w: %q", snap.ID, ErrUnknownStakeholder, snap.Stakeholder)
	}
	for _, r := range snap.Records {
		if _, ok := c.Level(r.Level); !ok {
			return nil, fmt.Errorf("restore %s: record for unknown level %s", snap.ID, r.Level)
		}
	}

	s := New(c, append([]Option{WithID(snap.ID)}, opts...)...)
	s.state = snap.State
	s.stakeholder = snap.Stakeholder
	s.levelIdx = snap.LevelIndex
	s.aspirational = snap.Aspirational
	s.startedAt = snap.StartedAt
	s.records = cloneRecords(snap.Records)
	for k, v := range snap.Answers {
		s.answers[k] = v.Clone()
	}
	if snap.Result != nil {
		r := *snap.Result
		r.Responses = cloneRecords(r.Responses)
		s.result = &r
	}
	return s, nil
}
