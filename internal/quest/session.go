// Package quest implements the two-pass assessment session.
//
// A Session is single-owner and synchronous: every operation runs to completion
// and none of them perform I/O. Hosts that share sessions between goroutines
// must serialize access themselves.
package quest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/alicorn/internal/catalog"
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/scoring"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StatePaused     State = "paused"
	StateCompleted  State = "completed"
	StateExited     State = "exited"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExited
}

func (s State) valid() bool {
	switch s {
	case StateIdle, StateInProgress, StatePaused, StateCompleted, StateExited:
		return true
	}
	return false
}

var (
	// ErrInvalidConfidence is returned for answers outside 1..5.
	ErrInvalidConfidence = errors.New("confidence out of range")
	// ErrUnknownQuestion is returned for codes that are not part of the current level.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrInvalidTransition is returned when the current state does not permit an operation.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrUnknownStakeholder is returned by Start for stakeholders outside the fixed set.
	ErrUnknownStakeholder = errors.New("unknown stakeholder")
)

// Session is one questionnaire run.
type Session struct {
	id      string
	catalog *catalog.Catalog
	now     func() time.Time

	state        State
	stakeholder  model.Stakeholder
	levelIdx     int
	aspirational bool
	answers      map[model.LevelPass]model.AnswerMap
	records      []model.LevelRecord
	startedAt    time.Time
	result       *model.AssessmentResult

	intents []Intent
}

// Option configures a new Session.
type Option func(*Session)

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates an idle session over the catalog.
func New(c *catalog.Catalog, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		catalog: c,
		now:     time.Now,
		state:   StateIdle,
		answers: make(map[model.LevelPass]model.AnswerMap),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Stakeholder returns the perspective chosen at Start.
func (s *Session) Stakeholder() model.Stakeholder { return s.stakeholder }

// Aspirational reports whether the session is in the aspirational pass.
func (s *Session) Aspirational() bool { return s.aspirational }

// Pass returns the current pass.
func (s *Session) Pass() model.Pass { return model.PassFor(s.aspirational) }

// StartedAt returns when Start was called.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// CurrentLevel returns the level the pointer is on.
func (s *Session) CurrentLevel() model.Level {
	lvl, _ := s.catalog.LevelAt(s.levelIdx)
	return lvl
}

// Answers returns a copy of the answers given for the current level and pass.
func (s *Session) Answers() model.AnswerMap {
	return s.answers[s.key()].Clone()
}

// Records returns the scored levels so far, oldest first.
func (s *Session) Records() []model.LevelRecord {
	return cloneRecords(s.records)
}

// GleamsEarned is the sum of gleams over every scored level of this run.
func (s *Session) GleamsEarned() int {
	total := 0
	for _, r := range s.records {
		total += r.Gleams
	}
	return total
}

// Progress is the share of level visits already scored, in percent. Every level
// is visited twice, once per pass.
func (s *Session) Progress() float64 {
	visits := s.catalog.Len() * 2
	if visits == 0 {
		return 0
	}
	return float64(len(s.records)) / float64(visits) * 100
}

// Result returns the result produced on completion or exit.
func (s *Session) Result() (model.AssessmentResult, bool) {
	if s.result == nil {
		return model.AssessmentResult{}, false
	}
	r := *s.result
	r.Responses = cloneRecords(r.Responses)
	return r, true
}

func (s *Session) key() model.LevelPass {
	return model.LevelPass{Level: s.CurrentLevel().ID, Aspirational: s.aspirational}
}

func (s *Session) transitionErr(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s.state)
}

// Start begins the current pass at the first level for the stakeholder.
func (s *Session) Start(stakeholder model.Stakeholder) error {
	if s.state != StateIdle {
		return s.transitionErr("start")
	}
	if !stakeholder.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStakeholder, stakeholder)
	}
	s.stakeholder = stakeholder
	s.levelIdx = 0
	s.aspirational = false
	s.answers = make(map[model.LevelPass]model.AnswerMap)
	s.records = nil
	s.result = nil
	s.startedAt = s.now()
	s.state = StateInProgress
	slog.Debug("quest started", "quest_id", s.id, "stakeholder", stakeholder)
	return nil
}

// Answer records a confidence value for a question of the current level.
// Rejected answers leave the session unchanged.
func (s *Session) Answer(code string, confidence int) error {
	if s.state != StateInProgress {
		return s.transitionErr("answer")
	}
	if confidence < model.MinConfidence || confidence > model.MaxConfidence {
		return fmt.Errorf("%w: %d", ErrInvalidConfidence, confidence)
	}
	if !levelHasQuestion(s.CurrentLevel(), code) {
		return fmt.Errorf("%w: %q in level %s", ErrUnknownQuestion, code, s.CurrentLevel().ID)
	}
	k := s.key()
	if s.answers[k] == nil {
		s.answers[k] = make(model.AnswerMap)
	}
	s.answers[k][code] = confidence
	return nil
}

// AdvanceLevel scores the current level and moves to the next one. After the
// last level of the current pass the aspirational pass starts over at the
// first level; after the last level of the aspirational pass the session completes.
func (s *Session) AdvanceLevel() error {
	if s.state != StateInProgress {
		return s.transitionErr("advance")
	}
	lvl := s.CurrentLevel()
	answers := s.answers[s.key()]
	rec := model.LevelRecord{
		Level:          lvl.ID,
		IsAspirational: s.aspirational,
		Score:          scoring.LevelScore(answers),
		Gleams:         scoring.GleamsForLevel(answers, lvl),
		Alicorns:       scoring.AlicornsForLevel(answers, lvl),
		Responses:      answers.Clone(),
	}
	s.records = append(s.records, rec)
	slog.Debug("level scored", "quest_id", s.id, "level", lvl.ID, "pass", s.Pass(), "score", rec.Score, "gleams", rec.Gleams)

	if s.levelIdx < s.catalog.Len()-1 {
		s.levelIdx++
		return nil
	}
	if !s.aspirational {
		s.aspirational = true
		s.levelIdx = 0
		return nil
	}
	s.complete()
	return nil
}

func (s *Session) complete() {
	res := Aggregate(s)
	res.Complete = true
	s.result = &res
	s.state = StateCompleted
	slog.Debug("quest completed", "quest_id", s.id, "current_score", res.CurrentScore, "aspirational_score", res.AspirationalScore)
}

// Pause suspends an in-progress session. Pausing a paused session is a no-op.
func (s *Session) Pause() error {
	switch s.state {
	case StatePaused:
		return nil
	case StateInProgress:
		s.state = StatePaused
		return nil
	}
	return s.transitionErr("pause")
}

// Resume continues a paused session. Resuming an in-progress session is a no-op.
func (s *Session) Resume() error {
	switch s.state {
	case StateInProgress:
		return nil
	case StatePaused:
		s.state = StateInProgress
		return nil
	}
	return s.transitionErr("resume")
}

// Exit abandons the session. Answers of the current, unscored level are
// discarded; scored levels are kept and summarized in a partial result.
func (s *Session) Exit() error {
	if s.state != StateInProgress && s.state != StatePaused {
		return s.transitionErr("exit")
	}
	delete(s.answers, s.key())
	res := Aggregate(s)
	s.result = &res
	s.state = StateExited
	slog.Debug("quest exited", "quest_id", s.id, "scored_levels", len(s.records))
	return nil
}

func levelHasQuestion(lvl model.Level, code string) bool {
	for _, q := range lvl.Questions {
		if q.Code == code {
			return true
		}
	}
	return false
}

func cloneRecords(in []model.LevelRecord) []model.LevelRecord {
	if in == nil {
		return nil
	}
	out := make([]model.LevelRecord, len(in))
	for i, r := range in {
		r.Responses = r.Responses.Clone()
		out[i] = r
	}
	return out
}
