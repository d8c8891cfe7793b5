package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/alicorn/internal/i18n"
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/quest"
)

// questEntry is a live session in the registry. Each session has a single
// owner, but requests for it may still arrive concurrently.
type questEntry struct {
	mu        sync.Mutex
	accountID int64
	sess      *quest.Session
}

type startQuestRequest struct {
	AccountID   int64             `json:"account_id"`
	Stakeholder model.Stakeholder `json:"stakeholder,omitempty"`
}

type answerRequest struct {
	Code       string `json:"code"`
	Confidence int    `json:"confidence"`
}

type intentsRequest struct {
	Intents []quest.Intent `json:"intents"`
}

type questView struct {
	ID           string            `json:"id"`
	AccountID    int64             `json:"account_id,omitempty"`
	State        quest.State       `json:"state"`
	Stakeholder  model.Stakeholder `json:"stakeholder,omitempty"`
	Perspective  string            `json:"perspective,omitempty"`
	Pass         model.Pass        `json:"pass"`
	Level        *levelView        `json:"level,omitempty"`
	Answers      model.AnswerMap   `json:"answers"`
	Progress     float64           `json:"progress"`
	Remaining    string            `json:"remaining,omitempty"`
	GleamsEarned int               `json:"gleams_earned"`
}

type intentsResponse struct {
	quest.Outcome
	Quest questView `json:"quest"`
}

func (h *Handler) questView(r *http.Request, e *questEntry) questView {
	s := e.sess
	v := questView{
		ID:           s.ID(),
		AccountID:    e.accountID,
		State:        s.State(),
		Stakeholder:  s.Stakeholder(),
		Pass:         s.Pass(),
		Answers:      s.Answers(),
		Progress:     s.Progress(),
		GleamsEarned: s.GleamsEarned(),
	}
	if s.Stakeholder() != "" {
		v.Perspective = appI18n.StakeholderName(r.Context(), s.Stakeholder())
	}
	if s.State() == quest.StateInProgress || s.State() == quest.StatePaused {
		lv := h.levelView(r, s.CurrentLevel(), s.Stakeholder())
		v.Level = &lv
		left := max(h.catalog.Len()*2-len(s.Records()), 0)
		v.Remaining = appI18n.Tp(r.Context(), "LevelsRemaining", left)
	}
	return v
}

// lookup returns a live session, restoring it from its snapshot when it is
// not in memory. It returns nil, nil for unknown quests. Finished quests are
// restored on each lookup and never kept in the registry.
func (h *Handler) lookup(id string) (*questEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.quests[id]; ok {
		return e, nil
	}
	qs, err := h.store.GetSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if qs == nil {
		return nil, nil
	}
	sess, err := quest.Restore(h.catalog, qs.Snapshot)
	if err != nil {
		return nil, err
	}
	e := &questEntry{accountID: qs.AccountID, sess: sess}
	if !sess.State().Terminal() {
		h.quests[id] = e
		slog.Info("restored quest", "quest_id", id, "state", sess.State())
	}
	return e, nil
}

func (h *Handler) register(e *questEntry) {
	h.mu.Lock()
	h.quests[e.sess.ID()] = e
	h.mu.Unlock()
}

func (h *Handler) evict(id string) {
	h.mu.Lock()
	delete(h.quests, id)
	h.mu.Unlock()
}

// mutate runs fn against a quest under its lock, then persists the session.
// If persisting fails the session is rolled back to its state before fn, so
// the request can be retried.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(e *questEntry) error) bool {
	id := chi.URLParam(r, "questID")
	e, err := h.lookup(id)
	if err != nil {
		writeQuestError(w, r, err)
		return false
	}
	if e == nil {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.sess.Snapshot()
	fnErr := fn(e)
	if fnErr == nil || e.sess.State() != before.State {
		if err := h.persist(r, e, before.State); err != nil {
			h.rollback(e, before)
			writeInternal(w, r, err)
			return false
		}
		if e.sess.State().Terminal() {
			h.evict(id)
		}
	}
	if fnErr != nil {
		writeQuestError(w, r, fnErr)
		return false
	}
	return true
}

func (h *Handler) rollback(e *questEntry, snap quest.Snapshot) {
	sess, err := quest.Restore(h.catalog, snap)
	if err != nil {
		// The stored snapshot is the only safe copy left.
		slog.Error("failed to roll back quest", "quest_id", snap.ID, "error", err)
		h.evict(snap.ID)
		return
	}
	e.sess = sess
}

// persist saves the session. When it has just finished, the final snapshot,
// the result and the owner's credit are stored together, then the
// leaderboard is updated.
func (h *Handler) persist(r *http.Request, e *questEntry, before quest.State) error {
	if before.Terminal() || !e.sess.State().Terminal() {
		return h.store.SaveSnapshot(e.accountID, e.sess.Snapshot())
	}
	res, ok := e.sess.Result()
	if !ok {
		return h.store.SaveSnapshot(e.accountID, e.sess.Snapshot())
	}
	res.AccountID = e.accountID
	acct, err := h.store.FinishQuest(e.accountID, e.sess.Snapshot(), res)
	if err != nil {
		return fmt.Errorf("finish quest %s: %w", res.QuestID, err)
	}
	slog.Info("quest finished",
		"quest_id", res.QuestID,
		"account_id", res.AccountID,
		"complete", res.Complete,
		"current_score", res.CurrentScore,
		"aspirational_score", res.AspirationalScore,
		"gleams", res.GleamsEarned,
	)
	if acct != nil {
		if err := h.board.Record(r.Context(), acct.ID, acct.ExecutionScore); err != nil {
			// The account is already credited; the board catches up on the next result.
			slog.Warn("failed to update leaderboard", "account_id", acct.ID, "error", err)
		}
	}
	return nil
}

func (h *Handler) handleStartQuest(w http.ResponseWriter, r *http.Request) {
	var req startQuestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	if req.AccountID != 0 {
		acct, err := h.store.GetAccount(req.AccountID)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		if acct == nil {
			writeError(w, r, http.StatusNotFound, "ErrNotFound")
			return
		}
	}

	e := &questEntry{accountID: req.AccountID, sess: quest.New(h.catalog)}
	if req.Stakeholder != "" {
		if err := e.sess.Start(req.Stakeholder); err != nil {
			writeQuestError(w, r, err)
			return
		}
	}
	if err := h.store.SaveSnapshot(e.accountID, e.sess.Snapshot()); err != nil {
		writeInternal(w, r, err)
		return
	}
	h.register(e)
	slog.Info("quest created", "quest_id", e.sess.ID(), "account_id", e.accountID, "stakeholder", req.Stakeholder)

	w.Header().Set("Location", h.path("/quests/"+e.sess.ID()))
	writeJSON(w, http.StatusCreated, h.questView(r, e))
}

func (h *Handler) handleGetQuest(w http.ResponseWriter, r *http.Request) {
	e, err := h.lookup(chi.URLParam(r, "questID"))
	if err != nil {
		writeQuestError(w, r, err)
		return
	}
	if e == nil {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	e.mu.Lock()
	view := h.questView(r, e)
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	var view questView
	ok := h.mutate(w, r, func(e *questEntry) error {
		if err := e.sess.Answer(req.Code, req.Confidence); err != nil {
			return err
		}
		view = h.questView(r, e)
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var view questView
	ok := h.mutate(w, r, func(e *questEntry) error {
		if err := e.sess.AdvanceLevel(); err != nil {
			return err
		}
		view = h.questView(r, e)
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleIntents(w http.ResponseWriter, r *http.Request) {
	var req intentsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	for _, in := range req.Intents {
		if _, err := quest.ParseIntentKind(string(in.Kind)); err != nil {
			writeError(w, r, http.StatusBadRequest, "ErrUnknownIntent")
			return
		}
	}

	var resp intentsResponse
	ok := h.mutate(w, r, func(e *questEntry) error {
		for _, in := range req.Intents {
			e.sess.Request(in)
		}
		out := e.sess.Dispatch()
		if out.Err != nil {
			return out.Err
		}
		resp = intentsResponse{Outcome: out, Quest: h.questView(r, e)}
		return nil
	})
	if ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questID")
	res, err := h.store.GetResult(id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if res != nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	// No stored result; the quest may still be running.
	e, err := h.lookup(id)
	if err != nil {
		writeQuestError(w, r, err)
		return
	}
	if e == nil {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	writeError(w, r, http.StatusConflict, "ErrInvalidTransition")
}
