package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	appI18n "github.com/pavelanni/alicorn/internal/i18n"
	"github.com/pavelanni/alicorn/internal/model"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type createAccountRequest struct {
	DisplayName string `json:"display_name"`
}

type meritResponse struct {
	model.MeritStatus
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name"`
	NextLevel   string `json:"next_level"`
	Rank        int64  `json:"rank"`
	Label       string `json:"label"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	id, err := h.store.CreateAccount(name)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	acct, err := h.createdAccount(id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	w.Header().Set("Location", h.path("/accounts/"+strconv.FormatInt(id, 10)+"/merit"))
	writeJSON(w, http.StatusCreated, acct)
}

// createdAccount reads back an account that was just inserted.
func (h *Handler) createdAccount(id int64) (*model.Account, error) {
	acct, err := h.store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d vanished after insert", id)
	}
	return acct, nil
}

func (h *Handler) handleMerit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "accountID")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	acct, err := h.store.GetAccount(id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if acct == nil {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	rank, err := h.board.Rank(r.Context(), id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	status := h.merit.Status(*acct)
	resp := meritResponse{
		MeritStatus: status,
		AccountID:   acct.ID,
		DisplayName: acct.DisplayName,
		NextLevel:   h.merit.NextLevel(status.MeritLevel),
		Rank:        rank,
	}
	resp.Label = appI18n.MeritLabel(r.Context(), status, resp.NextLevel)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleResumable(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r, "accountID")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
		return
	}
	ids, err := h.store.ListResumable(id)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"quest_ids": ids})
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "ErrBadRequest")
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	entries, err := h.board.Top(r.Context(), limit)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	// The Redis board only knows account ids.
	for i := range entries {
		if entries[i].DisplayName != "" {
			continue
		}
		acct, err := h.store.GetAccount(entries[i].AccountID)
		if err != nil {
			writeInternal(w, r, err)
			return
		}
		if acct != nil {
			entries[i].DisplayName = acct.DisplayName
		}
	}
	writeJSON(w, http.StatusOK, entries)
}
