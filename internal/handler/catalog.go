package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/alicorn/internal/catalog"
	appI18n "github.com/pavelanni/alicorn/internal/i18n"
	"github.com/pavelanni/alicorn/internal/model"
)

type levelSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Focus         string `json:"focus"`
	QuestionCount int    `json:"question_count"`
}

type questionView struct {
	Code      string         `json:"code"`
	Category  model.Category `json:"category"`
	Dimension string         `json:"dimension,omitempty"`
	Text      string         `json:"text"`
	Gleams    float64        `json:"gleams"`
	Alicorns  float64        `json:"alicorns"`
}

type levelView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Focus       string            `json:"focus"`
	Stakeholder model.Stakeholder `json:"stakeholder"`
	Perspective string            `json:"perspective"`
	Questions   []questionView    `json:"questions"`
}

type guidanceView struct {
	Code       string `json:"code"`
	Confidence int    `json:"confidence"`
	Guidance   string `json:"guidance"`
	Fallback   bool   `json:"fallback"`
}

func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels := h.catalog.Levels()
	out := make([]levelSummary, len(levels))
	for i, l := range levels {
		out[i] = levelSummary{ID: l.ID, Name: l.Name, Focus: l.Focus, QuestionCount: len(l.Questions)}
	}
	w.Header().Set("X-Catalog-Version", h.catalog.Version())
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	lvl, ok := h.catalog.Level(chi.URLParam(r, "levelID"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	s, ok := stakeholderParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "ErrUnknownStakeholder")
		return
	}
	writeJSON(w, http.StatusOK, h.levelView(r, lvl, s))
}

func (h *Handler) levelView(r *http.Request, lvl model.Level, s model.Stakeholder) levelView {
	view := levelView{
		ID:          lvl.ID,
		Name:        lvl.Name,
		Focus:       lvl.Focus,
		Stakeholder: s,
		Perspective: appI18n.StakeholderName(r.Context(), s),
	}
	for i, q := range lvl.Questions {
		text, ok := h.catalog.QuestionText(lvl.ID, i, s)
		if !ok || text == "" {
			text = appI18n.T(r.Context(), "DefaultQuestionText")
		}
		view.Questions = append(view.Questions, questionView{
			Code:      q.Code,
			Category:  q.Category,
			Dimension: q.Dimension,
			Text:      text,
			Gleams:    q.Gleams,
			Alicorns:  q.Alicorns,
		})
	}
	return view
}

func (h *Handler) handleGuidance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	q, _, ok := h.catalog.Question(code)
	if !ok {
		writeError(w, r, http.StatusNotFound, "ErrNotFound")
		return
	}
	s, ok := stakeholderParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "ErrUnknownStakeholder")
		return
	}
	confidence, err := strconv.Atoi(r.URL.Query().Get("confidence"))
	if err != nil || confidence < model.MinConfidence || confidence > model.MaxConfidence {
		writeError(w, r, http.StatusBadRequest, "ErrInvalidConfidence")
		return
	}

	view := guidanceView{Code: code, Confidence: confidence}
	view.Guidance, ok = catalog.ConfidenceGuidance(q, s, confidence)
	if !ok {
		view.Guidance = appI18n.T(r.Context(), "NoGuidance")
		view.Fallback = true
	}
	writeJSON(w, http.StatusOK, view)
}

// stakeholderParam reads ?stakeholder=, defaulting to founder.
func stakeholderParam(r *http.Request) (model.Stakeholder, bool) {
	v := r.URL.Query().Get("stakeholder")
	if v == "" {
		return model.StakeholderFounder, true
	}
	s := model.Stakeholder(v)
	return s, s.Valid()
}
