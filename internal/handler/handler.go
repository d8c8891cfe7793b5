package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/alicorn/internal/catalog"
	appI18n "github.com/pavelanni/alicorn/internal/i18n"
	"github.com/pavelanni/alicorn/internal/leaderboard"
	"github.com/pavelanni/alicorn/internal/merit"
	"github.com/pavelanni/alicorn/internal/model"
	"github.com/pavelanni/alicorn/internal/quest"
	"github.com/pavelanni/alicorn/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	catalog *catalog.Catalog
	merit   *merit.Table
	board   leaderboard.Board
	config  model.ServerConfig

	mu     sync.Mutex
	quests map[string]*questEntry
}

// New creates a new Handler.
func New(s *store.Store, c *catalog.Catalog, t *merit.Table, b leaderboard.Board, cfg model.ServerConfig) (*Handler, error) {
	if s == nil || c == nil || t == nil || b == nil {
		return nil, errors.New("handler: store, catalog, merit table and leaderboard are required")
	}
	return &Handler{
		store:   s,
		catalog: c,
		merit:   t,
		board:   b,
		config:  cfg,
		quests:  make(map[string]*questEntry),
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)

	r.Get("/catalog/levels", h.handleListLevels)
	r.Get("/catalog/levels/{levelID}", h.handleGetLevel)
	r.Get("/catalog/questions/{code}/guidance", h.handleGuidance)

	r.Post("/accounts", h.handleCreateAccount)
	r.Get("/accounts/{accountID}/merit", h.handleMerit)
	r.Get("/accounts/{accountID}/quests", h.handleResumable)

	r.Post("/quests", h.handleStartQuest)
	r.Get("/quests/{questID}", h.handleGetQuest)
	r.Post("/quests/{questID}/answers", h.handleAnswer)
	r.Post("/quests/{questID}/advance", h.handleAdvance)
	r.Post("/quests/{questID}/intents", h.handleIntents)
	r.Get("/quests/{questID}/result", h.handleResult)

	r.Get("/leaderboard", h.handleLeaderboard)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/admin/results", h.handleAdminResults)
	})
}

type indexResponse struct {
	Name           string `json:"name"`
	CatalogVersion string `json:"catalog_version"`
	Levels         int    `json:"levels"`
	Leaderboard    string `json:"leaderboard"`
	Quests         string `json:"quests"`
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Name:           appI18n.T(r.Context(), "AppTitle"),
		CatalogVersion: h.catalog.Version(),
		Levels:         h.catalog.Len(),
		Leaderboard:    h.config.Leaderboard,
		Quests:         model.BasePathFromContext(r.Context()) + "/quests",
	})
}

// BasePathMiddleware stores the configured URL prefix in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError responds with a localized message.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID)})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "ErrInternal")
}

// writeQuestError maps session errors to status codes.
func writeQuestError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quest.ErrInvalidConfidence):
		writeError(w, r, http.StatusBadRequest, "ErrInvalidConfidence")
	case errors.Is(err, quest.ErrUnknownQuestion):
		writeError(w, r, http.StatusBadRequest, "ErrUnknownQuestion")
	case errors.Is(err, quest.ErrUnknownStakeholder):
		writeError(w, r, http.StatusBadRequest, "ErrUnknownStakeholder")
	case errors.Is(err, quest.ErrInvalidTransition):
		writeError(w, r, http.StatusConflict, "ErrInvalidTransition")
	case errors.Is(err, quest.ErrCatalogChanged):
		writeError(w, r, http.StatusConflict, "ErrQuestStale")
	default:
		writeInternal(w, r, err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	return id, err == nil && id > 0
}
