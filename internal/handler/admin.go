package handler

import (
	"log/slog"
	"net/http"
	"strconv"
)

func (h *Handler) handleAdminResults(w http.ResponseWriter, r *http.Request) {
	includePartial, _ := strconv.ParseBool(r.URL.Query().Get("include_partial"))
	export, err := h.store.ExportResults(includePartial)
	if err != nil {
		slog.Error("failed to export results", "error", err)
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}
