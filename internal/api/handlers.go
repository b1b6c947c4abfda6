package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AVIDS2/memorix/internal/memory"
	"github.com/AVIDS2/memorix/internal/models"
)

// Handler serves the dashboard routes over the service façade.
type Handler struct {
	svc *memory.Service
}

func NewHandler(svc *memory.Service) *Handler {
	return &Handler{svc: svc}
}

// Health reports liveness and the project this process serves.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"project": h.svc.ProjectID(),
	})
}

// ListObservations returns the project's live records newest first.
// ?projectId overrides the detected project, ?limit caps the page.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	records := h.svc.Observations(r.URL.Query().Get("projectId"))
	if limit := queryInt(r, "limit"); limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"observations": records,
		"count":        len(records),
	})
}

// GetObservation returns one full record by id.
func (h *Handler) GetObservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	records, err := h.svc.Get([]int64{id})
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records[0])
}

// Search runs the same hybrid search the MCP surface exposes.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := h.svc.Search(req)
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSessions returns every session, newest last.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.svc.Sessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// Graph returns the full knowledge graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ReadGraph())
}

// Retention returns the scored report without archiving anything. The
// dashboard is read-only; archival stays on the MCP surface.
func (h *Handler) Retention(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.RetentionReport(r.URL.Query().Get("projectId"))
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// Stats returns the project summary.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.URL.Query().Get("projectId"))
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
