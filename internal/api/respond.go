package api

import (
	"encoding/json"
	"net/http"

	"github.com/AVIDS2/memorix/internal/memerr"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeKindError maps a kinded error to an HTTP status. Plain errors are
// treated as bad requests since every handler validates before acting.
func writeKindError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch memerr.KindOf(err) {
	case memerr.KindNotFound:
		status = http.StatusNotFound
	case memerr.KindConflict:
		status = http.StatusConflict
	case memerr.KindLockTimeout:
		status = http.StatusServiceUnavailable
	case memerr.KindIntegrityError:
		status = http.StatusInternalServerError
	}
	writeError(w, status, err.Error())
}
