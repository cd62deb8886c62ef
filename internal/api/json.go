package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"vintrail/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeStoreProblem maps store sentinel errors onto the response taxonomy:
// missing or foreign-owned plans are 404, a confirm past the window is 409,
// a malformed draft is 400, anything else is 500.
func writeStoreProblem(w http.ResponseWriter, err error, instance string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Plan not found", err.Error(), instance)
	case errors.Is(err, store.ErrExpired):
		writeProblem(w, http.StatusConflict, "Plan expired", err.Error(), instance)
	case errors.Is(err, store.ErrInvalidDraft):
		writeProblem(w, http.StatusBadRequest, "Invalid draft", err.Error(), instance)
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), instance)
	}
}
