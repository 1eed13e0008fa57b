package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mravshan/libra/internal/errs"
)

// envelope is the wire shape all success responses share.
type envelope struct {
	Data any `json:"data"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeServiceError maps sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, errs.ErrBorrowActive):
		writeError(w, http.StatusConflict, "borrow already active")
	case errors.Is(err, errs.ErrNotBorrowed):
		writeError(w, http.StatusConflict, "not borrowed")
	default:
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
