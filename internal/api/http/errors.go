package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/abakus-kids/academy/internal/auth"
	"github.com/abakus-kids/academy/internal/catalog"
	"github.com/abakus-kids/academy/internal/enrollment"
	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
)

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, quiz.ErrAttemptLimitExceeded):
		http.Error(w, "no attempts left", http.StatusForbidden)
	case errors.Is(err, quiz.ErrAccessDenied):
		http.Error(w, "access denied", http.StatusForbidden)
	case errors.Is(err, quiz.ErrNotFound), errors.Is(err, catalog.ErrNotFound), errors.Is(err, enrollment.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, quiz.ErrInvalidAttemptState):
		http.Error(w, "attempt not in progress", http.StatusConflict)
	case errors.Is(err, auth.ErrUserExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrInvalidQuestion), errors.Is(err, quiz.ErrInvalidQuiz),
		errors.Is(err, catalog.ErrInvalid), errors.Is(err, enrollment.ErrInvalidStatus),
		errors.Is(err, auth.ErrInvalidUser):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rawAnswer accepts a JSON string or any inline JSON value (the flash-card
// payload) and returns the text recorded on the attempt.
func rawAnswer(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return string(m)
}
