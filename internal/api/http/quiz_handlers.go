package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
	"github.com/abakus-kids/academy/internal/rbac"
)

// Handlers only. Routes live in router.go.

func takePath(quizID, attemptID string) string {
	return fmt.Sprintf("/quizzes/%s/attempts/%s/take", quizID, attemptID)
}

func resultPath(quizID, attemptID string) string {
	return fmt.Sprintf("/quizzes/%s/attempts/%s/result", quizID, attemptID)
}

// GET /quizzes/{quizID}
func QuizViewHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.View(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /quizzes/{quizID}/start
func StartAttemptHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		a, err := svc.Start(r.Context(), rbac.SubjectFromContext(r.Context()), quizID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("Location", takePath(quizID, a.ID))
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /quizzes/{quizID}/attempts/{attemptID}/take
// A closed or overdue attempt redirects to its result.
func TakeHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID, attemptID := chi.URLParam(r, "quizID"), chi.URLParam(r, "attemptID")
		v, err := svc.Take(r.Context(), rbac.SubjectFromContext(r.Context()), quizID, attemptID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if v.Closed {
			http.Redirect(w, r, resultPath(quizID, attemptID), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// POST /quizzes/{quizID}/attempts/{attemptID}/answer
// { "question_id": "...", "answer": "B" | {...}, "time_taken_seconds": 12 }
func AnswerHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID       quiz.QuestionKey `json:"question_id"`
			Answer           json.RawMessage  `json:"answer"`
			TimeTakenSeconds *int             `json:"time_taken_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID.IsZero() {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		err := svc.RecordAnswer(r.Context(), rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "quizID"), chi.URLParam(r, "attemptID"),
			req.QuestionID, rawAnswer(req.Answer), req.TimeTakenSeconds)
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /quizzes/{quizID}/attempts/{attemptID}/submit
// { "answers": { "<question id>": "B" | {...} } }
func SubmitHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	type out struct {
		Attempt quiz.Attempt `json:"attempt"`
		Score   float64      `json:"score"`
		Passed  bool         `json:"passed"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers map[quiz.QuestionKey]json.RawMessage `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		answers := make(map[quiz.QuestionKey]string, len(req.Answers))
		for k, v := range req.Answers {
			answers[k] = rawAnswer(v)
		}
		a, outcome, err := svc.Submit(r.Context(), rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "quizID"), chi.URLParam(r, "attemptID"), answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out{Attempt: a, Score: outcome.Score, Passed: outcome.Passed})
	}
}

// GET /quizzes/{quizID}/attempts/{attemptID}/result
func ResultHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Result(r.Context(), rbac.SubjectFromContext(r.Context()),
			chi.URLParam(r, "quizID"), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}
