package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abakus-kids/academy/internal/auth"
	"github.com/abakus-kids/academy/internal/catalog"
	"github.com/abakus-kids/academy/internal/enrollment"
	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
	"github.com/abakus-kids/academy/internal/rbac"
	"github.com/abakus-kids/academy/internal/report"
)

// PUT /admin/quizzes  { "quiz": {...}, "questions": [...] }
func PutQuizHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Quiz      quiz.Quiz       `json:"quiz"`
			Questions []quiz.Question `json:"questions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q, questions, err := svc.PutQuiz(r.Context(), req.Quiz, req.Questions)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"quiz": q, "questions": questions})
	}
}

// GET /admin/quizzes/{quizID}/results.xlsx
func ExportResultsHandler(svc *quiz.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, attempts, err := svc.QuizAttempts(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		report.SortByStart(attempts)
		var buf bytes.Buffer
		if err := report.WriteAttempts(&buf, q, attempts); err != nil {
			writeError(w, log, fmt.Errorf("render workbook: %w", err))
			return
		}
		name := fmt.Sprintf("quiz-%s-%s.xlsx", q.ID, time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, _ = w.Write(buf.Bytes())
	}
}

// GET /programs
func ListProgramsHandler(cat *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		programs, err := cat.ListPrograms(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, programs)
	}
}

// PUT /admin/programs
func PutProgramHandler(cat *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p catalog.Program
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := cat.PutProgram(r.Context(), p)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// PUT /admin/lessons
func PutLessonHandler(cat *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var l catalog.Lesson
		if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out, err := cat.PutLesson(r.Context(), l)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /programs/{programID}/enrollments
func RequestEnrollmentHandler(enr *enrollment.Store, cat *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		programID := chi.URLParam(r, "programID")
		if _, err := cat.GetProgram(r.Context(), programID); err != nil {
			writeError(w, log, err)
			return
		}
		e, err := enr.Request(r.Context(), rbac.SubjectFromContext(r.Context()), programID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /admin/programs/{programID}/enrollments?status=pending
func ListEnrollmentsHandler(enr *enrollment.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := enr.ListProgram(r.Context(), chi.URLParam(r, "programID"),
			enrollment.Status(r.URL.Query().Get("status")))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// PUT /admin/programs/{programID}/enrollments/{userID}  { "status": "approved" | "rejected" }
func ReviewEnrollmentHandler(enr *enrollment.Store, cat *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status enrollment.Status `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		programID := chi.URLParam(r, "programID")
		if _, err := cat.GetProgram(r.Context(), programID); err != nil {
			writeError(w, log, err)
			return
		}
		e, err := enr.Review(r.Context(), chi.URLParam(r, "userID"), programID, req.Status,
			rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// PUT /admin/users  { "username": "...", "password": "...", "role": "learner" }
func CreateUserHandler(users *auth.Users, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = rbac.RoleLearner
		}
		u, err := users.Create(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}
