package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abakus-kids/academy/internal/auth"
	"github.com/abakus-kids/academy/internal/catalog"
	"github.com/abakus-kids/academy/internal/enrollment"
	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
	"github.com/abakus-kids/academy/internal/rbac"
)

type Deps struct {
	Quizzes     *quiz.Service
	Catalog     *catalog.Service
	Enrollments *enrollment.Store
	Users       *auth.Users
	Auth        *auth.AuthService
	Admin       auth.Admin
	LocalLogin  bool
	Ready       func(ctx context.Context) error
	Log         *logger.Logger
}

// Mount registers every route on r. Global middleware (request id, CORS,
// recovery) is the caller's business.
func Mount(r chi.Router, d Deps) {
	log := d.Log

	if d.LocalLogin {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users, d.Admin, log))
	}
	r.Get("/programs", ListProgramsHandler(d.Catalog, log))

	// JWT → subject and role in context → stored role → RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth), auth.AttachRoleFromDB(d.Users))

		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", QuizViewHandler(d.Quizzes, log))
		pr.With(rbac.Require("attempt:start")).
			Post("/quizzes/{quizID}/start", StartAttemptHandler(d.Quizzes, log))

		pr.Route("/quizzes/{quizID}/attempts/{attemptID}", func(ar chi.Router) {
			ar.With(rbac.Require("attempt:take")).Get("/take", TakeHandler(d.Quizzes, log))
			ar.With(rbac.Require("attempt:answer")).Post("/answer", AnswerHandler(d.Quizzes, log))
			ar.With(rbac.Require("attempt:submit")).Post("/submit", SubmitHandler(d.Quizzes, log))
			ar.With(rbac.Require("attempt:view-own")).Get("/result", ResultHandler(d.Quizzes, log))
		})

		pr.With(rbac.Require("enrollment:request")).
			Post("/programs/{programID}/enrollments", RequestEnrollmentHandler(d.Enrollments, d.Catalog, log))

		pr.Route("/admin", func(ad chi.Router) {
			ad.With(rbac.Require("quiz:manage")).Put("/quizzes", PutQuizHandler(d.Quizzes, log))
			ad.With(rbac.Require("quiz:export")).
				Get("/quizzes/{quizID}/results.xlsx", ExportResultsHandler(d.Quizzes, log))
			ad.With(rbac.Require("catalog:manage")).Put("/programs", PutProgramHandler(d.Catalog, log))
			ad.With(rbac.Require("catalog:manage")).Put("/lessons", PutLessonHandler(d.Catalog, log))
			ad.With(rbac.Require("enrollment:review")).
				Get("/programs/{programID}/enrollments", ListEnrollmentsHandler(d.Enrollments, log))
			ad.With(rbac.Require("enrollment:review")).
				Put("/programs/{programID}/enrollments/{userID}", ReviewEnrollmentHandler(d.Enrollments, d.Catalog, log))
			ad.With(rbac.Require("users:manage")).Put("/users", CreateUserHandler(d.Users, log))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
