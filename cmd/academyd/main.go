package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/abakus-kids/academy/internal/api/http"
	"github.com/abakus-kids/academy/internal/auth"
	"github.com/abakus-kids/academy/internal/cache"
	"github.com/abakus-kids/academy/internal/catalog"
	"github.com/abakus-kids/academy/internal/config"
	"github.com/abakus-kids/academy/internal/db"
	"github.com/abakus-kids/academy/internal/enrollment"
	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/quiz"
	syncx "github.com/abakus-kids/academy/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer dbh.Close()

	// --- Cache ---
	var c cache.Cache
	if cfg.RedisAddr != "" {
		c, err = cache.NewRedis(cfg.RedisAddr, log)
		if err != nil {
			log.Fatal("redis connect failed", "error", err, "addr", cfg.RedisAddr)
		}
	} else {
		c = cache.NewMemory()
	}
	defer c.Close()

	// --- Domain ---
	enrollments := enrollment.NewStore(dbh, log)
	cat := catalog.NewService(dbh, c, cfg.CacheTTL, log)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	quizzes := quiz.NewService(
		cache.NewQuizStore(quiz.NewSQLStore(dbh), c, cfg.CacheTTL),
		enrollments, log,
		quiz.WithHooks(events, cache.NewInvalidator(c, log)),
	)

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL)
	users := auth.NewUsers(dbh)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, api.RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.Mount(r, api.Deps{
		Quizzes:     quizzes,
		Catalog:     cat,
		Enrollments: enrollments,
		Users:       users,
		Auth:        authSvc,
		Admin:       auth.Admin{Username: cfg.AdminUser, Hash: cfg.AdminPassHash},
		LocalLogin:  cfg.EnableLocalAuth,
		Ready:       dbh.PingContext,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "redis", cfg.RedisAddr != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("stopped")
}
