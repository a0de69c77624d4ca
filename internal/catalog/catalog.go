package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/abakus-kids/academy/internal/cache"
	"github.com/abakus-kids/academy/internal/logger"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid catalog entry")
)

type Program struct {
	ID        string   `json:"id" db:"id"`
	Title     string   `json:"title" db:"title"`
	Kind      string   `json:"kind" db:"kind"`
	IsActive  bool     `json:"is_active" db:"is_active"`
	CreatedAt int64    `json:"created_at" db:"created_at"`
	Lessons   []Lesson `json:"lessons,omitempty" db:"-"`
}

type Lesson struct {
	ID        string `json:"id" db:"id"`
	ProgramID string `json:"program_id" db:"program_id"`
	Title     string `json:"title" db:"title"`
	Position  int    `json:"position" db:"position"`
}

// Service owns programs and lessons, the containers quizzes hang off.
type Service struct {
	db    *sqlx.DB
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
}

func NewService(db *sqlx.DB, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{db: db, cache: c, ttl: ttl, log: log.With("service", "CatalogService")}
}

func (s *Service) PutProgram(ctx context.Context, p Program) (Program, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return Program{}, fmt.Errorf("%w: title required", ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Kind == "" {
		p.Kind = "math"
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO programs (id,title,kind,is_active,created_at)
		VALUES (?,?,?,?,?) ON CONFLICT (id) DO UPDATE SET title=excluded.title, kind=excluded.kind,
		 is_active=excluded.is_active`),
		p.ID, p.Title, p.Kind, p.IsActive, p.CreatedAt)
	if err != nil {
		return Program{}, fmt.Errorf("upsert program: %w", err)
	}
	s.invalidate(ctx)
	s.log.Info("program stored", "program_id", p.ID)
	return p, nil
}

func (s *Service) PutLesson(ctx context.Context, l Lesson) (Lesson, error) {
	l.Title = strings.TrimSpace(l.Title)
	switch {
	case l.Title == "":
		return Lesson{}, fmt.Errorf("%w: title required", ErrInvalid)
	case l.ProgramID == "":
		return Lesson{}, fmt.Errorf("%w: program_id required", ErrInvalid)
	}
	if _, err := s.GetProgram(ctx, l.ProgramID); err != nil {
		return Lesson{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO lessons (id,program_id,title,position)
		VALUES (?,?,?,?) ON CONFLICT (id) DO UPDATE SET program_id=excluded.program_id,
		 title=excluded.title, position=excluded.position`),
		l.ID, l.ProgramID, l.Title, l.Position)
	if err != nil {
		return Lesson{}, fmt.Errorf("upsert lesson: %w", err)
	}
	s.invalidate(ctx)
	return l, nil
}

func (s *Service) GetProgram(ctx context.Context, id string) (Program, error) {
	var p Program
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT id,title,kind,is_active,created_at FROM programs WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Program{}, fmt.Errorf("program %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListPrograms returns active programs with their lessons, served from the
// cache while it is warm.
func (s *Service) ListPrograms(ctx context.Context) ([]Program, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.ProgramsKey, s.ttl, s.loadPrograms)
}

func (s *Service) loadPrograms(ctx context.Context) ([]Program, error) {
	var programs []Program
	err := s.db.SelectContext(ctx, &programs, s.db.Rebind(`SELECT id,title,kind,is_active,created_at
		FROM programs WHERE is_active=? ORDER BY title, id`), true)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	var lessons []Lesson
	err = s.db.SelectContext(ctx, &lessons, `SELECT id,program_id,title,position FROM lessons ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	byProgram := map[string][]Lesson{}
	for _, l := range lessons {
		byProgram[l.ProgramID] = append(byProgram[l.ProgramID], l)
	}
	for i := range programs {
		programs[i].Lessons = byProgram[programs[i].ID]
	}
	return programs, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.ProgramsKey); err != nil {
		s.log.Warn("program cache invalidation failed", "error", err)
	}
}
