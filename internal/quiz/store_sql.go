package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

// SQLStore keeps quizzes and attempts in sqlite or postgres. Queries use '?'
// and are rebound for the connection's driver.
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type quizRow struct {
	ID                     string         `db:"id"`
	LessonID               string         `db:"lesson_id"`
	ProgramID              sql.NullString `db:"program_id"`
	Title                  string         `db:"title"`
	Description            string         `db:"description"`
	Type                   string         `db:"type"`
	MaxAttempts            int            `db:"max_attempts"`
	PassingScorePercent    int            `db:"passing_score_percent"`
	TimeLimitSec           *int64         `db:"time_limit_sec"`
	PerQuestionTimeLimit   *int64         `db:"per_question_time_limit_sec"`
	ShuffleQuestions       bool           `db:"shuffle_questions"`
	ShuffleAnswers         bool           `db:"shuffle_answers"`
	ShowResultsImmediately bool           `db:"show_results_immediately"`
	IsActive               bool           `db:"is_active"`
	SettingsJSON           string         `db:"settings_json"`
	CreatedAt              int64          `db:"created_at"`
	UpdatedAt              int64          `db:"updated_at"`
}

type questionRow struct {
	ID            string  `db:"id"`
	QuizID        string  `db:"quiz_id"`
	Position      int     `db:"position"`
	Type          string  `db:"type"`
	Text          string  `db:"question_text"`
	Data          string  `db:"question_data"`
	OptionsJSON   string  `db:"options_json"`
	CorrectAnswer string  `db:"correct_answer"`
	Points        float64 `db:"points"`
	Explanation   string  `db:"explanation"`
}

type attemptRow struct {
	ID           string          `db:"id"`
	QuizID       string          `db:"quiz_id"`
	UserID       string          `db:"user_id"`
	Status       string          `db:"status"`
	Score        sql.NullFloat64 `db:"score"`
	SnapshotJSON string          `db:"snapshot_json"`
	StartedAt    int64           `db:"started_at_ms"`
	CompletedAt  sql.NullInt64   `db:"completed_at_ms"`
}

type answerRow struct {
	QuestionKey  string `db:"question_key"`
	Answer       string `db:"answer"`
	TimeTakenSec *int64 `db:"time_taken_sec"`
	AnsweredAt   int64  `db:"answered_at_ms"`
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz, questions []Question) error {
	settings, err := json.Marshal(q.Settings)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO quizzes
		(id,lesson_id,title,description,type,max_attempts,passing_score_percent,time_limit_sec,
		 per_question_time_limit_sec,shuffle_questions,shuffle_answers,show_results_immediately,
		 is_active,settings_json,created_at,updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET lesson_id=excluded.lesson_id, title=excluded.title,
		 description=excluded.description, type=excluded.type, max_attempts=excluded.max_attempts,
		 passing_score_percent=excluded.passing_score_percent, time_limit_sec=excluded.time_limit_sec,
		 per_question_time_limit_sec=excluded.per_question_time_limit_sec,
		 shuffle_questions=excluded.shuffle_questions, shuffle_answers=excluded.shuffle_answers,
		 show_results_immediately=excluded.show_results_immediately, is_active=excluded.is_active,
		 settings_json=excluded.settings_json, updated_at=excluded.updated_at`),
		q.ID, q.LessonID, q.Title, q.Description, string(q.Type), q.MaxAttempts, q.PassingScorePercent,
		intPtr64(q.TimeLimitSeconds), intPtr64(q.PerQuestionTimeLimitSeconds),
		q.ShuffleQuestions, q.ShuffleAnswers, q.ShowResultsImmediately, q.IsActive,
		string(settings), q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM quiz_questions WHERE quiz_id=?`), q.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	for _, qq := range questions {
		opts, err := json.Marshal(qq.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO quiz_questions
			(id,quiz_id,position,type,question_text,question_data,options_json,correct_answer,points,explanation)
			VALUES (?,?,?,?,?,?,?,?,?,?)`),
			qq.Key.ID(), q.ID, qq.Order, qq.Type, qq.Text, string(qq.Data), string(opts),
			qq.CorrectAnswer, qq.Points, qq.Explanation)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", qq.Key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	var r quizRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT q.id, q.lesson_id, l.program_id, q.title, q.description,
		q.type, q.max_attempts, q.passing_score_percent, q.time_limit_sec, q.per_question_time_limit_sec,
		q.shuffle_questions, q.shuffle_answers, q.show_results_immediately, q.is_active, q.settings_json,
		q.created_at, q.updated_at
		FROM quizzes q LEFT JOIN lessons l ON l.id = q.lesson_id
		WHERE q.id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Quiz{}, err
	}
	q := Quiz{
		ID:                          r.ID,
		LessonID:                    r.LessonID,
		ProgramID:                   r.ProgramID.String,
		Title:                       r.Title,
		Description:                 r.Description,
		Type:                        Type(r.Type),
		MaxAttempts:                 r.MaxAttempts,
		PassingScorePercent:         r.PassingScorePercent,
		TimeLimitSeconds:            intPtr(r.TimeLimitSec),
		PerQuestionTimeLimitSeconds: intPtr(r.PerQuestionTimeLimit),
		ShuffleQuestions:            r.ShuffleQuestions,
		ShuffleAnswers:              r.ShuffleAnswers,
		ShowResultsImmediately:      r.ShowResultsImmediately,
		IsActive:                    r.IsActive,
		CreatedAt:                   r.CreatedAt,
		UpdatedAt:                   r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.SettingsJSON), &q.Settings); err != nil {
		return Quiz{}, fmt.Errorf("quiz %s settings: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID string) ([]Question, error) {
	var rows []questionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, quiz_id, position, type, question_text,
		question_data, options_json, correct_answer, points, explanation
		FROM quiz_questions WHERE quiz_id=? ORDER BY position, id`), quizID)
	if err != nil {
		return nil, err
	}
	out := make([]Question, 0, len(rows))
	for _, r := range rows {
		q := Question{
			Key:           PersistedKey(r.ID),
			QuizID:        r.QuizID,
			Order:         r.Position,
			Type:          r.Type,
			Text:          r.Text,
			CorrectAnswer: r.CorrectAnswer,
			Points:        r.Points,
			Explanation:   r.Explanation,
		}
		if r.Data != "" {
			q.Data = json.RawMessage(r.Data)
		}
		if err := json.Unmarshal([]byte(r.OptionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", r.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	snap, err := json.Marshal(a.Snapshot)
	if err != nil {
		return Attempt{}, err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO quiz_attempts
		(id,quiz_id,user_id,status,score,snapshot_json,started_at_ms,completed_at_ms)
		VALUES (?,?,?,?,NULL,?,?,NULL)`),
		a.ID, a.QuizID, a.UserID, string(a.Status), string(snap), a.StartedAt.UnixMilli())
	if isUniqueViolation(err) {
		return Attempt{}, errActiveAttemptExists
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return s.GetAttempt(ctx, a.ID)
}

const attemptColumns = `id, quiz_id, user_id, status, score, snapshot_json, started_at_ms, completed_at_ms`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	var r attemptRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	return s.loadAttempt(ctx, r)
}

func (s *SQLStore) FindInProgress(ctx context.Context, userID, quizID string) (Attempt, error) {
	var r attemptRow
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT `+attemptColumns+` FROM quiz_attempts
		WHERE user_id=? AND quiz_id=? AND status=?`), userID, quizID, string(StatusInProgress))
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	return s.loadAttempt(ctx, r)
}

func (s *SQLStore) ListAttempts(ctx context.Context, quizID, userID string) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE quiz_id=?`
	args := []any{quizID}
	if userID != "" {
		query += ` AND user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY started_at_ms, id`
	var rows []attemptRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := s.loadAttempt(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *SQLStore) loadAttempt(ctx context.Context, r attemptRow) (Attempt, error) {
	a := Attempt{
		ID:        r.ID,
		QuizID:    r.QuizID,
		UserID:    r.UserID,
		Status:    Status(r.Status),
		StartedAt: time.UnixMilli(r.StartedAt).UTC(),
		Answers:   map[QuestionKey]RecordedAnswer{},
	}
	if r.Score.Valid {
		v := r.Score.Float64
		a.Score = &v
	}
	if r.CompletedAt.Valid {
		t := time.UnixMilli(r.CompletedAt.Int64).UTC()
		a.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(r.SnapshotJSON), &a.Snapshot); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s snapshot: %w", r.ID, err)
	}

	var answers []answerRow
	err := s.db.SelectContext(ctx, &answers, s.db.Rebind(`SELECT question_key, answer, time_taken_sec, answered_at_ms
		FROM attempt_answers WHERE attempt_id=?`), r.ID)
	if err != nil {
		return Attempt{}, fmt.Errorf("attempt %s answers: %w", r.ID, err)
	}
	for _, ar := range answers {
		a.Answers[ParseQuestionKey(ar.QuestionKey)] = RecordedAnswer{
			Raw:              ar.Answer,
			TimeTakenSeconds: intPtr(ar.TimeTakenSec),
			AnsweredAt:       time.UnixMilli(ar.AnsweredAt).UTC(),
		}
	}
	return a, nil
}

// PutAnswer claims the attempt row first so a concurrent Finish either
// happens before (and the answer is refused) or waits for this write.
func (s *SQLStore) PutAnswer(ctx context.Context, attemptID string, key QuestionKey, ans RecordedAnswer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE quiz_attempts SET status=status WHERE id=? AND status=?`),
		attemptID, string(StatusInProgress))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.notInProgress(ctx, tx, attemptID)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO attempt_answers
		(attempt_id,question_key,answer,time_taken_sec,answered_at_ms) VALUES (?,?,?,?,?)
		ON CONFLICT (attempt_id, question_key) DO UPDATE SET answer=excluded.answer,
		 time_taken_sec=excluded.time_taken_sec, answered_at_ms=excluded.answered_at_ms`),
		attemptID, key.String(), ans.Raw, intPtr64(ans.TimeTakenSeconds), ans.AnsweredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) Finish(ctx context.Context, attemptID string, status Status, score *float64, at time.Time) (Attempt, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE quiz_attempts SET status=?, score=?, completed_at_ms=?
		WHERE id=? AND status=?`),
		string(status), score, at.UnixMilli(), attemptID, string(StatusInProgress))
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, s.notInProgress(ctx, s.db, attemptID)
	}
	return s.GetAttempt(ctx, attemptID)
}

// notInProgress tells a missing attempt apart from one that already closed.
func (s *SQLStore) notInProgress(ctx context.Context, q sqlx.QueryerContext, attemptID string) error {
	var one int
	err := sqlx.GetContext(ctx, q, &one, s.db.Rebind(`SELECT 1 FROM quiz_attempts WHERE id=?`), attemptID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return ErrInvalidAttemptState
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func intPtr64(v *int) *int64 {
	if v == nil {
		return nil
	}
	x := int64(*v)
	return &x
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	x := int(*v)
	return &x
}
