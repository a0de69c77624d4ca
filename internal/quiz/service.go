package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abakus-kids/academy/internal/grading"
	"github.com/abakus-kids/academy/internal/logger"
)

// Service drives the attempt lifecycle: in_progress -> completed | expired.
type Service struct {
	store  Store
	policy *Policy
	bank   *Bank
	grader grading.Grader
	hooks  []Hook
	log    *logger.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithBank(b *Bank) Option               { return func(s *Service) { s.bank = b } }
func WithGrader(g grading.Grader) Option    { return func(s *Service) { s.grader = g } }
func WithHooks(h ...Hook) Option            { return func(s *Service) { s.hooks = append(s.hooks, h...) } }

func NewService(store Store, enrollments Enrollments, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: NewPolicy(enrollments),
		bank:   NewBank(nil),
		grader: grading.NewDefaultGrader(),
		log:    log.With("service", "QuizService"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ---- administration ----

// PutQuiz validates and upserts a quiz with its full question list.
// Missing ids are assigned; the stored quiz is returned with ProgramID resolved.
func (s *Service) PutQuiz(ctx context.Context, q Quiz, questions []Question) (Quiz, []Question, error) {
	if err := s.prepareQuiz(&q, questions); err != nil {
		return Quiz{}, nil, err
	}
	if err := s.store.PutQuiz(ctx, q, questions); err != nil {
		return Quiz{}, nil, fmt.Errorf("put quiz: %w", err)
	}
	stored, err := s.store.GetQuiz(ctx, q.ID)
	if err != nil {
		return Quiz{}, nil, err
	}
	s.emit(ctx, Event{Type: EventQuizUpdated, QuizID: stored.ID, ProgramID: stored.ProgramID, At: s.now()})
	s.log.Info("quiz stored", "quiz_id", stored.ID, "type", stored.Type, "questions", len(questions))
	return stored, questions, nil
}

func (s *Service) prepareQuiz(q *Quiz, questions []Question) error {
	q.Title = strings.TrimSpace(q.Title)
	switch {
	case q.Title == "":
		return fmt.Errorf("%w: title required", ErrInvalidQuiz)
	case q.LessonID == "":
		return fmt.Errorf("%w: lesson_id required", ErrInvalidQuiz)
	case q.Type != TypeStandard && q.Type != TypeMentalArithmetic:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuiz, q.Type)
	case q.MaxAttempts < 0:
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidQuiz)
	case q.PassingScorePercent < 0 || q.PassingScorePercent > 100:
		return fmt.Errorf("%w: passing_score_percent must be within 0..100", ErrInvalidQuiz)
	case q.TimeLimitSeconds != nil && *q.TimeLimitSeconds <= 0:
		return fmt.Errorf("%w: time_limit_seconds must be positive", ErrInvalidQuiz)
	case q.PerQuestionTimeLimitSeconds != nil && *q.PerQuestionTimeLimitSeconds <= 0:
		return fmt.Errorf("%w: per_question_time_limit_seconds must be positive", ErrInvalidQuiz)
	case q.Type == TypeStandard && len(questions) == 0:
		return fmt.Errorf("%w: standard quiz needs questions", ErrInvalidQuiz)
	}
	if err := q.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: settings: %v", ErrInvalidQuiz, err)
	}
	if q.MaxAttempts == 0 {
		q.MaxAttempts = 1
	}
	if q.ID == "" {
		q.ID = s.newID()
	}
	now := s.now().Unix()
	if q.CreatedAt == 0 {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	seen := map[QuestionKey]bool{}
	for i := range questions {
		qq := &questions[i]
		if qq.Key.IsSynthetic() {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidQuiz, SyntheticQuestionID)
		}
		if qq.Key.IsZero() {
			qq.Key = PersistedKey(s.newID())
		}
		if seen[qq.Key] {
			return fmt.Errorf("%w: duplicate question id %s", ErrInvalidQuiz, qq.Key)
		}
		seen[qq.Key] = true
		if qq.Points < 0 {
			return fmt.Errorf("%w: question %s has negative points", ErrInvalidQuiz, qq.Key)
		}
		if qq.Type == "" {
			qq.Type = grading.TypeMultipleChoice
			if q.Type == TypeMentalArithmetic {
				qq.Type = string(TypeMentalArithmetic)
			}
		}
		if qq.Order == 0 {
			qq.Order = i + 1
		}
		qq.QuizID = q.ID
	}
	return nil
}

// ---- learner views ----

type QuizView struct {
	Quiz            Quiz      `json:"quiz"`
	Attempts        []Attempt `json:"attempts"`
	CanStart        bool      `json:"can_start"`
	AttemptsLeft    int       `json:"attempts_left"`
	BestScore       *float64  `json:"best_score"`
	ActiveAttemptID string    `json:"active_attempt_id,omitempty"`
}

// View returns quiz metadata plus the learner's history with it.
func (s *Service) View(ctx context.Context, userID, quizID string) (QuizView, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	if err := s.policy.CanView(ctx, userID, q); err != nil {
		return QuizView{}, err
	}
	attempts, err := s.store.ListAttempts(ctx, quizID, userID)
	if err != nil {
		return QuizView{}, fmt.Errorf("list attempts: %w", err)
	}
	for i, a := range attempts {
		if a.Status == StatusInProgress {
			if attempts[i], err = s.touch(ctx, a); err != nil {
				return QuizView{}, err
			}
		}
	}
	v := QuizView{
		Quiz:      q,
		Attempts:  attempts,
		CanStart:  s.policy.CanStart(ctx, userID, q, attempts) == nil,
		BestScore: BestScore(attempts),
	}
	closed := 0
	for _, a := range attempts {
		if a.Status == StatusInProgress {
			v.ActiveAttemptID = a.ID
		} else {
			closed++
		}
	}
	if left := maxAttempts(q) - closed; left > 0 {
		v.AttemptsLeft = left
	}
	return v, nil
}

// BestScore is the learner's highest completed score for the quiz, or nil.
func (s *Service) BestScore(ctx context.Context, userID, quizID string) (*float64, error) {
	attempts, err := s.store.ListAttempts(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}
	return BestScore(attempts), nil
}

// QuizAttempts lists every learner's attempts for a quiz, for staff reporting.
func (s *Service) QuizAttempts(ctx context.Context, quizID string) (Quiz, []Attempt, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Quiz{}, nil, err
	}
	attempts, err := s.store.ListAttempts(ctx, quizID, "")
	if err != nil {
		return Quiz{}, nil, fmt.Errorf("list attempts: %w", err)
	}
	return q, attempts, nil
}

// ---- lifecycle ----

// Start resumes the learner's in_progress attempt unchanged, or opens a new one
// when the policy allows it. The quiz configuration is snapshotted onto the attempt.
func (s *Service) Start(ctx context.Context, userID, quizID string) (Attempt, error) {
	return s.start(ctx, userID, quizID, false)
}

func (s *Service) start(ctx context.Context, userID, quizID string, retried bool) (Attempt, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := s.policy.CanView(ctx, userID, q); err != nil {
		return Attempt{}, err
	}

	active, err := s.store.FindInProgress(ctx, userID, quizID)
	switch {
	case err == nil:
		active, err = s.touch(ctx, active)
		if err != nil {
			return Attempt{}, err
		}
		if !active.Closed() {
			return active, nil
		}
	case !errors.Is(err, ErrNotFound):
		return Attempt{}, fmt.Errorf("find active attempt: %w", err)
	}

	attempts, err := s.store.ListAttempts(ctx, quizID, userID)
	if err != nil {
		return Attempt{}, fmt.Errorf("list attempts: %w", err)
	}
	if err := s.policy.CanStart(ctx, userID, q, attempts); err != nil {
		return Attempt{}, err
	}

	a, err := s.store.CreateAttempt(ctx, Attempt{
		ID:        s.newID(),
		QuizID:    q.ID,
		UserID:    userID,
		Status:    StatusInProgress,
		StartedAt: s.now().Truncate(time.Millisecond),
		Snapshot:  q.Config(),
	})
	if errors.Is(err, errActiveAttemptExists) {
		// a concurrent start won the unique index
		active, err := s.store.FindInProgress(ctx, userID, quizID)
		if errors.Is(err, ErrNotFound) && !retried {
			// the winner already closed its attempt
			return s.start(ctx, userID, quizID, true)
		}
		return active, err
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	s.emit(ctx, Event{Type: EventAttemptStarted, QuizID: q.ID, ProgramID: q.ProgramID, AttemptID: a.ID, UserID: userID, At: a.StartedAt})
	s.log.Info("attempt started", "attempt_id", a.ID, "quiz_id", q.ID, "user_id", userID)
	return a, nil
}

type TakeView struct {
	Attempt          Attempt    `json:"attempt"`
	Questions        []Question `json:"questions,omitempty"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	// PerQuestionSeconds is a display limit the client enforces per question.
	PerQuestionSeconds *int `json:"per_question_time_limit_seconds,omitempty"`
	// Closed means the attempt no longer accepts answers and the caller should show the result.
	Closed bool `json:"closed"`
}

// Take returns what the learner needs to answer the attempt. An overdue
// attempt is expired here and reported as closed.
func (s *Service) Take(ctx context.Context, userID, quizID, attemptID string) (TakeView, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return TakeView{}, err
	}
	if err := s.policy.CanView(ctx, userID, q); err != nil {
		return TakeView{}, err
	}
	a, err := s.ownedAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return TakeView{}, err
	}
	if a, err = s.touch(ctx, a); err != nil {
		return TakeView{}, err
	}
	if a.Closed() {
		return TakeView{Attempt: a, Closed: true}, nil
	}

	persisted, err := s.store.ListQuestions(ctx, quizID)
	if err != nil {
		return TakeView{}, fmt.Errorf("list questions: %w", err)
	}
	questions, err := s.bank.Resolve(a.Snapshot, persisted)
	if err != nil {
		return TakeView{}, err
	}
	for i := range questions {
		questions[i] = questions[i].LearnerView()
	}
	v := TakeView{Attempt: a, Questions: questions, PerQuestionSeconds: a.Snapshot.PerQuestionTimeLimitSeconds}
	if lim := a.Snapshot.TimeLimitSeconds; lim != nil {
		left := *lim - int(s.now().Sub(a.StartedAt)/time.Second)
		if left < 0 {
			left = 0
		}
		v.RemainingSeconds = &left
	}
	return v, nil
}

// IsExpired reports whether the attempt has run past its time limit.
func (s *Service) IsExpired(a Attempt) bool {
	lim := a.Snapshot.TimeLimitSeconds
	if lim == nil {
		return false
	}
	return s.now().Sub(a.StartedAt) > time.Duration(*lim)*time.Second
}

// Expire closes an in_progress attempt without scoring it.
func (s *Service) Expire(ctx context.Context, a Attempt) (Attempt, error) {
	out, err := s.store.Finish(ctx, a.ID, StatusExpired, nil, s.now())
	if err != nil {
		return Attempt{}, fmt.Errorf("expire attempt %s: %w", a.ID, err)
	}
	out.Snapshot = a.Snapshot
	s.emit(ctx, Event{Type: EventAttemptExpired, QuizID: a.QuizID, AttemptID: a.ID, UserID: a.UserID, At: *out.CompletedAt})
	s.log.Info("attempt expired", "attempt_id", a.ID, "quiz_id", a.QuizID)
	return out, nil
}

// RecordAnswer stores one answer, replacing any earlier answer to the same question.
func (s *Service) RecordAnswer(ctx context.Context, userID, quizID, attemptID string, key QuestionKey, raw string, timeTaken *int) error {
	a, err := s.openAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return err
	}
	questions, err := s.scoringQuestions(ctx, a)
	if err != nil {
		return err
	}
	q, ok := findQuestion(questions, key)
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrInvalidQuestion)
	}
	return s.putAnswer(ctx, a, q, raw, timeTaken)
}

// Submit records a batch of answers and completes the attempt. Every key is
// checked before anything is written.
func (s *Service) Submit(ctx context.Context, userID, quizID, attemptID string, answers map[QuestionKey]string) (Attempt, Outcome, error) {
	a, err := s.openAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	questions, err := s.scoringQuestions(ctx, a)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	for key := range answers {
		if _, ok := findQuestion(questions, key); !ok {
			return Attempt{}, Outcome{}, fmt.Errorf("%s: %w", key, ErrInvalidQuestion)
		}
	}
	for key, raw := range answers {
		q, _ := findQuestion(questions, key)
		// keep the timing an earlier autosave recorded
		took := a.Answers[key].TimeTakenSeconds
		if err := s.putAnswer(ctx, a, q, raw, took); err != nil {
			return Attempt{}, Outcome{}, err
		}
	}
	return s.complete(ctx, a, questions)
}

// Complete scores the attempt and closes it.
func (s *Service) Complete(ctx context.Context, userID, quizID, attemptID string) (Attempt, Outcome, error) {
	a, err := s.openAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	questions, err := s.scoringQuestions(ctx, a)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	return s.complete(ctx, a, questions)
}

func (s *Service) complete(ctx context.Context, a Attempt, questions []Question) (Attempt, Outcome, error) {
	// re-read so answers written by this request and concurrent autosaves are scored
	fresh, err := s.store.GetAttempt(ctx, a.ID)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	fresh.Snapshot = a.Snapshot
	hydrate(&fresh, questions)

	outcome, err := ScoreAttempt(ctx, s.grader, fresh.Snapshot, questions, fresh.Answers)
	if err != nil {
		return Attempt{}, Outcome{}, err
	}
	for _, k := range outcome.Malformed {
		s.log.Warn("malformed flash-card payload scored as zero",
			"attempt_id", a.ID, "quiz_id", a.QuizID, "question_id", k.String())
	}
	score := outcome.Score
	done, err := s.store.Finish(ctx, a.ID, StatusCompleted, &score, s.now())
	if err != nil {
		return Attempt{}, Outcome{}, fmt.Errorf("complete attempt %s: %w", a.ID, err)
	}
	done.Snapshot = a.Snapshot
	hydrate(&done, questions)
	s.emit(ctx, Event{Type: EventAttemptCompleted, QuizID: a.QuizID, AttemptID: a.ID, UserID: a.UserID, Score: &score, At: *done.CompletedAt})
	s.log.Info("attempt completed", "attempt_id", a.ID, "quiz_id", a.QuizID, "score", score, "passed", outcome.Passed)
	return done, outcome, nil
}

type ResultView struct {
	Attempt Attempt  `json:"attempt"`
	Score   *float64 `json:"score"`
	Passed  bool     `json:"passed"`
	// Items is only filled for completed attempts of quizzes that show results immediately.
	Items []ItemResult `json:"items,omitempty"`
}

func (s *Service) Result(ctx context.Context, userID, quizID, attemptID string) (ResultView, error) {
	a, err := s.ownedAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return ResultView{}, err
	}
	if a, err = s.touch(ctx, a); err != nil {
		return ResultView{}, err
	}
	v := ResultView{Attempt: a, Score: a.Score, Passed: a.Status == StatusCompleted && HasPassed(a)}
	if a.Status != StatusCompleted || !a.Snapshot.ShowResultsImmediately {
		return v, nil
	}
	questions, err := s.scoringQuestions(ctx, a)
	if err != nil {
		return ResultView{}, err
	}
	hydrate(&a, questions)
	outcome, err := ScoreAttempt(ctx, s.grader, a.Snapshot, questions, a.Answers)
	if err != nil {
		return ResultView{}, err
	}
	v.Items = outcome.Items
	return v, nil
}

// ---- helpers ----

// ownedAttempt hides attempts of other learners or other quizzes behind ErrNotFound.
func (s *Service) ownedAttempt(ctx context.Context, userID, quizID, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID || a.QuizID != quizID {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return a, nil
}

// openAttempt loads an owned attempt that still accepts answers.
func (s *Service) openAttempt(ctx context.Context, userID, quizID, attemptID string) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, userID, quizID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a, err = s.touch(ctx, a); err != nil {
		return Attempt{}, err
	}
	if a.Closed() {
		return Attempt{}, fmt.Errorf("attempt %s is %s: %w", a.ID, a.Status, ErrInvalidAttemptState)
	}
	return a, nil
}

// touch applies lazy expiry: an overdue in_progress attempt becomes expired.
func (s *Service) touch(ctx context.Context, a Attempt) (Attempt, error) {
	if a.Status != StatusInProgress || !s.IsExpired(a) {
		return a, nil
	}
	out, err := s.Expire(ctx, a)
	if errors.Is(err, ErrInvalidAttemptState) {
		// closed concurrently; report what is stored now
		return s.store.GetAttempt(ctx, a.ID)
	}
	return out, err
}

func (s *Service) scoringQuestions(ctx context.Context, a Attempt) ([]Question, error) {
	persisted, err := s.store.ListQuestions(ctx, a.QuizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return s.bank.Skeleton(a.Snapshot, persisted), nil
}

func (s *Service) putAnswer(ctx context.Context, a Attempt, q Question, raw string, timeTaken *int) error {
	value := grading.ParseAnswer(raw, q.expectsFlashCard())
	if m, ok := value.(grading.MalformedAnswer); ok {
		s.log.Warn("malformed flash-card payload recorded",
			"attempt_id", a.ID, "question_id", q.Key.String(), "reason", m.Reason)
	}
	if timeTaken != nil && *timeTaken < 0 {
		timeTaken = nil
	}
	err := s.store.PutAnswer(ctx, a.ID, q.Key, RecordedAnswer{
		Raw:              raw,
		Value:            value,
		TimeTakenSeconds: timeTaken,
		AnsweredAt:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("record answer %s: %w", q.Key, err)
	}
	return nil
}

func findQuestion(questions []Question, key QuestionKey) (Question, bool) {
	for _, q := range questions {
		if q.Key == key {
			return q, true
		}
	}
	return Question{}, false
}

// hydrate parses stored raw answers into the answer union once.
func hydrate(a *Attempt, questions []Question) {
	for k, rec := range a.Answers {
		if rec.Value != nil {
			continue
		}
		flash := k.IsSynthetic()
		if q, ok := findQuestion(questions, k); ok {
			flash = q.expectsFlashCard()
		}
		rec.Value = grading.ParseAnswer(rec.Raw, flash)
		a.Answers[k] = rec
	}
}

func (s *Service) emit(ctx context.Context, e Event) {
	for _, h := range s.hooks {
		if err := h.OnEvent(ctx, e); err != nil {
			s.log.Error("event hook failed", "event", e.Type, "quiz_id", e.QuizID, "error", err)
		}
	}
}
