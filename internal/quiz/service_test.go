package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abakus-kids/academy/internal/logger"
	"github.com/abakus-kids/academy/internal/mental"
	"github.com/abakus-kids/academy/internal/quiz"
)

type fakeEnrollments map[string]bool // userID + "/" + programID

func (f fakeEnrollments) Approved(_ context.Context, userID, programID string) (bool, error) {
	return f[userID+"/"+programID], nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []quiz.Event
}

func (r *recorder) OnEvent(_ context.Context, e quiz.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []quiz.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []quiz.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *quiz.Service
	store  quiz.Store
	clock  *fakeClock
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  quiz.NewInMemoryStore(),
		clock:  &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		events: &recorder{},
	}
	enrolled := fakeEnrollments{"kid/p1": true, "other/p1": true}
	f.svc = quiz.NewService(f.store, enrolled, logger.NewNop(),
		quiz.WithClock(f.clock.Now),
		quiz.WithBank(quiz.NewBank(newRand(1))),
		quiz.WithHooks(f.events),
	)
	return f
}

func (f *fixture) put(t *testing.T, q quiz.Quiz, questions ...quiz.Question) quiz.Quiz {
	t.Helper()
	if q.LessonID == "" {
		q.LessonID = "l1"
	}
	if q.ProgramID == "" {
		q.ProgramID = "p1"
	}
	if q.Title == "" {
		q.Title = "Quiz"
	}
	q.IsActive = true
	stored, _, err := f.svc.PutQuiz(context.Background(), q, questions)
	if err != nil {
		t.Fatalf("put quiz: %v", err)
	}
	return stored
}

func standardQuiz(id string, maxAttempts int) (quiz.Quiz, []quiz.Question) {
	return quiz.Quiz{ID: id, Type: quiz.TypeStandard, MaxAttempts: maxAttempts, PassingScorePercent: 70},
		[]quiz.Question{
			{Key: quiz.PersistedKey("q1"), Order: 1, Type: "multiple_choice", Text: "2+2", Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 1},
			{Key: quiz.PersistedKey("q2"), Order: 2, Type: "short_answer", Text: "capital of France", CorrectAnswer: "Paris", Points: 3},
		}
}

func mentalQuiz(id string) quiz.Quiz {
	return quiz.Quiz{
		ID:                  id,
		Type:                quiz.TypeMentalArithmetic,
		MaxAttempts:         3,
		PassingScorePercent: 70,
		Settings: mental.Settings{
			Operations:        []mental.Operation{mental.Addition, mental.Subtraction},
			NumberRange:       mental.Range{Min: 1, Max: 9},
			NumbersPerSession: 4,
			SessionCount:      5,
		},
	}
}

func flashPayload(correct, total int, pct float64) string {
	return fmt.Sprintf(`{"type":"flash_card_sessions","correctCount":%d,"totalSessions":%d,"percentage":%v}`, correct, total, pct)
}

func TestStart_ResumesActiveAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 2)
	f.put(t, q, qs...)

	a1, err := f.svc.Start(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a1.ID, quiz.PersistedKey("q1"), "4", nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	f.clock.Advance(time.Minute)
	a2, err := f.svc.Start(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if a2.ID != a1.ID {
		t.Fatalf("start opened %s, want resume of %s", a2.ID, a1.ID)
	}
	if !a2.StartedAt.Equal(a1.StartedAt) {
		t.Fatalf("resume changed started_at: %v != %v", a2.StartedAt, a1.StartedAt)
	}
	if got := a2.Answers[quiz.PersistedKey("q1")].Raw; got != "4" {
		t.Fatalf("resume lost answer, got %q", got)
	}
	all, _ := f.store.ListAttempts(ctx, "quiz1", "kid")
	if len(all) != 1 {
		t.Fatalf("attempts = %d, want 1", len(all))
	}
}

func TestStart_ConcurrentCallsShareOneAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 5)
	f.put(t, q, qs...)

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := f.svc.Start(ctx, "kid", "quiz1")
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			ids <- a.ID
		}()
	}
	wg.Wait()
	close(ids)
	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Fatalf("concurrent starts produced %d attempts", len(seen))
	}
}

func TestStart_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 2)
	f.put(t, q, qs...)

	for i := 0; i < 2; i++ {
		a, err := f.svc.Start(ctx, "kid", "quiz1")
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		if _, _, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID); err != nil {
			t.Fatalf("complete %d: %v", i, err)
		}
	}
	if _, err := f.svc.Start(ctx, "kid", "quiz1"); !errors.Is(err, quiz.ErrAttemptLimitExceeded) {
		t.Fatalf("third start err = %v, want ErrAttemptLimitExceeded", err)
	}
	v, err := f.svc.View(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.CanStart || v.AttemptsLeft != 0 || len(v.Attempts) != 2 {
		t.Fatalf("view = can_start %v left %d attempts %d", v.CanStart, v.AttemptsLeft, len(v.Attempts))
	}

	// the limit is per learner
	if _, err := f.svc.Start(ctx, "other", "quiz1"); err != nil {
		t.Fatalf("other learner start: %v", err)
	}
}

func TestExpiredAttemptsCountTowardLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	limit := 60
	q.TimeLimitSeconds = &limit
	f.put(t, q, qs...)

	a, err := f.svc.Start(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(2 * time.Minute)
	_, err = f.svc.Start(ctx, "kid", "quiz1")
	if !errors.Is(err, quiz.ErrAttemptLimitExceeded) {
		t.Fatalf("start after expiry err = %v, want ErrAttemptLimitExceeded", err)
	}
	got, _ := f.store.GetAttempt(ctx, a.ID)
	if got.Status != quiz.StatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
}

func TestAccessPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	if _, err := f.svc.Start(ctx, "stranger", "quiz1"); !errors.Is(err, quiz.ErrAccessDenied) {
		t.Fatalf("unenrolled start err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.svc.View(ctx, "stranger", "quiz1"); !errors.Is(err, quiz.ErrAccessDenied) {
		t.Fatalf("unenrolled view err = %v, want ErrAccessDenied", err)
	}
	if _, err := f.svc.Start(ctx, "kid", "missing"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("missing quiz err = %v, want ErrNotFound", err)
	}

	inactive, iqs := standardQuiz("quiz2", 1)
	stored := f.put(t, inactive, iqs...)
	stored.IsActive = false
	if _, _, err := f.svc.PutQuiz(ctx, stored, iqs); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.svc.Start(ctx, "kid", "quiz2"); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("inactive quiz err = %v, want ErrNotFound", err)
	}
}

func TestForeignAttemptIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)
	q2, qs2 := standardQuiz("quiz2", 1)
	f.put(t, q2, qs2...)

	a, err := f.svc.Start(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, "other", "quiz1", a.ID, quiz.PersistedKey("q1"), "4", nil); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("foreign record err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Take(ctx, "kid", "quiz2", a.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("mismatched quiz take err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Result(ctx, "other", "quiz1", a.ID); !errors.Is(err, quiz.ErrNotFound) {
		t.Fatalf("foreign result err = %v, want ErrNotFound", err)
	}
}

func TestStandardScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	q.ShowResultsImmediately = true
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	done, out, err := f.svc.Submit(ctx, "kid", "quiz1", a.ID, map[quiz.QuestionKey]string{
		quiz.PersistedKey("q1"): "3",
		quiz.PersistedKey("q2"): "  paris ",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != quiz.StatusCompleted || done.Score == nil || *done.Score != 75 {
		t.Fatalf("attempt = %s score %v, want completed 75", done.Status, done.Score)
	}
	if !out.Passed || out.Earned != 3 || out.Total != 4 {
		t.Fatalf("outcome = %+v", out)
	}

	res, err := f.svc.Result(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if len(res.Items) != 2 || res.Items[0].Correct || !res.Items[1].Correct {
		t.Fatalf("result items = %+v", res.Items)
	}
	if !res.Passed {
		t.Fatal("75 should pass at 70")
	}
}

func TestUnansweredQuestionsScoreZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	done, out, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if *done.Score != 0 || out.Passed {
		t.Fatalf("score %v passed %v, want 0 / false", *done.Score, out.Passed)
	}
}

func TestSyntheticMentalArithmetic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, mentalQuiz("mq"))

	a, err := f.svc.Start(ctx, "kid", "mq")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	view, err := f.svc.Take(ctx, "kid", "mq", a.ID)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if len(view.Questions) != 1 {
		t.Fatalf("questions = %d, want one synthetic question", len(view.Questions))
	}
	sq := view.Questions[0]
	if !sq.Key.IsSynthetic() || sq.Key.String() != quiz.SyntheticQuestionID {
		t.Fatalf("key = %v, want synthetic", sq.Key)
	}
	if len(sq.Sessions) != 5 || sq.Points != 50 {
		t.Fatalf("sessions %d points %v, want 5 / 50", len(sq.Sessions), sq.Points)
	}
	if sq.CorrectAnswer != "" {
		t.Fatal("learner view leaked correct answer")
	}

	if err := f.svc.RecordAnswer(ctx, "kid", "mq", a.ID, quiz.SyntheticKey, flashPayload(4, 5, 80), nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	done, out, err := f.svc.Complete(ctx, "kid", "mq", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if *done.Score != 80 || !out.Passed {
		t.Fatalf("score %v passed %v, want 80 / true", *done.Score, out.Passed)
	}
}

func TestMalformedFlashCardScoresZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, mentalQuiz("mq"))

	a, _ := f.svc.Start(ctx, "kid", "mq")
	if err := f.svc.RecordAnswer(ctx, "kid", "mq", a.ID, quiz.SyntheticKey, "not json", nil); err != nil {
		t.Fatalf("malformed payload must still be recorded: %v", err)
	}
	done, out, err := f.svc.Complete(ctx, "kid", "mq", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != quiz.StatusCompleted || *done.Score != 0 {
		t.Fatalf("attempt = %s score %v, want completed 0", done.Status, *done.Score)
	}
	if len(out.Malformed) != 1 || !out.Malformed[0].IsSynthetic() {
		t.Fatalf("malformed = %v", out.Malformed)
	}
}

func TestTimeLimitExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 3)
	limit := 60
	q.TimeLimitSeconds = &limit
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	f.clock.Advance(30 * time.Second)
	view, err := f.svc.Take(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if view.Closed || view.RemainingSeconds == nil || *view.RemainingSeconds != 30 {
		t.Fatalf("view closed %v remaining %v", view.Closed, view.RemainingSeconds)
	}

	f.clock.Advance(31 * time.Second)
	view, err = f.svc.Take(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("take after limit: %v", err)
	}
	if !view.Closed || view.Attempt.Status != quiz.StatusExpired || view.Attempt.Score != nil {
		t.Fatalf("attempt = %s score %v closed %v, want unscored expired", view.Attempt.Status, view.Attempt.Score, view.Closed)
	}
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q1"), "4", nil); !errors.Is(err, quiz.ErrInvalidAttemptState) {
		t.Fatalf("record after expiry err = %v, want ErrInvalidAttemptState", err)
	}
	if _, _, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID); !errors.Is(err, quiz.ErrInvalidAttemptState) {
		t.Fatalf("complete after expiry err = %v, want ErrInvalidAttemptState", err)
	}
}

func TestSubmitAfterDeadlineExpiresInsteadOfScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 3)
	limit := 60
	q.TimeLimitSeconds = &limit
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	f.clock.Advance(61 * time.Second)
	_, _, err := f.svc.Submit(ctx, "kid", "quiz1", a.ID, map[quiz.QuestionKey]string{quiz.PersistedKey("q1"): "4"})
	if !errors.Is(err, quiz.ErrInvalidAttemptState) {
		t.Fatalf("late submit err = %v, want ErrInvalidAttemptState", err)
	}
	got, _ := f.store.GetAttempt(ctx, a.ID)
	if got.Status != quiz.StatusExpired || len(got.Answers) != 0 {
		t.Fatalf("attempt = %s with %d answers", got.Status, len(got.Answers))
	}
}

func TestCompletedAttemptIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 3)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	if _, _, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q1"), "4", nil); !errors.Is(err, quiz.ErrInvalidAttemptState) {
		t.Fatalf("record on completed err = %v", err)
	}
	if _, _, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID); !errors.Is(err, quiz.ErrInvalidAttemptState) {
		t.Fatalf("second complete err = %v", err)
	}
}

func TestRecordAnswerRejectsUnknownQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("nope"), "x", nil); !errors.Is(err, quiz.ErrInvalidQuestion) {
		t.Fatalf("err = %v, want ErrInvalidQuestion", err)
	}
	// the synthetic id is only valid for mental arithmetic quizzes without stored questions
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.SyntheticKey, flashPayload(1, 1, 100), nil); !errors.Is(err, quiz.ErrInvalidQuestion) {
		t.Fatalf("synthetic on standard quiz err = %v, want ErrInvalidQuestion", err)
	}
	_, _, err := f.svc.Submit(ctx, "kid", "quiz1", a.ID, map[quiz.QuestionKey]string{
		quiz.PersistedKey("q1"):   "4",
		quiz.PersistedKey("nope"): "x",
	})
	if !errors.Is(err, quiz.ErrInvalidQuestion) {
		t.Fatalf("submit err = %v, want ErrInvalidQuestion", err)
	}
	got, _ := f.store.GetAttempt(ctx, a.ID)
	if len(got.Answers) != 0 || got.Status != quiz.StatusInProgress {
		t.Fatalf("rejected submit wrote %d answers, status %s", len(got.Answers), got.Status)
	}
}

func TestRecordAnswerLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	took := 4
	_ = f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q1"), "3", nil)
	_ = f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q1"), "4", &took)
	got, _ := f.store.GetAttempt(ctx, a.ID)
	rec := got.Answers[quiz.PersistedKey("q1")]
	if rec.Raw != "4" || rec.TimeTakenSeconds == nil || *rec.TimeTakenSeconds != 4 {
		t.Fatalf("answer = %+v", rec)
	}
}

func TestAttemptUsesConfigFromStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 2)
	stored := f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")

	// tighten the quiz mid-attempt
	stored.PassingScorePercent = 100
	limit := 10
	stored.TimeLimitSeconds = &limit
	if _, _, err := f.svc.PutQuiz(ctx, stored, qs); err != nil {
		t.Fatalf("update quiz: %v", err)
	}
	f.clock.Advance(time.Minute)

	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q2"), "Paris", nil); err != nil {
		t.Fatalf("record under original limits: %v", err)
	}
	_, out, err := f.svc.Complete(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.Passed {
		t.Fatalf("score %v should pass under the 70%% threshold the attempt started with", out.Score)
	}
}

func TestResultHidesItemsUnlessShownImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	_, _, _ = f.svc.Complete(ctx, "kid", "quiz1", a.ID)
	res, err := f.svc.Result(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Items != nil || res.Score == nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestBestScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 3)
	f.put(t, q, qs...)

	best, err := f.svc.BestScore(ctx, "kid", "quiz1")
	if err != nil || best != nil {
		t.Fatalf("best before attempts = %v, %v", best, err)
	}
	for _, ans := range []string{"Paris", "", "London"} {
		a, _ := f.svc.Start(ctx, "kid", "quiz1")
		if _, _, err := f.svc.Submit(ctx, "kid", "quiz1", a.ID, map[quiz.QuestionKey]string{quiz.PersistedKey("q2"): ans}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	best, _ = f.svc.BestScore(ctx, "kid", "quiz1")
	if best == nil || *best != 75 {
		t.Fatalf("best = %v, want 75", best)
	}
}

func TestHooksSeeLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 2)
	limit := 60
	q.TimeLimitSeconds = &limit
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	_, _, _ = f.svc.Complete(ctx, "kid", "quiz1", a.ID)
	_, _ = f.svc.Start(ctx, "kid", "quiz1")
	f.clock.Advance(2 * time.Minute)
	_, _ = f.svc.View(ctx, "kid", "quiz1")
	_, _ = f.svc.Start(ctx, "kid", "quiz1")

	want := []quiz.EventType{
		quiz.EventQuizUpdated,
		quiz.EventAttemptStarted, quiz.EventAttemptCompleted,
		quiz.EventAttemptStarted, quiz.EventAttemptExpired,
	}
	got := f.events.types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestPutQuizValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base, qs := standardQuiz("quiz1", 1)
	base.LessonID, base.ProgramID, base.Title = "l1", "p1", "Quiz"

	cases := map[string]func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question{
		"no title":         func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question { q.Title = " "; return qs },
		"unknown type":     func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question { q.Type = "essay"; return qs },
		"passing over 100": func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question { q.PassingScorePercent = 101; return qs },
		"no questions":     func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question { return nil },
		"reserved id": func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question {
			qs[0].Key = quiz.SyntheticKey
			return qs
		},
		"duplicate id": func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question {
			qs[1].Key = qs[0].Key
			return qs
		},
		"bad operation": func(q *quiz.Quiz, qs []quiz.Question) []quiz.Question {
			q.Settings.Operations = []mental.Operation{"division"}
			return qs
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			q := base
			cp := append([]quiz.Question(nil), qs...)
			cp = mutate(&q, cp)
			if _, _, err := f.svc.PutQuiz(ctx, q, cp); !errors.Is(err, quiz.ErrInvalidQuiz) {
				t.Fatalf("err = %v, want ErrInvalidQuiz", err)
			}
		})
	}
}

func TestPutQuizAssignsIDs(t *testing.T) {
	f := newFixture(t)
	q := quiz.Quiz{LessonID: "l1", ProgramID: "p1", Title: "Quiz", Type: quiz.TypeStandard, IsActive: true}
	stored, questions, err := f.svc.PutQuiz(context.Background(), q, []quiz.Question{{Text: "a", CorrectAnswer: "x", Points: 1}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if stored.ID == "" || stored.MaxAttempts != 1 {
		t.Fatalf("stored = %+v", stored)
	}
	if questions[0].Key.IsZero() || questions[0].Order != 1 || questions[0].Type != "multiple_choice" {
		t.Fatalf("question = %+v", questions[0])
	}
}

func TestViewExpiresOverdueAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 2)
	limit := 60
	q.TimeLimitSeconds = &limit
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	view, _ := f.svc.View(ctx, "kid", "quiz1")
	if view.ActiveAttemptID != a.ID || view.CanStart {
		t.Fatalf("fresh view = active %q can_start %v", view.ActiveAttemptID, view.CanStart)
	}

	f.clock.Advance(2 * time.Minute)
	view, err := f.svc.View(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.ActiveAttemptID != "" || !view.CanStart || view.AttemptsLeft != 1 {
		t.Fatalf("overdue view = active %q can_start %v left %d", view.ActiveAttemptID, view.CanStart, view.AttemptsLeft)
	}
	if len(view.Attempts) != 1 || view.Attempts[0].Status != quiz.StatusExpired {
		t.Fatalf("attempts = %+v", view.Attempts)
	}
}

func TestSubmitKeepsAutosavedTiming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	took := 7
	if err := f.svc.RecordAnswer(ctx, "kid", "quiz1", a.ID, quiz.PersistedKey("q1"), "3", &took); err != nil {
		t.Fatalf("record: %v", err)
	}
	_, _, err := f.svc.Submit(ctx, "kid", "quiz1", a.ID, map[quiz.QuestionKey]string{
		quiz.PersistedKey("q1"): "4",
		quiz.PersistedKey("q2"): "Paris",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := f.store.GetAttempt(ctx, a.ID)
	q1 := got.Answers[quiz.PersistedKey("q1")]
	if q1.Raw != "4" || q1.TimeTakenSeconds == nil || *q1.TimeTakenSeconds != 7 {
		t.Fatalf("q1 = %+v", q1)
	}
	if q2 := got.Answers[quiz.PersistedKey("q2")]; q2.TimeTakenSeconds != nil {
		t.Fatalf("q2 time taken = %v, want none", *q2.TimeTakenSeconds)
	}
}

// closingRaceStore lets a competing start create an attempt just before ours
// and finish it before we look it up.
type closingRaceStore struct {
	quiz.Store
	raced       bool
	closeWinner bool
}

func (s *closingRaceStore) CreateAttempt(ctx context.Context, a quiz.Attempt) (quiz.Attempt, error) {
	if !s.raced {
		s.raced = true
		winner := a
		winner.ID = "winner"
		if _, err := s.Store.CreateAttempt(ctx, winner); err != nil {
			return quiz.Attempt{}, err
		}
		s.closeWinner = true
	}
	return s.Store.CreateAttempt(ctx, a)
}

func (s *closingRaceStore) FindInProgress(ctx context.Context, userID, quizID string) (quiz.Attempt, error) {
	if s.closeWinner {
		s.closeWinner = false
		score := 100.0
		if _, err := s.Store.Finish(ctx, "winner", quiz.StatusCompleted, &score, time.Now()); err != nil {
			return quiz.Attempt{}, err
		}
	}
	return s.Store.FindInProgress(ctx, userID, quizID)
}

func TestStart_LostRaceToClosedAttemptStartsAgain(t *testing.T) {
	ctx := context.Background()
	st := &closingRaceStore{Store: quiz.NewInMemoryStore()}
	svc := quiz.NewService(st, fakeEnrollments{"kid/p1": true}, logger.NewNop())
	q, qs := standardQuiz("quiz1", 2)
	q.LessonID, q.ProgramID, q.Title, q.IsActive = "l1", "p1", "Quiz", true
	if _, _, err := svc.PutQuiz(ctx, q, qs); err != nil {
		t.Fatalf("put: %v", err)
	}

	a, err := svc.Start(ctx, "kid", "quiz1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.ID == "winner" || a.Status != quiz.StatusInProgress {
		t.Fatalf("attempt = %s %s, want a fresh in_progress attempt", a.ID, a.Status)
	}
	all, _ := st.ListAttempts(ctx, "quiz1", "kid")
	if len(all) != 2 {
		t.Fatalf("attempts = %d, want 2", len(all))
	}
}

func TestTakeCarriesPerQuestionLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, qs := standardQuiz("quiz1", 1)
	perQuestion := 15
	q.PerQuestionTimeLimitSeconds = &perQuestion
	stored := f.put(t, q, qs...)

	a, _ := f.svc.Start(ctx, "kid", "quiz1")
	longer := 45
	stored.PerQuestionTimeLimitSeconds = &longer
	f.put(t, stored, qs...)

	view, err := f.svc.Take(ctx, "kid", "quiz1", a.ID)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if view.PerQuestionSeconds == nil || *view.PerQuestionSeconds != 15 {
		t.Fatalf("per question limit = %v, want the 15s captured at start", view.PerQuestionSeconds)
	}
}
