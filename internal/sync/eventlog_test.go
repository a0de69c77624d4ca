package syncx_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/abakus-kids/academy/internal/db"
	"github.com/abakus-kids/academy/internal/quiz"
	syncx "github.com/abakus-kids/academy/internal/sync"
)

func TestEventLogRecordsQuizEvents(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "ev.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	repo := syncx.NewEventRepo(conn, "")

	at := time.Unix(1_770_000_000, 0)
	score := 80.0
	events := []quiz.Event{
		{Type: quiz.EventQuizUpdated, QuizID: "q1", At: at},
		{Type: quiz.EventAttemptStarted, QuizID: "q1", AttemptID: "a1", UserID: "kid", At: at},
		{Type: quiz.EventAttemptCompleted, QuizID: "q1", AttemptID: "a1", UserID: "kid", Score: &score, At: at},
	}
	for _, e := range events {
		if err := repo.OnEvent(ctx, e); err != nil {
			t.Fatalf("on event: %v", err)
		}
	}

	got, err := repo.Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Key != "q1" || got[1].Key != "a1" || got[2].Type != "attempt.completed" {
		t.Fatalf("events = %+v", got)
	}
	if got[0].SiteID != "local" || got[0].CreatedAt != at.Unix() {
		t.Fatalf("first = %+v", got[0])
	}

	rest, _ := repo.Since(ctx, got[1].Seq, 10)
	if len(rest) != 1 || rest[0].Seq != got[2].Seq {
		t.Fatalf("since %d = %+v", got[1].Seq, rest)
	}
}
