package db_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abakus-kids/academy/internal/db"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "academy.db") + "?_pragma=foreign_keys(1)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	for _, table := range []string{"users", "programs", "lessons", "enrollments", "quizzes", "quiz_questions", "quiz_attempts", "attempt_answers", "event_log"} {
		var n int
		if err := conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}

	// opening again must be a no-op on an existing schema
	conn2, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	conn2.Close()
}

func TestOneActiveAttemptIndex(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "a.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := conn.ExecContext(ctx, q, args...); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	mustExec(`INSERT INTO programs (id,title,created_at) VALUES ('p1','Abacus',0)`)
	mustExec(`INSERT INTO lessons (id,program_id,title) VALUES ('l1','p1','Lesson')`)
	mustExec(`INSERT INTO quizzes (id,lesson_id,title,type,created_at,updated_at) VALUES ('q1','l1','Quiz','standard',0,0)`)
	insert := `INSERT INTO quiz_attempts (id,quiz_id,user_id,status,snapshot_json,started_at_ms) VALUES (?,?,?,?,?,0)`
	mustExec(insert, "a1", "q1", "u1", "completed", "{}")
	mustExec(insert, "a2", "q1", "u1", "in_progress", "{}")

	_, err = conn.ExecContext(ctx, insert, "a3", "q1", "u1", "in_progress", "{}")
	if err == nil || !strings.Contains(err.Error(), "UNIQUE") {
		t.Fatalf("second in_progress attempt: err=%v, want unique violation", err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := db.Open(context.Background(), "mysql", ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
