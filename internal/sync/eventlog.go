package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/abakus-kids/academy/internal/quiz"
)

// Event is one row of the append-only event log other sites replay.
type Event struct {
	Seq       int64  `json:"seq" db:"seq"`
	SiteID    string `json:"site_id" db:"site_id"`
	Type      string `json:"type" db:"typ"`
	Key       string `json:"key" db:"key"`
	DataJSON  string `json:"data" db:"data"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

type EventRepo struct {
	db     *sqlx.DB
	siteID string
}

func NewEventRepo(db *sqlx.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO event_log (site_id, typ, key, data, created_at)
		VALUES (?,?,?,?,?)`),
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	return err
}

// Since returns up to limit events with seq greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var out []Event
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT seq, site_id, typ, key, data, created_at
		FROM event_log WHERE seq > ? ORDER BY seq LIMIT ?`), after, limit)
	return out, err
}

// OnEvent records quiz lifecycle events, keyed by attempt when there is one.
func (r *EventRepo) OnEvent(ctx context.Context, e quiz.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := e.QuizID
	if e.AttemptID != "" {
		key = e.AttemptID
	}
	if err := r.Append(ctx, Event{Type: string(e.Type), Key: key, DataJSON: string(data), CreatedAt: e.At.Unix()}); err != nil {
		return fmt.Errorf("append %s: %w", e.Type, err)
	}
	return nil
}
