// Package journal keeps a local sqlite log of operations run from this host.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"

	"localcloud/pkg/model"
)

const schema = `CREATE TABLE IF NOT EXISTS events(id TEXT PRIMARY KEY, kind TEXT, subject TEXT, detail TEXT, ts INTEGER);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);`

// Journal is safe for sequential use; it holds a single connection.
type Journal struct {
	db     *sql.DB
	logger hclog.Logger
	now    func() time.Time
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string, logger hclog.Logger) (*Journal, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, logger: logger.Named("journal"), now: time.Now}, nil
}

// Record appends an event. Failures are logged and otherwise ignored.
// A nil Journal records nothing.
func (j *Journal) Record(ctx context.Context, kind, subject, detail string) {
	if j == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := j.db.ExecContext(ctx, `INSERT INTO events(id, kind, subject, detail, ts) VALUES(?,?,?,?,?)`,
		uuid.NewString(), kind, subject, detail, j.now().UnixNano())
	if err != nil {
		j.logger.Warn("record event failed", "kind", kind, "subject", subject, "error", err)
	}
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, kind, subject, detail, ts FROM events ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var (
			ev model.Event
			ts int64
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Subject, &ev.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close releases the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
