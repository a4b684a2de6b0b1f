// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// JournalFile is the journal database name inside the artifact directory.
const JournalFile = "session.db"

// Entry is one accepted channel write.
type Entry struct {
	SessionID string
	Seq       int
	Stage     string
	Channel   Channel
	// Payload is the JSON encoding of the value held by the channel after the write.
	Payload   []byte
	WrittenAt time.Time
}

// Journal receives every accepted write.
type Journal interface {
	Record(e Entry) error
}

// SQLiteJournal keeps the write log of sessions in a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenJournal opens or creates the journal at dir/session.db.
func OpenJournal(dir string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, JournalFile)+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS writes (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			stage TEXT NOT NULL,
			channel TEXT NOT NULL,
			payload TEXT NOT NULL,
			written_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_writes_channel ON writes(session_id, channel)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Record appends e.
func (j *SQLiteJournal) Record(e Entry) error {
	_, err := j.db.Exec(
		`INSERT INTO writes (session_id, seq, stage, channel, payload, written_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Seq, e.Stage, string(e.Channel), string(e.Payload), e.WrittenAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording %s write %d: %w", e.Channel, e.Seq, err)
	}
	return nil
}

// Entries returns the writes of one session in sequence order.
func (j *SQLiteJournal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, stage, channel, payload, written_at FROM writes WHERE session_id = ? ORDER BY seq`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			channel string
			payload string
			at      string
		)
		if err := rows.Scan(&e.Seq, &e.Stage, &channel, &payload, &at); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.SessionID = sessionID
		e.Channel = Channel(channel)
		e.Payload = []byte(payload)
		e.WrittenAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns the ids of journaled sessions, most recent first.
func (j *SQLiteJournal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id FROM writes GROUP BY session_id ORDER BY MIN(written_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
