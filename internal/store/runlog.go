package store

import (
	"database/sql"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// RunLog is an append-only sqlite audit trail of workflow activity. It is
// write-mostly observability: nothing ever reads it back to resume a run.
type RunLog struct {
	DB *sql.DB
}

// LogEntry is one recorded workflow event.
type LogEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Event     string    `json:"event"`
	StepID    string    `json:"step_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRunLog(dbPath string) (*RunLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	query := `CREATE TABLE IF NOT EXISTS workflow_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		event TEXT,
		step_id TEXT,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(query); err != nil {
		return nil, err
	}

	return &RunLog{DB: db}, nil
}

// Append records one workflow event for a session.
func (r *RunLog) Append(sessionID, event, stepID, detail string) error {
	query := `INSERT INTO workflow_log (session_id, event, step_id, detail) VALUES (?, ?, ?, ?)`
	_, err := r.DB.Exec(query, sessionID, event, stepID, detail)
	return err
}

// Recent returns the latest events for a session in chronological order.
func (r *RunLog) Recent(sessionID string, limit int) ([]LogEntry, error) {
	query := `SELECT id, session_id, event, step_id, detail, timestamp
		FROM workflow_log WHERE session_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.DB.Query(query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Event, &e.StepID, &e.Detail, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Purge drops all events for a session, used when a session is reaped.
func (r *RunLog) Purge(sessionID string) error {
	_, err := r.DB.Exec(`DELETE FROM workflow_log WHERE session_id = ?`, sessionID)
	return err
}

func (r *RunLog) Close() error {
	return r.DB.Close()
}
