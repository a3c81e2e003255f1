package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session represents one pipeline run.
type Session struct {
	ID        string
	Endpoint  string
	StartedAt time.Time
	EndedAt   sql.NullTime
}

// Event is an operational event journaled during a session.
type Event struct {
	ID        int64
	SessionID string
	At        time.Time
	Kind      string
	Detail    string
}

// Journal records events against a single open session.
type Journal struct {
	db        *sql.DB
	sessionID string
}

// StartSession creates a session row and returns a Journal bound to it.
func (s *Store) StartSession(endpoint string) (*Journal, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, endpoint, started_at) VALUES (?, ?, ?)`,
		id, endpoint, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	return &Journal{db: s.db, sessionID: id}, nil
}

// SessionID returns the ID of the session this journal writes to.
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Record appends an event to the session.
func (j *Journal) Record(kind, detail string) error {
	_, err := j.db.Exec(
		`INSERT INTO events (session_id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		j.sessionID, time.Now(), kind, detail,
	)
	return err
}

// End marks the session as finished.
func (j *Journal) End() error {
	_, err := j.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		time.Now(), j.sessionID,
	)
	return err
}

// Sessions lists all sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, endpoint, started_at, ended_at FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Endpoint, &sess.StartedAt, &sess.EndedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Events lists the events of a session in insertion order.
func (s *Store) Events(sessionID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, at, kind, detail FROM events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.At, &ev.Kind, &ev.Detail); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
