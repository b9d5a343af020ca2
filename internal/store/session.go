package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session is a recorded perception session.
type Session struct {
	ID               string     `json:"id"`
	Mode             string     `json:"mode"`
	State            string     `json:"state"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	EndReason        string     `json:"end_reason,omitempty"`
	FramesAccepted   int64      `json:"frames_accepted"`
	FramesDropped    int64      `json:"frames_dropped"`
	FramesProcessed  int64      `json:"frames_processed"`
	DetectorFailures int64      `json:"detector_failures"`
}

// SessionStats are the frame counters written when a session finishes.
type SessionStats struct {
	Accepted  uint64
	Dropped   uint64
	Processed uint64
	Failures  uint64
}

// SessionRepository provides operations for session rows.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session. An empty ID is replaced with a new UUID and
// a zero StartedAt with the current time.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, mode, state, started_at)
		 VALUES (?, ?, ?, ?)`,
		sess.ID, sess.Mode, sess.State, sess.StartedAt,
	)
	return err
}

// UpdateState changes the lifecycle state of a session.
func (r *SessionRepository) UpdateState(id, state string) error {
	result, err := r.db.Exec(`UPDATE sessions SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Finish marks a session ended and stores its final counters.
func (r *SessionRepository) Finish(id, state, reason string, stats SessionStats) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET state = ?, ended_at = ?, end_reason = ?,
		 frames_accepted = ?, frames_dropped = ?, frames_processed = ?, detector_failures = ?
		 WHERE id = ?`,
		state, time.Now(), reason,
		int64(stats.Accepted), int64(stats.Dropped), int64(stats.Processed), int64(stats.Failures),
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

const sessionColumns = `id, mode, state, started_at, ended_at, end_reason,
	frames_accepted, frames_dropped, frames_processed, detector_failures`

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List returns the most recent sessions first. A limit of zero or less
// returns every session.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	err := row.Scan(
		&sess.ID, &sess.Mode, &sess.State, &sess.StartedAt, &ended, &sess.EndReason,
		&sess.FramesAccepted, &sess.FramesDropped, &sess.FramesProcessed, &sess.DetectorFailures,
	)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
