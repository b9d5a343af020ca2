package store

import (
	"database/sql"
	"time"
)

// Announcement is one spoken utterance.
type Announcement struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	SpokenAt  time.Time `json:"spoken_at"`
}

// AnnouncementRepository provides operations for announcements.
type AnnouncementRepository struct {
	db *sql.DB
}

// Announcements returns the announcement repository for this store.
func (s *Store) Announcements() *AnnouncementRepository {
	return &AnnouncementRepository{db: s.db}
}

// Record stores text as spoken now in the given session.
func (r *AnnouncementRepository) Record(sessionID, text string) (*Announcement, error) {
	a := &Announcement{SessionID: sessionID, Text: text, SpokenAt: time.Now()}

	result, err := r.db.Exec(
		`INSERT INTO announcements (session_id, text, spoken_at) VALUES (?, ?, ?)`,
		a.SessionID, a.Text, a.SpokenAt,
	)
	if err != nil {
		return nil, err
	}

	a.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListBySession returns the announcements of a session in the order spoken.
func (r *AnnouncementRepository) ListBySession(sessionID string) ([]*Announcement, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, text, spoken_at FROM announcements
		 WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Announcement
	for rows.Next() {
		a := &Announcement{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Text, &a.SpokenAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
