package store

import (
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/log"
)

// Speaker records every successful utterance of the wrapped speaker.
type Speaker struct {
	inner     feedback.Speaker
	repo      *AnnouncementRepository
	sessionID string
}

// NewSpeaker wraps inner so that utterances are stored under sessionID.
func NewSpeaker(inner feedback.Speaker, repo *AnnouncementRepository, sessionID string) *Speaker {
	return &Speaker{inner: inner, repo: repo, sessionID: sessionID}
}

func (s *Speaker) Speak(text string, mode feedback.QueueMode) error {
	if err := s.inner.Speak(text, mode); err != nil {
		return err
	}
	if _, err := s.repo.Record(s.sessionID, text); err != nil {
		log.Warn("failed to record announcement", "session", s.sessionID, "error", err)
	}
	return nil
}

func (s *Speaker) Stop() error {
	return s.inner.Stop()
}

func (s *Speaker) Release() error {
	return s.inner.Release()
}
