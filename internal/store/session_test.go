package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/aisight/internal/feedback"
)

func TestSessionRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Mode: "money", State: "active"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if _, err := uuid.Parse(sess.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", sess.ID, err)
	}
	if sess.StartedAt.IsZero() {
		t.Error("StartedAt should be set after create")
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.Mode != "money" || got.State != "active" {
		t.Errorf("got mode %q state %q, want money active", got.Mode, got.State)
	}
	if got.EndedAt != nil {
		t.Errorf("EndedAt = %v, want nil for a live session", got.EndedAt)
	}
}

func TestSessionRepository_CreateRejectsUnknownMode(t *testing.T) {
	s := newTestStore(t)

	if err := s.Sessions().Create(&Session{Mode: "gesture", State: "active"}); err == nil {
		t.Error("expected constraint error for unknown mode")
	}
}

func TestSessionRepository_Finish(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Mode: "door", State: "active"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := repo.UpdateState(sess.ID, "suspended"); err != nil {
		t.Fatalf("failed to update state: %v", err)
	}

	stats := SessionStats{Accepted: 40, Dropped: 12, Processed: 38, Failures: 2}
	if err := repo.Finish(sess.ID, "torn_down", "exit gesture", stats); err != nil {
		t.Fatalf("failed to finish session: %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	if got.State != "torn_down" || got.EndReason != "exit gesture" {
		t.Errorf("got state %q reason %q", got.State, got.EndReason)
	}
	if got.EndedAt == nil {
		t.Fatal("EndedAt should be set after finish")
	}
	if got.FramesAccepted != 40 || got.FramesDropped != 12 || got.FramesProcessed != 38 || got.DetectorFailures != 2 {
		t.Errorf("counters = %+v", got)
	}
}

func TestSessionRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "get", fn: func() error { _, err := repo.GetByID("missing"); return err }},
		{name: "update state", fn: func() error { return repo.UpdateState("missing", "active") }},
		{name: "finish", fn: func() error { return repo.Finish("missing", "torn_down", "", SessionStats{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSessionRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		sess := &Session{Mode: "door", State: "torn_down", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(sess); err != nil {
			t.Fatalf("failed to create session %d: %v", i, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d sessions, want 3", len(all))
	}
	if !all[0].StartedAt.After(all[2].StartedAt) {
		t.Error("sessions should be listed newest first")
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d sessions, want 2", len(limited))
	}
}

func TestAnnouncementRepository(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: "money", State: "active"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	repo := s.Announcements()
	for _, text := range []string{"5 dinars", "7.50 dinars"} {
		if _, err := repo.Record(sess.ID, text); err != nil {
			t.Fatalf("failed to record %q: %v", text, err)
		}
	}

	got, err := repo.ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("failed to list announcements: %v", err)
	}
	if len(got) != 2 || got[0].Text != "5 dinars" || got[1].Text != "7.50 dinars" {
		t.Errorf("announcements = %+v", got)
	}

	if _, err := repo.Record("missing", "orphan"); err == nil {
		t.Error("expected foreign key error for unknown session")
	}
}

func TestSpeaker_RecordsUtterances(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{Mode: "money", State: "active"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	inner := feedback.NewMockSpeaker(nil)
	sp := NewSpeaker(inner, s.Announcements(), sess.ID)

	if err := sp.Speak("5 dinars", feedback.QueueFlush); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	inner.SetError(errors.New("engine down"))
	if err := sp.Speak("10 dinars", feedback.QueueFlush); err == nil {
		t.Error("Speak() should return the inner error")
	}

	got, err := s.Announcements().ListBySession(sess.ID)
	if err != nil {
		t.Fatalf("failed to list announcements: %v", err)
	}
	if len(got) != 1 || got[0].Text != "5 dinars" {
		t.Errorf("announcements = %+v, want only the successful utterance", got)
	}

	if err := sp.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := sp.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
	if inner.Stops() != 1 || inner.Releases() != 1 {
		t.Errorf("inner stops=%d releases=%d, want 1/1", inner.Stops(), inner.Releases())
	}
}
