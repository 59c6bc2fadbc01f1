// Package editor holds curriculum editing sessions. A session owns one tree
// and serializes every change to it: commands, drag gestures and finished
// uploads all run under the session lock and are followed by a snapshot push
// to the form.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/binding"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/dragdrop"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("editing session is closed")

	// ErrNotUploadable is returned when the upload target cannot take media.
	ErrNotUploadable = errors.New("target does not accept uploads")
)

// Session is one open curriculum editor.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	tree         *curriculum.Tree
	title        string
	curriculumID string
	closed       bool

	drag    *dragdrop.Controller
	uploads *upload.Coordinator
	binder  *binding.Binder
	store   curriculum.Store
	events  EventLogger
}

// View is a session snapshot for the dashboard.
type View struct {
	ID           string               `json:"id"`
	CurriculumID string               `json:"curriculumId,omitempty"`
	Title        string               `json:"title"`
	Curriculum   []curriculum.Week    `json:"curriculum"`
	HasLessons   bool                 `json:"hasLessons"`
	Summary      curriculum.Summary   `json:"summary"`
	Drag         string               `json:"drag"`
	Uploads      []upload.LessonState `json:"uploads"`
}

// View returns the current session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:           s.ID,
		CurriculumID: s.curriculumID,
		Title:        s.title,
		Curriculum:   s.tree.Snapshot(),
		HasLessons:   s.tree.HasLessons(),
		Summary:      s.tree.Summary(),
		Drag:         s.drag.State().String(),
		Uploads:      s.uploads.States(),
	}
}

// Apply runs one command. On failure the tree is unchanged; a refused
// last-week removal also carries the user-facing warning in the result.
func (s *Session) Apply(cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Op: cmd.Op}
	if s.closed {
		return res, ErrSessionClosed
	}

	invalidate, err := s.apply(cmd, &res)
	if err != nil {
		if errors.Is(err, curriculum.ErrLastWeek) {
			res.Warning = curriculum.LastWeekWarning
			slog.Warn("week removal refused", "session_id", s.ID, "week", cmd.Week)
			s.logEvent(EventWeekRemovalRefused, map[string]any{"week": cmd.Week})
		}
		res.Curriculum = s.tree.Snapshot()
		res.Summary = s.tree.Summary()
		return res, fmt.Errorf("%s: %w", cmd.Op, err)
	}

	if invalidate != "" {
		s.uploads.Invalidate(invalidate)
	}
	s.changed()
	slog.Debug("command applied", "session_id", s.ID, "op", cmd.Op)

	res.Curriculum = s.tree.Snapshot()
	res.Summary = s.tree.Summary()
	return res, nil
}

// DragResult is a drag outcome plus the snapshot after it.
type DragResult struct {
	dragdrop.Outcome
	Curriculum []curriculum.Week `json:"curriculum"`
}

// Drag feeds one gesture event to the drag controller.
func (s *Session) Drag(ev dragdrop.Event) (DragResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return DragResult{}, ErrSessionClosed
	}

	out := s.drag.Handle(ev)
	if out.Action == dragdrop.ActionMoved {
		s.changed()
	}
	return DragResult{Outcome: out, Curriculum: s.tree.Snapshot()}, nil
}

// Upload starts an upload for a video lesson, or for one of its resources
// when resourceID is set. lessonID may name a section for section resources.
func (s *Session) Upload(lessonID, resourceID string, f upload.File) (upload.LessonState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return upload.LessonState{}, ErrSessionClosed
	}

	t, err := s.target(lessonID, resourceID)
	if err != nil {
		return upload.LessonState{}, err
	}
	return s.uploads.Start(t, f)
}

func (s *Session) target(lessonID, resourceID string) (upload.Target, error) {
	if resourceID != "" {
		if kind, _ := s.tree.Kind(resourceID); kind != "resource" {
			return upload.Target{}, fmt.Errorf("resource %s: %w", resourceID, curriculum.ErrNotFound)
		}
		if parent, _ := s.tree.ParentID(resourceID); parent != lessonID {
			return upload.Target{}, fmt.Errorf("resource %s does not belong to %s: %w", resourceID, lessonID, curriculum.ErrNotFound)
		}
		h, _ := s.tree.HandleOf(resourceID)
		return upload.Target{LessonID: lessonID, ResourceID: resourceID, Media: upload.MediaDocument, Handle: h}, nil
	}

	l, ok := s.tree.LessonByID(lessonID)
	if !ok {
		return upload.Target{}, fmt.Errorf("lesson %s: %w", lessonID, curriculum.ErrNotFound)
	}
	if l.Type != curriculum.LessonVideo {
		return upload.Target{}, fmt.Errorf("%s is a %s lesson: %w", lessonID, l.Type, ErrNotUploadable)
	}
	h, _ := s.tree.HandleOf(lessonID)
	return upload.Target{LessonID: lessonID, Media: upload.MediaVideo, Handle: h}, nil
}

// Uploads returns the upload state of every tracked target.
func (s *Session) Uploads() []upload.LessonState {
	return s.uploads.States()
}

// WaitUploads blocks until running uploads have finished.
func (s *Session) WaitUploads() {
	s.uploads.Wait()
}

// WriteMedia attaches a finished upload to its node. It runs on the upload
// goroutine and takes the session lock like any other mutation.
func (s *Session) WriteMedia(t upload.Target, r upload.Result, current func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !current() {
		return upload.ErrStale
	}
	id, ok := s.tree.IDOf(t.Handle)
	if !ok {
		return upload.ErrStale
	}

	var err error
	switch t.Media {
	case upload.MediaDocument:
		err = s.tree.SetResourceURL(id, r.URL)
	default:
		err = s.tree.SetLessonMedia(id, curriculum.MediaUpdate{
			URL:          r.URL,
			Duration:     r.Duration,
			ThumbnailURL: r.ThumbnailURL,
			FileSize:     r.FileSize,
		})
	}
	if err != nil {
		return err
	}
	s.binder.Push(s.tree.Snapshot())
	return nil
}

// Save validates the curriculum and writes it to the store. Validation
// failures return curriculum.ValidationErrors with an unsuccessful result.
func (s *Session) Save(ctx context.Context) (curriculum.SaveResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return curriculum.SaveResult{}, ErrSessionClosed
	}
	rec := curriculum.Record{ID: s.curriculumID, Title: s.title, Weeks: s.tree.Snapshot()}
	s.mu.Unlock()

	if err := curriculum.Validate(rec.Weeks); err != nil {
		var verrs curriculum.ValidationErrors
		msg := err.Error()
		if errors.As(err, &verrs) {
			msg = verrs.Summary()
		}
		return curriculum.SaveResult{Success: false, Message: msg}, err
	}

	res, err := s.store.Save(ctx, rec)
	if err != nil {
		return curriculum.SaveResult{Success: false, Message: "Failed to save curriculum"}, fmt.Errorf("saving curriculum: %w", err)
	}

	s.mu.Lock()
	s.curriculumID = res.ID
	s.logEvent(EventCurriculumSaved, map[string]any{"weeks": len(rec.Weeks)})
	s.mu.Unlock()

	slog.Info("curriculum saved", "session_id", s.ID, "curriculum_id", res.ID)
	return res, nil
}

// ExportXLSX writes the outline workbook.
func (s *Session) ExportXLSX(w io.Writer) error {
	s.mu.Lock()
	title, weeks := s.title, s.tree.Snapshot()
	s.mu.Unlock()
	return curriculum.ExportXLSX(w, title, weeks)
}

// ExportYAML renders the curriculum as a template document.
func (s *Session) ExportYAML() ([]byte, error) {
	s.mu.Lock()
	id, title, weeks := s.curriculumID, s.title, s.tree.Snapshot()
	s.mu.Unlock()
	if id == "" {
		id = s.ID
	}
	return curriculum.MarshalYAML(id, title, weeks)
}

// Close cancels running uploads. Results arriving afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.uploads.Close()
}

// changed re-resolves upload targets against the new ids and pushes the
// snapshot. Must be called with s.mu held.
func (s *Session) changed() {
	s.uploads.Rekey(func(t upload.Target) (upload.Target, bool) {
		id, ok := s.tree.IDOf(t.Handle)
		if !ok {
			return t, false
		}
		if t.ResourceID != "" {
			t.ResourceID = id
			t.LessonID, _ = s.tree.ParentID(id)
		} else {
			t.LessonID = id
		}
		return t, true
	})
	s.binder.Push(s.tree.Snapshot())
}

// logEvent must be called with s.mu held.
func (s *Session) logEvent(eventType string, data map[string]any) {
	err := s.events.LogEvent(Event{
		SessionID:    s.ID,
		CurriculumID: s.curriculumID,
		EventType:    eventType,
		Data:         data,
	})
	if err != nil {
		slog.Warn("failed to log event", "type", eventType, "session_id", s.ID, "error", err)
	}
}

// uploadEvents records terminal upload states as audit events.
func (s *Session) uploadEvents(_ context.Context, st upload.LessonState) error {
	var eventType string
	data := map[string]any{"key": st.Key, "lesson_id": st.Target.LessonID, "attempt": st.Attempt}
	switch st.Status {
	case upload.StatusCompleted:
		eventType = EventUploadCompleted
		data["url"] = st.URL
	case upload.StatusFailed:
		eventType = EventUploadFailed
		if st.Error != nil {
			data["kind"] = st.Error.Kind
			data["message"] = st.Error.Message
		}
	default:
		return nil
	}

	// Start publishes validation failures while the session lock is held, so
	// this path must not take it.
	return s.events.LogEvent(Event{SessionID: s.ID, EventType: eventType, Data: data})
}
