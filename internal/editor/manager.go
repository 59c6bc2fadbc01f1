package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-curriculum/internal/binding"
	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/dragdrop"
	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

var (
	ErrSessionNotFound  = errors.New("editing session not found")
	ErrTemplateNotFound = errors.New("curriculum template not found")
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Store     curriculum.Store
	Templates *curriculum.Loader // optional
	Hub       *binding.Hub
	Uploader  upload.Uploader
	Upload    upload.Config
	Events    EventLogger  // optional
	Cache     *cache.Cache // optional, mirrors upload state to redis
	UploadTTL time.Duration
	TreeOpts  []curriculum.Option
}

// Manager creates and tracks editing sessions.
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(d Deps) *Manager {
	if d.Events == nil {
		d.Events = NopEventLogger{}
	}
	if d.Hub == nil {
		d.Hub = binding.NewHub()
	}
	return &Manager{deps: d, sessions: make(map[string]*Session)}
}

// CreateRequest selects how a session's tree is seeded. At most one of the
// fields is used, in this order: CurriculumID (edit mode, from the store),
// Curriculum (edit mode, hydrated from the form's current value), Template,
// and otherwise a single empty week.
type CreateRequest struct {
	CurriculumID string          `json:"curriculumId,omitempty"`
	Curriculum   json.RawMessage `json:"curriculum,omitempty"`
	Template     string          `json:"template,omitempty"`
	Title        string          `json:"title,omitempty"`
}

// Create opens a new session.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	tree, title, err := m.seed(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		title = req.Title
	}

	s := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		tree:         tree,
		title:        title,
		curriculumID: req.CurriculumID,
		store:        m.deps.Store,
		events:       m.deps.Events,
	}

	room := m.deps.Hub.Room(s.ID)
	s.binder = binding.NewBinder(room)
	s.drag = dragdrop.New(tree)

	sinks := upload.MultiSink{room, upload.SinkFunc(s.uploadEvents)}
	if m.deps.Cache != nil {
		sinks = append(sinks, upload.NewRedisSink(m.deps.Cache, s.ID, m.deps.UploadTTL))
	}
	s.uploads = upload.NewCoordinator(m.deps.Upload, m.deps.Uploader, s, sinks)

	s.binder.Push(tree.Snapshot())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Info("editing session created",
		"session_id", s.ID,
		"curriculum_id", req.CurriculumID,
		"template", req.Template,
	)
	return s, nil
}

func (m *Manager) seed(ctx context.Context, req CreateRequest) (*curriculum.Tree, string, error) {
	opts := m.deps.TreeOpts
	switch {
	case req.CurriculumID != "":
		rec, err := m.deps.Store.Load(ctx, req.CurriculumID)
		if err != nil {
			return nil, "", fmt.Errorf("loading curriculum %s: %w", req.CurriculumID, err)
		}
		tree, err := curriculum.Load(rec.Weeks, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("hydrating curriculum %s: %w", req.CurriculumID, err)
		}
		return tree, rec.Title, nil

	case len(req.Curriculum) > 0:
		form := binding.NewMemoryForm()
		form.SetField(binding.FieldCurriculum, req.Curriculum)
		weeks, err := binding.Hydrate(form)
		if err != nil {
			return nil, "", err
		}
		tree, err := curriculum.Load(weeks, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("hydrating curriculum: %w", err)
		}
		return tree, "", nil

	case req.Template != "":
		if m.deps.Templates == nil {
			return nil, "", fmt.Errorf("%w: %s", ErrTemplateNotFound, req.Template)
		}
		tpl, ok := m.deps.Templates.Get(req.Template)
		if !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrTemplateNotFound, req.Template)
		}
		tree, err := curriculum.Load(tpl.Weeks, opts...)
		if err != nil {
			return nil, "", fmt.Errorf("template %s: %w", req.Template, err)
		}
		return tree, tpl.Name, nil
	}
	return curriculum.New(opts...), "", nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// IDs lists open session ids.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close closes a session and disconnects its form subscribers.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.Close()
	m.deps.Hub.Drop(id)
	slog.Info("editing session closed", "session_id", id)
	return nil
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, id := range m.IDs() {
		_ = m.Close(id)
	}
}

// Hub returns the form binding hub.
func (m *Manager) Hub() *binding.Hub {
	return m.deps.Hub
}

// Templates returns the template loader, or nil.
func (m *Manager) Templates() *curriculum.Loader {
	return m.deps.Templates
}
