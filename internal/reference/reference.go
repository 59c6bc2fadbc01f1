// Package reference serves the lookup lists the curriculum editor offers in
// its pickers: quizzes, assignments, instructors and so on.
package reference

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Kind names a reference list.
type Kind string

const (
	KindQuizzes     Kind = "quizzes"
	KindAssignments Kind = "assignments"
	KindInstructors Kind = "instructors"
	KindStudents    Kind = "students"
	KindBatches     Kind = "batches"
	KindGrades      Kind = "grades"
	KindDashboards  Kind = "dashboards"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindQuizzes, KindAssignments, KindInstructors, KindStudents, KindBatches, KindGrades, KindDashboards}

// ErrUnknownKind is returned for a kind outside Kinds.
var ErrUnknownKind = errors.New("unknown reference kind")

// ParseKind validates s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Item is one selectable entry.
type Item struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Source provides reference lists.
type Source interface {
	Name() string
	List(ctx context.Context, kind Kind) ([]Item, error)
}

// List is the catalog's answer for one kind.
type List struct {
	Items         []Item    `json:"items"`
	UsingFallback bool      `json:"usingFallback"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

//go:embed fallback.yaml
var fallbackYAML []byte

// StaticSource serves a fixed dataset.
type StaticSource struct {
	lists map[Kind][]Item
}

// NewStaticSource parses a YAML document mapping kinds to item lists.
func NewStaticSource(data []byte) (*StaticSource, error) {
	var lists map[Kind][]Item
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("parsing reference data: %w", err)
	}
	for k := range lists {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
	}
	return &StaticSource{lists: lists}, nil
}

// DefaultFallback returns the embedded fallback dataset.
func DefaultFallback() *StaticSource {
	s, err := NewStaticSource(fallbackYAML)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) List(_ context.Context, kind Kind) ([]Item, error) {
	items := s.lists[kind]
	out := make([]Item, len(items))
	copy(out, items)
	return out, nil
}

// Catalog answers from its sources in order and falls back to a static
// dataset when every source fails. Answers are memoized for ttl.
type Catalog struct {
	sources  []Source
	fallback Source
	ttl      time.Duration

	mu   sync.RWMutex
	memo map[Kind]List
}

// NewCatalog creates a catalog. A nil fallback uses the embedded dataset.
func NewCatalog(ttl time.Duration, fallback Source, sources ...Source) *Catalog {
	if fallback == nil {
		fallback = DefaultFallback()
	}
	return &Catalog{
		sources:  sources,
		fallback: fallback,
		ttl:      ttl,
		memo:     make(map[Kind]List),
	}
}

// List returns the items of kind.
func (c *Catalog) List(ctx context.Context, kind Kind) (List, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return List{}, err
	}

	c.mu.RLock()
	l, ok := c.memo[kind]
	c.mu.RUnlock()
	if ok && c.ttl > 0 && time.Since(l.FetchedAt) < c.ttl {
		return l, nil
	}
	return c.fetch(ctx, kind)
}

// Refresh reloads every kind concurrently.
func (c *Catalog) Refresh(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, k := range Kinds {
		g.Go(func() error {
			_, err := c.fetch(ctx, k)
			return err
		})
	}
	return g.Wait()
}

// UsingFallback reports whether any memoized list came from the fallback.
func (c *Catalog) UsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.memo {
		if l.UsingFallback {
			return true
		}
	}
	return false
}

func (c *Catalog) fetch(ctx context.Context, kind Kind) (List, error) {
	for _, s := range c.sources {
		items, err := s.List(ctx, kind)
		if err != nil {
			slog.Warn("reference source failed, trying next",
				"source", s.Name(),
				"kind", kind,
				"error", err,
			)
			continue
		}
		return c.store(kind, List{Items: items, Source: s.Name()}), nil
	}

	if err := ctx.Err(); err != nil {
		return List{}, err
	}
	items, err := c.fallback.List(ctx, kind)
	if err != nil {
		return List{}, fmt.Errorf("reference fallback for %s: %w", kind, err)
	}
	if len(c.sources) > 0 {
		slog.Warn("serving fallback reference data", "kind", kind)
	}
	return c.store(kind, List{Items: items, Source: c.fallback.Name(), UsingFallback: true}), nil
}

func (c *Catalog) store(kind Kind, l List) List {
	if l.Items == nil {
		l.Items = []Item{}
	}
	l.FetchedAt = time.Now()
	c.mu.Lock()
	c.memo[kind] = l
	c.mu.Unlock()
	return l
}
