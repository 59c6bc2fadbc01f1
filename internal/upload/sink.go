package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
)

// StatusSink receives every upload state change.
type StatusSink interface {
	Publish(ctx context.Context, st LessonState) error
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(ctx context.Context, st LessonState) error

func (f SinkFunc) Publish(ctx context.Context, st LessonState) error {
	return f(ctx, st)
}

// NopSink discards updates.
type NopSink struct{}

func (NopSink) Publish(context.Context, LessonState) error { return nil }

// MultiSink fans updates out to several sinks.
type MultiSink []StatusSink

func (m MultiSink) Publish(ctx context.Context, st LessonState) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink records updates in memory.
type MemorySink struct {
	mu      sync.Mutex
	updates []LessonState
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Publish(_ context.Context, st LessonState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, st)
	return nil
}

// Updates returns every recorded update in publish order.
func (m *MemorySink) Updates() []LessonState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LessonState(nil), m.updates...)
}

// Latest returns the last update recorded for key.
func (m *MemorySink) Latest(key string) (LessonState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.updates) - 1; i >= 0; i-- {
		if m.updates[i].Key == key {
			return m.updates[i], true
		}
	}
	return LessonState{}, false
}

// RedisSink stores the latest state per target under
// upload:<session>:<key> and publishes every change on upload:<session>, so
// dashboards connected to other instances see progress too.
type RedisSink struct {
	cache     *cache.Cache
	sessionID string
	ttl       time.Duration
}

// NewRedisSink creates a sink for one editing session.
func NewRedisSink(c *cache.Cache, sessionID string, ttl time.Duration) *RedisSink {
	return &RedisSink{cache: c, sessionID: sessionID, ttl: ttl}
}

// StateKey is the redis key holding the latest state of key.
func StateKey(sessionID, key string) string {
	return fmt.Sprintf("upload:%s:%s", sessionID, key)
}

// Channel is the redis pub/sub channel for a session's upload updates.
func Channel(sessionID string) string {
	return "upload:" + sessionID
}

func (r *RedisSink) Publish(ctx context.Context, st LessonState) error {
	if err := r.cache.SetJSON(ctx, StateKey(r.sessionID, st.Key), st, r.ttl); err != nil {
		return err
	}
	return r.cache.PublishJSON(ctx, Channel(r.sessionID), st)
}
