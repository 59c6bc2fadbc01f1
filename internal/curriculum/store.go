package curriculum

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRecordNotFound is returned by Store.Load for an unknown curriculum id.
var ErrRecordNotFound = errors.New("curriculum not found")

// Record is a persisted curriculum: the whole week array is one value.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Weeks     []Week    `json:"curriculum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SaveResult reports the outcome of a save to the dashboard.
type SaveResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Store persists curricula. Save creates a record when rec.ID is empty.
type Store interface {
	Save(ctx context.Context, rec Record) (SaveResult, error)
	Load(ctx context.Context, id string) (Record, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory curriculum store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = generateID()
	}
	rec.UpdatedAt = time.Now()
	rec.Weeks = cloneWeeks(rec.Weeks)
	s.records[rec.ID] = rec
	return SaveResult{Success: true, ID: rec.ID, Message: "Curriculum saved"}, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	rec.Weeks = cloneWeeks(rec.Weeks)
	return rec, nil
}

// cloneWeeks deep-copies weeks through their JSON form.
func cloneWeeks(weeks []Week) []Week {
	out := []Week{}
	data, err := json.Marshal(weeks)
	if err == nil && json.Unmarshal(data, &out) == nil {
		return out
	}
	return append(out[:0], weeks...)
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
