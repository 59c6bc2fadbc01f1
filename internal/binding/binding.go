// Package binding keeps dashboard form state in step with the curriculum
// tree. The tree is the source of truth: after every mutation the full
// snapshot is pushed to the form under a single field key.
package binding

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// FieldCurriculum is the form field holding the whole []Week array.
const FieldCurriculum = "curriculum"

// FieldRegistry is the form's field registry.
type FieldRegistry interface {
	SetField(key string, value any)
}

// FieldSource reads a field back. Used once, to hydrate a tree from form
// state in edit mode.
type FieldSource interface {
	Field(key string) (any, bool)
}

// Binder pushes snapshots to one or more registries.
type Binder struct {
	regs []FieldRegistry
}

// NewBinder creates a binder over regs.
func NewBinder(regs ...FieldRegistry) *Binder {
	return &Binder{regs: regs}
}

// Attach adds a registry.
func (b *Binder) Attach(reg FieldRegistry) {
	b.regs = append(b.regs, reg)
}

// Push writes weeks to every registry. Callers pass a snapshot; registries
// may keep it.
func (b *Binder) Push(weeks []curriculum.Week) {
	for _, r := range b.regs {
		r.SetField(FieldCurriculum, weeks)
	}
}

// Hydrate reads the curriculum field from src. The value may already be a
// []Week or a raw JSON document.
func Hydrate(src FieldSource) ([]curriculum.Week, error) {
	v, ok := src.Field(FieldCurriculum)
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case []curriculum.Week:
		return val, nil
	case json.RawMessage:
		return curriculum.DecodeDocument(val)
	case []byte:
		return curriculum.DecodeDocument(val)
	case string:
		return curriculum.DecodeDocument([]byte(val))
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("encoding %s field: %w", FieldCurriculum, err)
		}
		return curriculum.DecodeDocument(data)
	}
}

// MemoryForm is an in-memory field registry.
type MemoryForm struct {
	mu     sync.Mutex
	fields map[string]any
	writes int
}

// NewMemoryForm creates an empty form.
func NewMemoryForm() *MemoryForm {
	return &MemoryForm{fields: make(map[string]any)}
}

func (f *MemoryForm) SetField(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[key] = value
	f.writes++
}

func (f *MemoryForm) Field(key string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.fields[key]
	return v, ok
}

// Writes returns how many times SetField was called.
func (f *MemoryForm) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}
