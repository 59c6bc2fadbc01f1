package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const templateSuffix = ".curriculum.yaml"

// Template is a reusable curriculum that new sessions can be seeded from.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Weeks       []Week `yaml:"weeks" json:"weeks"`
}

// Loader loads and caches curriculum templates from the filesystem.
type Loader struct {
	rootDir   string
	templates map[string]Template
	mu        sync.RWMutex
}

// NewLoader creates a template loader and loads every *.curriculum.yaml
// file under rootDir. A missing directory yields an empty loader.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir:   rootDir,
		templates: make(map[string]Template),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum templates: %w", err)
	}

	slog.Info("curriculum templates loaded", "templates", len(l.templates), "dir", rootDir)
	return l, nil
}

// Get returns a template by ID.
func (l *Loader) Get(id string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	return t, ok
}

// IDs returns the loaded template IDs in sorted order.
func (l *Loader) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.templates))
	for id := range l.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loader) loadAll() error {
	if _, err := os.Stat(l.rootDir); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, templateSuffix) {
			return nil
		}
		return l.loadTemplate(path)
	})
}

func (l *Loader) loadTemplate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		slog.Warn("skipping invalid template YAML", "path", path, "error", err)
		return nil
	}

	if tmpl.ID == "" {
		tmpl.ID = strings.TrimSuffix(filepath.Base(path), templateSuffix)
	}

	l.mu.Lock()
	l.templates[tmpl.ID] = tmpl
	l.mu.Unlock()

	return nil
}

// MarshalYAML encodes a curriculum as a template document.
func MarshalYAML(id, name string, weeks []Week) ([]byte, error) {
	out, err := yaml.Marshal(Template{ID: id, Name: name, Weeks: weeks})
	if err != nil {
		return nil, fmt.Errorf("encoding curriculum yaml: %w", err)
	}
	return out, nil
}
