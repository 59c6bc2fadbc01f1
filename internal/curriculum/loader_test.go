package curriculum_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

func TestLoader_LoadTemplates(t *testing.T) {
	dir := setupTestTemplates(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	want := []string{"go-basics", "intro-sql"}
	if got := loader.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestLoader_Get(t *testing.T) {
	dir := setupTestTemplates(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	tmpl, found := loader.Get("go-basics")
	if !found {
		t.Fatal("Get(go-basics) not found")
	}
	if tmpl.Name != "Go Basics" {
		t.Errorf("Name = %q, want Go Basics", tmpl.Name)
	}
	if len(tmpl.Weeks) != 2 {
		t.Fatalf("len(Weeks) = %d, want 2", len(tmpl.Weeks))
	}
	lesson := tmpl.Weeks[0].Sections[0].Lessons[0]
	if lesson.Type != curriculum.LessonVideo || lesson.Video == nil || lesson.Video.URL != "https://cdn.example/install.mp4" {
		t.Errorf("lesson = %+v, video = %+v", lesson, lesson.Video)
	}
	if got := tmpl.Weeks[1].Lessons[0].Quiz; got == nil || got.QuizID != "quiz-types" {
		t.Errorf("direct quiz lesson payload = %+v", got)
	}
}

func TestLoader_IDFromFilename(t *testing.T) {
	dir := setupTestTemplates(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if _, found := loader.Get("intro-sql"); !found {
		t.Error("template without an id should be keyed by its file name")
	}
}

func TestLoader_Get_NotFound(t *testing.T) {
	dir := setupTestTemplates(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if _, found := loader.Get("NONEXISTENT"); found {
		t.Error("Get(NONEXISTENT) should not be found")
	}
}

func TestLoader_SkipsOtherYAML(t *testing.T) {
	dir := setupTestTemplates(t)

	os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte("name: not a template\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "broken.curriculum.yaml"), []byte("weeks: [\n"), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if got := len(loader.IDs()); got != 2 {
		t.Errorf("IDs() = %d templates, want 2 (other and invalid YAML should be skipped)", got)
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	loader, err := curriculum.NewLoader(t.TempDir())
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if got := len(loader.IDs()); got != 0 {
		t.Errorf("IDs() = %d, want 0 for empty dir", got)
	}
}

func TestLoader_MissingDir(t *testing.T) {
	loader, err := curriculum.NewLoader(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}
	if got := len(loader.IDs()); got != 0 {
		t.Errorf("IDs() = %d, want 0 for missing dir", got)
	}
}

func TestMarshalYAML_LoadsBack(t *testing.T) {
	weeks := validCurriculum(t)

	data, err := curriculum.MarshalYAML("exported", "Exported", weeks)
	if err != nil {
		t.Fatalf("MarshalYAML() error = %v", err)
	}

	var tmpl curriculum.Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if tmpl.ID != "exported" || len(tmpl.Weeks) != 1 {
		t.Fatalf("template = %+v", tmpl)
	}
	l := tmpl.Weeks[0].Sections[0].Lessons[0]
	if l.Type != curriculum.LessonQuiz || l.Quiz == nil || l.Quiz.QuizID != "quiz-1" {
		t.Errorf("lesson = %+v", l)
	}
	if !tmpl.Weeks[0].LiveClasses[0].ScheduledDate.Equal(weeks[0].LiveClasses[0].ScheduledDate) {
		t.Error("live class date did not survive the YAML form")
	}
}

func setupTestTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	nested := filepath.Join(dir, "programming")
	os.MkdirAll(nested, 0o755)

	os.WriteFile(filepath.Join(nested, "go.curriculum.yaml"), []byte(`
id: go-basics
name: "Go Basics"
description: "Four weeks from install to interfaces"
weeks:
  - title: "Getting started"
    topics: ["Toolchain", "Modules"]
    sections:
      - title: "Setup"
        lessons:
          - title: "Install Go"
            lesson_type: video
            video_url: "https://cdn.example/install.mp4"
            duration: "06:10"
        resources:
          - title: "Cheat sheet"
            type: pdf
            url: "https://cdn.example/cheat.pdf"
  - title: "Types"
    lessons:
      - title: "Types quiz"
        lesson_type: quiz
        quiz_id: quiz-types
`), 0o644)

	os.WriteFile(filepath.Join(dir, "intro-sql.curriculum.yaml"), []byte(`
name: "Intro to SQL"
weeks:
  - title: "Queries"
`), 0o644)

	return dir
}
