package curriculum_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

func TestHandle_FollowsRenumberedNode(t *testing.T) {
	tree := curriculum.New()
	tree.AddSection(0)
	for i := 0; i < 3; i++ {
		tree.AddLesson(0, 0, curriculum.LessonVideo)
	}
	weeks := tree.Snapshot()
	third := weeks[0].Sections[0].Lessons[2]
	first := weeks[0].Sections[0].Lessons[0]

	h, ok := tree.HandleOf(third.ID)
	if !ok {
		t.Fatal("HandleOf() not found")
	}
	removed, _ := tree.HandleOf(first.ID)

	if err := tree.RemoveLesson(curriculum.LessonRef{Week: 0, Section: 0, Lesson: 0}); err != nil {
		t.Fatalf("RemoveLesson() error = %v", err)
	}

	id, ok := tree.IDOf(h)
	if !ok || id != "lesson_1_1_2" {
		t.Errorf("IDOf() = %q, %v, want lesson_1_1_2", id, ok)
	}
	if _, ok := tree.IDOf(removed); ok {
		t.Error("IDOf() should report removed nodes as gone")
	}
	if _, ok := tree.HandleOf("missing"); ok {
		t.Error("HandleOf(missing) should not be found")
	}
}

func TestPositionalIDLookups(t *testing.T) {
	tree := curriculum.New()
	tree.AddSection(0)
	tree.AddLesson(0, 0, curriculum.LessonVideo)
	tree.AddLesson(0, curriculum.NoSection, curriculum.LessonQuiz)
	lessonOwner := curriculum.OwnerRef{Week: 0, Section: 0, Lesson: 0}
	sectionOwner := curriculum.OwnerRef{Week: 0, Section: 0, Lesson: curriculum.NoLesson}
	tree.AddResource(lessonOwner)
	tree.AddResource(sectionOwner)

	weeks := tree.Snapshot()

	id, err := tree.LessonID(curriculum.LessonRef{Week: 0, Section: 0, Lesson: 0})
	if err != nil || id != weeks[0].Sections[0].Lessons[0].ID {
		t.Errorf("LessonID(sectioned) = %q, %v", id, err)
	}
	id, err = tree.LessonID(curriculum.LessonRef{Week: 0, Section: curriculum.NoSection, Lesson: 0})
	if err != nil || id != weeks[0].Lessons[0].ID {
		t.Errorf("LessonID(direct) = %q, %v", id, err)
	}
	id, err = tree.ResourceID(lessonOwner, 0)
	if err != nil || id != weeks[0].Sections[0].Lessons[0].Resources[0].ID {
		t.Errorf("ResourceID(lesson) = %q, %v", id, err)
	}
	id, err = tree.ResourceID(sectionOwner, 0)
	if err != nil || id != weeks[0].Sections[0].Resources[0].ID {
		t.Errorf("ResourceID(section) = %q, %v", id, err)
	}

	if _, err := tree.LessonID(curriculum.LessonRef{Week: 0, Section: 0, Lesson: 5}); !errors.Is(err, curriculum.ErrOutOfRange) {
		t.Errorf("LessonID(out of range) error = %v", err)
	}
	if _, err := tree.ResourceID(lessonOwner, 3); !errors.Is(err, curriculum.ErrOutOfRange) {
		t.Errorf("ResourceID(out of range) error = %v", err)
	}
}
