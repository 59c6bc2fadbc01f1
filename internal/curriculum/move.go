package curriculum

import (
	"fmt"
	"slices"
)

// MoveSection relocates a section into the target week at index (appended
// when index is negative or past the end). Both weeks get their section ids
// regenerated; a same-week move still renormalizes.
func (t *Tree) MoveSection(sectionID, targetWeekID string, index int) error {
	src, ok := t.index[sectionID]
	if !ok || src.kind != kindSection {
		return fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	}
	dst, ok := t.index[targetWeekID]
	if !ok || dst.kind != kindWeek {
		return fmt.Errorf("week %s: %w", targetWeekID, ErrNotFound)
	}

	sn := t.sections[src.key]
	from := t.weekNodes[sn.week]
	from.sections = slices.DeleteFunc(from.sections, func(k nodeKey) bool { return k == src.key })

	to := t.weekNodes[dst.key]
	to.sections = insertAt(to.sections, src.key, index)
	sourceWeek := sn.week
	sn.week = dst.key

	t.regenerateSections(sourceWeek)
	if sourceWeek != dst.key {
		t.regenerateSections(dst.key)
	}
	return nil
}

// MoveLesson relocates a lesson into the target section at index. The source
// may be a section or a week's direct lessons.
func (t *Tree) MoveLesson(lessonID, targetSectionID string, index int) error {
	src, ok := t.index[lessonID]
	if !ok || src.kind != kindLesson {
		return fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}
	dst, ok := t.index[targetSectionID]
	if !ok || dst.kind != kindSection {
		return fmt.Errorf("section %s: %w", targetSectionID, ErrNotFound)
	}

	ln := t.lessons[src.key]
	source := ln.parent
	t.setLessonKeys(source, slices.DeleteFunc(t.lessonKeys(source), func(k nodeKey) bool { return k == src.key }))

	target := nodeRef{kindSection, dst.key}
	t.setLessonKeys(target, insertAt(t.lessonKeys(target), src.key, index))
	ln.parent = target

	t.regenerateLessons(source)
	if source != target {
		t.regenerateLessons(target)
	}
	return nil
}

// MoveWeek moves a week to index and renumbers every week.
func (t *Tree) MoveWeek(weekID string, index int) error {
	src, ok := t.index[weekID]
	if !ok || src.kind != kindWeek {
		return fmt.Errorf("week %s: %w", weekID, ErrNotFound)
	}
	t.weeks = slices.DeleteFunc(t.weeks, func(k nodeKey) bool { return k == src.key })
	t.weeks = insertAt(t.weeks, src.key, index)
	t.regenerateWeeksFrom(0)
	return nil
}

// ParentID returns the id of the container holding id: the week of a
// section, the section or week of a lesson, the lesson or section of a
// resource. Weeks have no parent.
func (t *Tree) ParentID(id string) (string, bool) {
	ref, ok := t.index[id]
	if !ok {
		return "", false
	}
	switch ref.kind {
	case kindSection:
		return t.idOf(nodeRef{kindWeek, t.sections[ref.key].week}), true
	case kindLesson:
		return t.idOf(t.lessons[ref.key].parent), true
	case kindResource:
		return t.idOf(t.resources[ref.key].parent), true
	}
	return "", false
}

func insertAt(keys []nodeKey, key nodeKey, index int) []nodeKey {
	if index < 0 || index > len(keys) {
		index = len(keys)
	}
	return slices.Insert(keys, index, key)
}
