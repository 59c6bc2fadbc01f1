package curriculum

import (
	"fmt"
	"slices"
)

// Every mutation validates its coordinates and payload before touching the
// arena, so a returned error always leaves the tree unchanged.

// AddWeek appends an empty week and returns its 0-based index.
func (t *Tree) AddWeek() int {
	wk := t.alloc()
	t.weekNodes[wk] = &weekNode{topics: []string{}}
	t.weeks = append(t.weeks, wk)
	t.setID(nodeRef{kindWeek, wk}, t.newID("week"))
	return len(t.weeks) - 1
}

// RemoveWeek removes the week at index, renumbers the following weeks and
// regenerates their ids. Removing the last remaining week returns ErrLastWeek.
func (t *Tree) RemoveWeek(weekIndex int) error {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return err
	}
	if len(t.weeks) == 1 {
		return ErrLastWeek
	}
	t.deleteWeek(wk)
	t.weeks = slices.Delete(t.weeks, weekIndex, weekIndex+1)
	t.regenerateWeeksFrom(weekIndex)
	return nil
}

// AddSection appends an empty section to a week and returns its index.
func (t *Tree) AddSection(weekIndex int) (int, error) {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return 0, err
	}
	sk := t.alloc()
	t.sections[sk] = &sectionNode{week: wk}
	wn := t.weekNodes[wk]
	wn.sections = append(wn.sections, sk)
	t.setID(nodeRef{kindSection, sk}, t.newID("section"))
	return len(wn.sections) - 1, nil
}

// RemoveSection removes a section with its lessons and resources, then
// regenerates the ids of the remaining sections and their descendants.
func (t *Tree) RemoveSection(weekIndex, sectionIndex int) error {
	sk, err := t.sectionKey(weekIndex, sectionIndex)
	if err != nil {
		return err
	}
	wk := t.weeks[weekIndex]
	t.deleteSection(sk)
	wn := t.weekNodes[wk]
	wn.sections = slices.Delete(wn.sections, sectionIndex, sectionIndex+1)
	t.regenerateSections(wk)
	return nil
}

// AddLesson appends a lesson of the given variant to a section, or to the
// week's direct lessons when sectionIndex is NoSection.
func (t *Tree) AddLesson(weekIndex, sectionIndex int, lessonType LessonType) (int, error) {
	parent, err := t.lessonContainer(weekIndex, sectionIndex)
	if err != nil {
		return 0, err
	}
	l, err := NewLesson(lessonType)
	if err != nil {
		return 0, err
	}
	l.Resources = nil
	lk := t.alloc()
	t.lessons[lk] = &lessonNode{lesson: l, parent: parent}
	t.appendLessonKey(parent, lk)
	t.setID(nodeRef{kindLesson, lk}, t.newID("lesson"))
	return len(t.lessonKeys(parent)) - 1, nil
}

// RemoveLesson removes a lesson and regenerates the ids of its remaining
// siblings.
func (t *Tree) RemoveLesson(ref LessonRef) error {
	lk, parent, err := t.lessonKey(ref)
	if err != nil {
		return err
	}
	t.deleteLesson(lk)
	t.setLessonKeys(parent, slices.Delete(t.lessonKeys(parent), ref.Lesson, ref.Lesson+1))
	t.regenerateLessons(parent)
	return nil
}

// AddResource appends an empty resource to a lesson or section.
func (t *Tree) AddResource(owner OwnerRef) (int, error) {
	o, err := t.owner(owner)
	if err != nil {
		return 0, err
	}
	rk := t.alloc()
	t.resources[rk] = &resourceNode{
		resource: Resource{Type: DefaultResourceType},
		parent:   o,
	}
	t.appendResourceKey(o, rk)
	t.setID(nodeRef{kindResource, rk}, t.newID("resource"))
	return len(t.resourceKeys(o)) - 1, nil
}

// RemoveResource removes a resource and regenerates its siblings' ids.
func (t *Tree) RemoveResource(owner OwnerRef, resourceIndex int) error {
	o, err := t.owner(owner)
	if err != nil {
		return err
	}
	keys := t.resourceKeys(o)
	if resourceIndex < 0 || resourceIndex >= len(keys) {
		return fmt.Errorf("resource %d: %w", resourceIndex, ErrOutOfRange)
	}
	t.release(nodeRef{kindResource, keys[resourceIndex]})
	delete(t.resources, keys[resourceIndex])
	t.setResourceKeys(o, slices.Delete(keys, resourceIndex, resourceIndex+1))
	t.regenerateResources(o)
	return nil
}

// UpdateResource assigns one resource field.
func (t *Tree) UpdateResource(owner OwnerRef, resourceIndex int, field string, value any) error {
	o, err := t.owner(owner)
	if err != nil {
		return err
	}
	keys := t.resourceKeys(o)
	if resourceIndex < 0 || resourceIndex >= len(keys) {
		return fmt.Errorf("resource %d: %w", resourceIndex, ErrOutOfRange)
	}
	rn := t.resources[keys[resourceIndex]]
	r := rn.resource
	if err := setResourceField(&r, field, value); err != nil {
		return err
	}
	rn.resource = r
	return nil
}

// UpdateWeek assigns one week field.
func (t *Tree) UpdateWeek(weekIndex int, field string, value any) error {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return err
	}
	s, err := asString(field, value)
	if err != nil {
		return err
	}
	wn := t.weekNodes[wk]
	switch field {
	case "weekTitle", "title":
		wn.title = s
	case "weekDescription", "description":
		wn.description = s
	default:
		return fmt.Errorf("%w: week.%s", ErrUnknownField, field)
	}
	return nil
}

// UpdateSection assigns one section field.
func (t *Tree) UpdateSection(weekIndex, sectionIndex int, field string, value any) error {
	sk, err := t.sectionKey(weekIndex, sectionIndex)
	if err != nil {
		return err
	}
	s, err := asString(field, value)
	if err != nil {
		return err
	}
	sn := t.sections[sk]
	switch field {
	case "title":
		sn.title = s
	case "description":
		sn.description = s
	default:
		return fmt.Errorf("%w: section.%s", ErrUnknownField, field)
	}
	return nil
}

// UpdateLesson assigns one lesson field. Variant fields are only accepted on
// lessons of the matching type.
func (t *Tree) UpdateLesson(ref LessonRef, field string, value any) error {
	lk, _, err := t.lessonKey(ref)
	if err != nil {
		return err
	}
	ln := t.lessons[lk]
	l := ln.lesson
	l.Video, l.Quiz, l.Assessment = cloneVideo(l.Video), cloneQuiz(l.Quiz), cloneAssessment(l.Assessment)
	if err := setLessonField(&l, field, value); err != nil {
		return err
	}
	ln.lesson = l
	return nil
}

// MediaUpdate carries the result of a finished upload.
type MediaUpdate struct {
	URL          string
	Duration     string
	ThumbnailURL string
	FileSize     int64
}

// SetLessonMedia writes upload results onto the video lesson with the given id.
func (t *Tree) SetLessonMedia(lessonID string, m MediaUpdate) error {
	ref, ok := t.index[lessonID]
	if !ok || ref.kind != kindLesson {
		return fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}
	ln := t.lessons[ref.key]
	if ln.lesson.Type != LessonVideo {
		return fmt.Errorf("lesson %s: %w", lessonID, ErrFieldNotApplicable)
	}
	v := cloneVideo(ln.lesson.Video)
	v.URL = m.URL
	if m.Duration != "" {
		v.Duration = m.Duration
	}
	if m.ThumbnailURL != "" {
		v.ThumbnailURL = m.ThumbnailURL
	}
	if m.FileSize > 0 {
		v.FileSize = m.FileSize
	}
	ln.lesson.Video = v
	return nil
}

// ClearLessonMedia removes the video of a lesson.
func (t *Tree) ClearLessonMedia(lessonID string) error {
	ref, ok := t.index[lessonID]
	if !ok || ref.kind != kindLesson {
		return fmt.Errorf("lesson %s: %w", lessonID, ErrNotFound)
	}
	ln := t.lessons[ref.key]
	if ln.lesson.Type != LessonVideo {
		return fmt.Errorf("lesson %s: %w", lessonID, ErrFieldNotApplicable)
	}
	ln.lesson.Video = &VideoContent{}
	return nil
}

// SetResourceURL writes an uploaded file URL onto the resource with the given id.
func (t *Tree) SetResourceURL(resourceID, url string) error {
	ref, ok := t.index[resourceID]
	if !ok || ref.kind != kindResource {
		return fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	t.resources[ref.key].resource.URL = url
	return nil
}

// AddTopic appends text to a week's topics unless it is empty or already
// present. It reports whether the topic was added.
func (t *Tree) AddTopic(weekIndex int, text string) (bool, error) {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return false, err
	}
	topic := normalizeTopic(text)
	if topic == "" {
		return false, nil
	}
	wn := t.weekNodes[wk]
	if slices.Contains(wn.topics, topic) {
		return false, nil
	}
	wn.topics = append(wn.topics, topic)
	return true, nil
}

// RemoveTopic removes the topic at index.
func (t *Tree) RemoveTopic(weekIndex, topicIndex int) error {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return err
	}
	wn := t.weekNodes[wk]
	if topicIndex < 0 || topicIndex >= len(wn.topics) {
		return fmt.Errorf("topic %d: %w", topicIndex, ErrOutOfRange)
	}
	wn.topics = slices.Delete(wn.topics, topicIndex, topicIndex+1)
	return nil
}

// AddLiveClass appends an empty live class to a week.
func (t *Tree) AddLiveClass(weekIndex int) (int, error) {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return 0, err
	}
	wn := t.weekNodes[wk]
	wn.liveClasses = append(wn.liveClasses, LiveClass{Duration: 60, Materials: []Material{}})
	return len(wn.liveClasses) - 1, nil
}

// RemoveLiveClass removes the live class at index.
func (t *Tree) RemoveLiveClass(weekIndex, classIndex int) error {
	wn, err := t.liveClassWeek(weekIndex, classIndex)
	if err != nil {
		return err
	}
	wn.liveClasses = slices.Delete(wn.liveClasses, classIndex, classIndex+1)
	return nil
}

// UpdateLiveClass assigns one live class field.
func (t *Tree) UpdateLiveClass(weekIndex, classIndex int, field string, value any) error {
	wn, err := t.liveClassWeek(weekIndex, classIndex)
	if err != nil {
		return err
	}
	lc := wn.liveClasses[classIndex]
	if err := setLiveClassField(&lc, field, value); err != nil {
		return err
	}
	wn.liveClasses[classIndex] = lc
	return nil
}

// AddMaterial appends a material to a live class.
func (t *Tree) AddMaterial(weekIndex, classIndex int, m Material) error {
	wn, err := t.liveClassWeek(weekIndex, classIndex)
	if err != nil {
		return err
	}
	lc := &wn.liveClasses[classIndex]
	lc.Materials = append(lc.Materials, m)
	return nil
}

// RemoveMaterial removes a material from a live class.
func (t *Tree) RemoveMaterial(weekIndex, classIndex, materialIndex int) error {
	wn, err := t.liveClassWeek(weekIndex, classIndex)
	if err != nil {
		return err
	}
	lc := &wn.liveClasses[classIndex]
	if materialIndex < 0 || materialIndex >= len(lc.Materials) {
		return fmt.Errorf("material %d: %w", materialIndex, ErrOutOfRange)
	}
	lc.Materials = slices.Delete(lc.Materials, materialIndex, materialIndex+1)
	return nil
}

func (t *Tree) liveClassWeek(weekIndex, classIndex int) (*weekNode, error) {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return nil, err
	}
	wn := t.weekNodes[wk]
	if classIndex < 0 || classIndex >= len(wn.liveClasses) {
		return nil, fmt.Errorf("live class %d: %w", classIndex, ErrOutOfRange)
	}
	return wn, nil
}

func (t *Tree) weekKey(weekIndex int) (nodeKey, error) {
	if weekIndex < 0 || weekIndex >= len(t.weeks) {
		return 0, fmt.Errorf("week %d: %w", weekIndex, ErrOutOfRange)
	}
	return t.weeks[weekIndex], nil
}

func (t *Tree) sectionKey(weekIndex, sectionIndex int) (nodeKey, error) {
	wk, err := t.weekKey(weekIndex)
	if err != nil {
		return 0, err
	}
	sections := t.weekNodes[wk].sections
	if sectionIndex < 0 || sectionIndex >= len(sections) {
		return 0, fmt.Errorf("section %d: %w", sectionIndex, ErrOutOfRange)
	}
	return sections[sectionIndex], nil
}

func (t *Tree) lessonContainer(weekIndex, sectionIndex int) (nodeRef, error) {
	if sectionIndex == NoSection {
		wk, err := t.weekKey(weekIndex)
		if err != nil {
			return nodeRef{}, err
		}
		return nodeRef{kindWeek, wk}, nil
	}
	sk, err := t.sectionKey(weekIndex, sectionIndex)
	if err != nil {
		return nodeRef{}, err
	}
	return nodeRef{kindSection, sk}, nil
}

func (t *Tree) lessonKey(ref LessonRef) (nodeKey, nodeRef, error) {
	parent, err := t.lessonContainer(ref.Week, ref.Section)
	if err != nil {
		return 0, nodeRef{}, err
	}
	keys := t.lessonKeys(parent)
	if ref.Lesson < 0 || ref.Lesson >= len(keys) {
		return 0, nodeRef{}, fmt.Errorf("lesson %d: %w", ref.Lesson, ErrOutOfRange)
	}
	return keys[ref.Lesson], parent, nil
}

func (t *Tree) owner(o OwnerRef) (nodeRef, error) {
	if o.Lesson == NoLesson {
		if o.Section == NoSection {
			return nodeRef{}, fmt.Errorf("resource owner needs a section or a lesson: %w", ErrOutOfRange)
		}
		sk, err := t.sectionKey(o.Week, o.Section)
		if err != nil {
			return nodeRef{}, err
		}
		return nodeRef{kindSection, sk}, nil
	}
	lk, _, err := t.lessonKey(LessonRef(o))
	if err != nil {
		return nodeRef{}, err
	}
	return nodeRef{kindLesson, lk}, nil
}

func (t *Tree) setLessonKeys(parent nodeRef, keys []nodeKey) {
	switch parent.kind {
	case kindWeek:
		t.weekNodes[parent.key].lessons = keys
	case kindSection:
		t.sections[parent.key].lessons = keys
	}
}

func (t *Tree) setResourceKeys(owner nodeRef, keys []nodeKey) {
	switch owner.kind {
	case kindLesson:
		t.lessons[owner.key].resources = keys
	case kindSection:
		t.sections[owner.key].resources = keys
	}
}

// deleteWeek drops a week subtree from the arena. The caller removes the
// week key from t.weeks.
func (t *Tree) deleteWeek(wk nodeKey) {
	wn := t.weekNodes[wk]
	for _, sk := range wn.sections {
		t.deleteSection(sk)
	}
	for _, lk := range wn.lessons {
		t.deleteLesson(lk)
	}
	t.release(nodeRef{kindWeek, wk})
	delete(t.weekNodes, wk)
}

func (t *Tree) deleteSection(sk nodeKey) {
	sn := t.sections[sk]
	for _, lk := range sn.lessons {
		t.deleteLesson(lk)
	}
	for _, rk := range sn.resources {
		t.release(nodeRef{kindResource, rk})
		delete(t.resources, rk)
	}
	t.release(nodeRef{kindSection, sk})
	delete(t.sections, sk)
}

func (t *Tree) deleteLesson(lk nodeKey) {
	ln := t.lessons[lk]
	for _, rk := range ln.resources {
		t.release(nodeRef{kindResource, rk})
		delete(t.resources, rk)
	}
	t.release(nodeRef{kindLesson, lk})
	delete(t.lessons, lk)
}
