package curriculum

import "fmt"

// Positional ids follow prefix_<week>_<section>_<lesson>_<resource>, cut at
// the node's own depth. Section 0 marks direct lessons and lesson 0 marks
// section-level resources, so every positional id is unique while it
// matches the node's position.

func weekID(w int) string {
	return fmt.Sprintf("week_%d", w)
}

func sectionID(w, s int) string {
	return fmt.Sprintf("section_%d_%d", w, s)
}

func lessonID(w, s, l int) string {
	return fmt.Sprintf("lesson_%d_%d_%d", w, s, l)
}

func resourceID(w, s, l, r int) string {
	return fmt.Sprintf("resource_%d_%d_%d_%d", w, s, l, r)
}

// regenerateWeeksFrom renumbers weeks at index >= from and rewrites the ids
// of each of them and all their descendants.
func (t *Tree) regenerateWeeksFrom(from int) {
	t.releaseIDs(func(ref nodeRef) bool {
		return indexOf(t.weeks, t.weekOf(ref)) >= from
	})
	for wi := from; wi < len(t.weeks); wi++ {
		t.assignWeek(t.weeks[wi], wi+1)
	}
}

// regenerateSections rewrites ids for every section of a week and their
// descendants.
func (t *Tree) regenerateSections(wk nodeKey) {
	wn := t.weekNodes[wk]
	t.releaseIDs(func(ref nodeRef) bool {
		return ref.kind != kindWeek && t.weekOf(ref) == wk && t.sectionOf(ref) != 0
	})
	w := t.weekNumber(wk)
	for si, sk := range wn.sections {
		t.assignSection(sk, w, si+1)
	}
}

// regenerateLessons rewrites ids for a lesson container (a section, or a
// week's direct lessons) and the lessons' resources.
func (t *Tree) regenerateLessons(parent nodeRef) {
	keys := t.lessonKeys(parent)
	t.releaseIDs(func(ref nodeRef) bool {
		lk, ok := t.lessonOf(ref)
		return ok && t.lessons[lk].parent == parent
	})
	w, s := t.containerCoords(parent)
	for li, lk := range keys {
		t.assignLesson(lk, w, s, li+1)
	}
}

// regenerateResources rewrites ids for one resource container.
func (t *Tree) regenerateResources(owner nodeRef) {
	keys := t.resourceKeys(owner)
	for _, rk := range keys {
		t.release(nodeRef{kindResource, rk})
	}
	w, s, l := t.ownerCoords(owner)
	for ri, rk := range keys {
		t.setID(nodeRef{kindResource, rk}, resourceID(w, s, l, ri+1))
	}
}

func (t *Tree) assignWeek(wk nodeKey, w int) {
	wn := t.weekNodes[wk]
	t.setID(nodeRef{kindWeek, wk}, weekID(w))
	for si, sk := range wn.sections {
		t.assignSection(sk, w, si+1)
	}
	for li, lk := range wn.lessons {
		t.assignLesson(lk, w, 0, li+1)
	}
}

func (t *Tree) assignSection(sk nodeKey, w, s int) {
	sn := t.sections[sk]
	t.setID(nodeRef{kindSection, sk}, sectionID(w, s))
	for li, lk := range sn.lessons {
		t.assignLesson(lk, w, s, li+1)
	}
	for ri, rk := range sn.resources {
		t.setID(nodeRef{kindResource, rk}, resourceID(w, s, 0, ri+1))
	}
}

func (t *Tree) assignLesson(lk nodeKey, w, s, l int) {
	ln := t.lessons[lk]
	t.setID(nodeRef{kindLesson, lk}, lessonID(w, s, l))
	for ri, rk := range ln.resources {
		t.setID(nodeRef{kindResource, rk}, resourceID(w, s, l, ri+1))
	}
}

// releaseIDs drops index entries for every node matching pred before a batch
// of reassignments, so a new id never collides with one about to be replaced.
func (t *Tree) releaseIDs(pred func(nodeRef) bool) {
	for id, ref := range t.index {
		if pred(ref) {
			delete(t.index, id)
		}
	}
}

func (t *Tree) release(ref nodeRef) {
	id := t.idOf(ref)
	if cur, ok := t.index[id]; ok && cur == ref {
		delete(t.index, id)
	}
}

// weekOf returns the week that contains ref.
func (t *Tree) weekOf(ref nodeRef) nodeKey {
	switch ref.kind {
	case kindWeek:
		return ref.key
	case kindSection:
		return t.sections[ref.key].week
	case kindLesson:
		return t.weekOf(t.lessons[ref.key].parent)
	case kindResource:
		return t.weekOf(t.resources[ref.key].parent)
	}
	return 0
}

// sectionOf returns the section key containing ref, or 0 when ref is outside
// any section.
func (t *Tree) sectionOf(ref nodeRef) nodeKey {
	switch ref.kind {
	case kindSection:
		return ref.key
	case kindLesson:
		return t.sectionOf(t.lessons[ref.key].parent)
	case kindResource:
		return t.sectionOf(t.resources[ref.key].parent)
	}
	return 0
}

// lessonOf returns the lesson key for a lesson or a lesson-level resource.
func (t *Tree) lessonOf(ref nodeRef) (nodeKey, bool) {
	switch ref.kind {
	case kindLesson:
		return ref.key, true
	case kindResource:
		p := t.resources[ref.key].parent
		if p.kind == kindLesson {
			return p.key, true
		}
	}
	return 0, false
}

func (t *Tree) lessonKeys(parent nodeRef) []nodeKey {
	switch parent.kind {
	case kindWeek:
		return t.weekNodes[parent.key].lessons
	case kindSection:
		return t.sections[parent.key].lessons
	}
	return nil
}

func (t *Tree) resourceKeys(owner nodeRef) []nodeKey {
	switch owner.kind {
	case kindLesson:
		return t.lessons[owner.key].resources
	case kindSection:
		return t.sections[owner.key].resources
	}
	return nil
}

// containerCoords returns the 1-based week and section numbers of a lesson
// container; section is 0 for a week's direct lessons.
func (t *Tree) containerCoords(parent nodeRef) (int, int) {
	switch parent.kind {
	case kindWeek:
		return t.weekNumber(parent.key), 0
	case kindSection:
		wk := t.sections[parent.key].week
		return t.weekNumber(wk), indexOf(t.weekNodes[wk].sections, parent.key) + 1
	}
	return 0, 0
}

// ownerCoords returns week, section and lesson numbers of a resource owner.
func (t *Tree) ownerCoords(owner nodeRef) (int, int, int) {
	switch owner.kind {
	case kindSection:
		w, s := t.containerCoords(owner)
		return w, s, 0
	case kindLesson:
		parent := t.lessons[owner.key].parent
		w, s := t.containerCoords(parent)
		return w, s, t.position(parent, owner.key) + 1
	}
	return 0, 0, 0
}
