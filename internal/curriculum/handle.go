package curriculum

import "fmt"

// Handle identifies a node independently of its id. Ids are rewritten when
// siblings are removed or moved; a handle keeps pointing at the same node
// until that node itself is removed.
type Handle struct {
	ref nodeRef
}

// HandleOf returns the handle of the node currently holding id.
func (t *Tree) HandleOf(id string) (Handle, bool) {
	ref, ok := t.index[id]
	if !ok {
		return Handle{}, false
	}
	return Handle{ref: ref}, true
}

// IDOf returns the current id of the node behind h, or false once the node
// has been removed.
func (t *Tree) IDOf(h Handle) (string, bool) {
	id := t.idOf(h.ref)
	if id == "" {
		return "", false
	}
	return id, true
}

// LessonID returns the id of the lesson at ref.
func (t *Tree) LessonID(ref LessonRef) (string, error) {
	lk, _, err := t.lessonKey(ref)
	if err != nil {
		return "", err
	}
	return t.idOf(nodeRef{kindLesson, lk}), nil
}

// ResourceID returns the id of the resource at index in the owner's list.
func (t *Tree) ResourceID(o OwnerRef, index int) (string, error) {
	owner, err := t.owner(o)
	if err != nil {
		return "", err
	}
	keys := t.resourceKeys(owner)
	if index < 0 || index >= len(keys) {
		return "", fmt.Errorf("resource %d: %w", index, ErrOutOfRange)
	}
	return t.idOf(nodeRef{kindResource, keys[index]}), nil
}
