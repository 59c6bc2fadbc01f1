package curriculum

import (
	"fmt"

	"github.com/google/uuid"
)

// NoSection addresses a week's direct lessons in a LessonRef or OwnerRef.
const NoSection = -1

// NoLesson addresses a section's own resources in an OwnerRef.
const NoLesson = -1

// LessonRef locates a lesson. Section is NoSection for direct lessons.
type LessonRef struct {
	Week    int `json:"week"`
	Section int `json:"section"`
	Lesson  int `json:"lesson"`
}

// OwnerRef locates the owner of a resource list: a lesson (sectioned or
// direct) or, with Lesson == NoLesson, a section.
type OwnerRef struct {
	Week    int `json:"week"`
	Section int `json:"section"`
	Lesson  int `json:"lesson"`
}

type nodeKey uint64

type nodeKind int

const (
	kindWeek nodeKind = iota
	kindSection
	kindLesson
	kindResource
)

func (k nodeKind) String() string {
	switch k {
	case kindWeek:
		return "week"
	case kindSection:
		return "section"
	case kindLesson:
		return "lesson"
	case kindResource:
		return "resource"
	default:
		return "unknown"
	}
}

type nodeRef struct {
	kind nodeKind
	key  nodeKey
}

type weekNode struct {
	id          string
	title       string
	description string
	topics      []string
	sections    []nodeKey
	lessons     []nodeKey
	liveClasses []LiveClass
}

type sectionNode struct {
	id          string
	week        nodeKey
	title       string
	description string
	lessons     []nodeKey
	resources   []nodeKey
}

// lessonNode keeps the lesson value with Resources and Order left unset;
// both are rebuilt from the arena on snapshot.
type lessonNode struct {
	lesson    Lesson
	parent    nodeRef // week (direct) or section
	resources []nodeKey
}

type resourceNode struct {
	resource Resource
	parent   nodeRef // lesson or section
}

// Tree is the in-memory curriculum. Each level lives in its own keyed
// collection; containers hold ordered child keys and children hold a parent
// back-reference used for lookup only. Sibling order is the position in the
// parent's key slice, so order and week numbers are contiguous by
// construction.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	next      nodeKey
	weeks     []nodeKey
	weekNodes map[nodeKey]*weekNode
	sections  map[nodeKey]*sectionNode
	lessons   map[nodeKey]*lessonNode
	resources map[nodeKey]*resourceNode
	index     map[string]nodeRef
	newID     func(prefix string) string
}

// Option configures a Tree.
type Option func(*Tree)

// WithIDGenerator replaces the uuid-based id generator for fresh nodes.
func WithIDGenerator(gen func(prefix string) string) Option {
	return func(t *Tree) {
		t.newID = gen
	}
}

func newTree(opts ...Option) *Tree {
	t := &Tree{
		weekNodes: make(map[nodeKey]*weekNode),
		sections:  make(map[nodeKey]*sectionNode),
		lessons:   make(map[nodeKey]*lessonNode),
		resources: make(map[nodeKey]*resourceNode),
		index:     make(map[string]nodeRef),
		newID: func(prefix string) string {
			return prefix + "_" + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// New returns a tree seeded with a single empty week (create mode).
func New(opts ...Option) *Tree {
	t := newTree(opts...)
	t.AddWeek()
	return t
}

// Load hydrates a tree from an existing curriculum (edit mode). Node ids are
// preserved; nodes without an id get a fresh one. Week numbers and sibling
// order are taken from array position. An empty input seeds one empty week.
func Load(weeks []Week, opts ...Option) (*Tree, error) {
	t := newTree(opts...)
	if len(weeks) == 0 {
		t.AddWeek()
		return t, nil
	}
	for wi, w := range weeks {
		if err := t.loadWeek(w); err != nil {
			return nil, fmt.Errorf("week %d: %w", wi+1, err)
		}
	}
	return t, nil
}

func (t *Tree) loadWeek(w Week) error {
	wk := t.alloc()
	wn := &weekNode{
		title:       w.Title,
		description: w.Description,
		topics:      append([]string{}, w.Topics...),
		liveClasses: cloneLiveClasses(w.LiveClasses),
	}
	t.weekNodes[wk] = wn
	t.weeks = append(t.weeks, wk)
	if err := t.claimID(nodeRef{kindWeek, wk}, w.ID, "week"); err != nil {
		return err
	}
	for si, s := range w.Sections {
		if err := t.loadSection(wk, s); err != nil {
			return fmt.Errorf("section %d: %w", si+1, err)
		}
	}
	for li, l := range w.Lessons {
		if err := t.loadLesson(nodeRef{kindWeek, wk}, l); err != nil {
			return fmt.Errorf("lesson %d: %w", li+1, err)
		}
	}
	return nil
}

func (t *Tree) loadSection(wk nodeKey, s Section) error {
	sk := t.alloc()
	t.sections[sk] = &sectionNode{week: wk, title: s.Title, description: s.Description}
	t.weekNodes[wk].sections = append(t.weekNodes[wk].sections, sk)
	if err := t.claimID(nodeRef{kindSection, sk}, s.ID, "section"); err != nil {
		return err
	}
	for li, l := range s.Lessons {
		if err := t.loadLesson(nodeRef{kindSection, sk}, l); err != nil {
			return fmt.Errorf("lesson %d: %w", li+1, err)
		}
	}
	for _, r := range s.Resources {
		if err := t.loadResource(nodeRef{kindSection, sk}, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) loadLesson(parent nodeRef, l Lesson) error {
	if err := l.ensurePayload(); err != nil {
		return err
	}
	lk := t.alloc()
	resources := l.Resources
	l.Resources, l.Order = nil, 0
	l.Video, l.Quiz, l.Assessment = cloneVideo(l.Video), cloneQuiz(l.Quiz), cloneAssessment(l.Assessment)
	t.lessons[lk] = &lessonNode{lesson: l, parent: parent}
	t.appendLessonKey(parent, lk)
	if err := t.claimID(nodeRef{kindLesson, lk}, l.ID, "lesson"); err != nil {
		return err
	}
	for _, r := range resources {
		if err := t.loadResource(nodeRef{kindLesson, lk}, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) loadResource(parent nodeRef, r Resource) error {
	rk := t.alloc()
	t.resources[rk] = &resourceNode{resource: r, parent: parent}
	t.appendResourceKey(parent, rk)
	return t.claimID(nodeRef{kindResource, rk}, r.ID, "resource")
}

// claimID registers id for ref, generating a fresh one when id is empty.
func (t *Tree) claimID(ref nodeRef, id, prefix string) error {
	if id == "" {
		id = t.newID(prefix)
	}
	if _, taken := t.index[id]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	t.setID(ref, id)
	return nil
}

func (t *Tree) alloc() nodeKey {
	t.next++
	return t.next
}

// setID assigns id to ref and keeps the id index in sync. A node outside
// the current batch that still holds id (a loaded id that looked positional)
// is moved to a fresh id first, so ids stay unique.
func (t *Tree) setID(ref nodeRef, id string) {
	old := t.idOf(ref)
	if old != "" {
		if cur, ok := t.index[old]; ok && cur == ref {
			delete(t.index, old)
		}
	}
	if holder, ok := t.index[id]; ok && holder != ref {
		fresh := t.newID(holder.kind.String())
		for _, taken := t.index[fresh]; taken; _, taken = t.index[fresh] {
			fresh = t.newID(holder.kind.String())
		}
		t.setID(holder, fresh)
	}
	switch ref.kind {
	case kindWeek:
		t.weekNodes[ref.key].id = id
	case kindSection:
		t.sections[ref.key].id = id
	case kindLesson:
		t.lessons[ref.key].lesson.ID = id
	case kindResource:
		t.resources[ref.key].resource.ID = id
	}
	t.index[id] = ref
}

func (t *Tree) idOf(ref nodeRef) string {
	switch ref.kind {
	case kindWeek:
		if n, ok := t.weekNodes[ref.key]; ok {
			return n.id
		}
	case kindSection:
		if n, ok := t.sections[ref.key]; ok {
			return n.id
		}
	case kindLesson:
		if n, ok := t.lessons[ref.key]; ok {
			return n.lesson.ID
		}
	case kindResource:
		if n, ok := t.resources[ref.key]; ok {
			return n.resource.ID
		}
	}
	return ""
}

func (t *Tree) appendLessonKey(parent nodeRef, lk nodeKey) {
	switch parent.kind {
	case kindWeek:
		t.weekNodes[parent.key].lessons = append(t.weekNodes[parent.key].lessons, lk)
	case kindSection:
		t.sections[parent.key].lessons = append(t.sections[parent.key].lessons, lk)
	}
}

func (t *Tree) appendResourceKey(parent nodeRef, rk nodeKey) {
	switch parent.kind {
	case kindLesson:
		t.lessons[parent.key].resources = append(t.lessons[parent.key].resources, rk)
	case kindSection:
		t.sections[parent.key].resources = append(t.sections[parent.key].resources, rk)
	}
}

// WeekCount returns the number of weeks.
func (t *Tree) WeekCount() int {
	return len(t.weeks)
}

// HasLessons reports whether any lesson exists, sectioned or direct. The
// curriculum summary is shown only while this is true.
func (t *Tree) HasLessons() bool {
	return len(t.lessons) > 0
}

// Summary holds derived counts for the curriculum overview.
type Summary struct {
	Weeks       int  `json:"weeks"`
	Sections    int  `json:"sections"`
	Lessons     int  `json:"lessons"`
	Resources   int  `json:"resources"`
	LiveClasses int  `json:"liveClasses"`
	ShowSummary bool `json:"showSummary"`
}

// Summary computes the derived overview counts.
func (t *Tree) Summary() Summary {
	s := Summary{
		Weeks:       len(t.weeks),
		Sections:    len(t.sections),
		Lessons:     len(t.lessons),
		Resources:   len(t.resources),
		ShowSummary: t.HasLessons(),
	}
	for _, wn := range t.weekNodes {
		s.LiveClasses += len(wn.liveClasses)
	}
	return s
}

// Snapshot materializes the tree as a deep copy of nested weeks. Week
// numbers and order fields are derived from position.
func (t *Tree) Snapshot() []Week {
	weeks := make([]Week, 0, len(t.weeks))
	for wi, wk := range t.weeks {
		wn := t.weekNodes[wk]
		w := Week{
			ID:          wn.id,
			WeekNumber:  wi + 1,
			Title:       wn.title,
			Description: wn.description,
			Topics:      append([]string{}, wn.topics...),
			Sections:    make([]Section, 0, len(wn.sections)),
			Lessons:     t.snapshotLessons(wn.lessons),
			LiveClasses: cloneLiveClasses(wn.liveClasses),
		}
		for si, sk := range wn.sections {
			sn := t.sections[sk]
			w.Sections = append(w.Sections, Section{
				ID:          sn.id,
				Title:       sn.title,
				Description: sn.description,
				Order:       si,
				Lessons:     t.snapshotLessons(sn.lessons),
				Resources:   t.snapshotResources(sn.resources),
			})
		}
		weeks = append(weeks, w)
	}
	return weeks
}

func (t *Tree) snapshotLessons(keys []nodeKey) []Lesson {
	out := make([]Lesson, 0, len(keys))
	for i, lk := range keys {
		ln := t.lessons[lk]
		l := ln.lesson
		l.Order = i
		l.Video, l.Quiz, l.Assessment = cloneVideo(l.Video), cloneQuiz(l.Quiz), cloneAssessment(l.Assessment)
		l.Resources = t.snapshotResources(ln.resources)
		out = append(out, l)
	}
	return out
}

func (t *Tree) snapshotResources(keys []nodeKey) []Resource {
	out := make([]Resource, 0, len(keys))
	for _, rk := range keys {
		out = append(out, t.resources[rk].resource)
	}
	return out
}

// Clone returns an independent copy of the tree that shares no mutable state.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		next:      t.next,
		weeks:     append([]nodeKey{}, t.weeks...),
		weekNodes: make(map[nodeKey]*weekNode, len(t.weekNodes)),
		sections:  make(map[nodeKey]*sectionNode, len(t.sections)),
		lessons:   make(map[nodeKey]*lessonNode, len(t.lessons)),
		resources: make(map[nodeKey]*resourceNode, len(t.resources)),
		index:     make(map[string]nodeRef, len(t.index)),
		newID:     t.newID,
	}
	for k, n := range t.weekNodes {
		cp := *n
		cp.topics = append([]string{}, n.topics...)
		cp.sections = append([]nodeKey{}, n.sections...)
		cp.lessons = append([]nodeKey{}, n.lessons...)
		cp.liveClasses = cloneLiveClasses(n.liveClasses)
		c.weekNodes[k] = &cp
	}
	for k, n := range t.sections {
		cp := *n
		cp.lessons = append([]nodeKey{}, n.lessons...)
		cp.resources = append([]nodeKey{}, n.resources...)
		c.sections[k] = &cp
	}
	for k, n := range t.lessons {
		cp := *n
		cp.lesson.Video = cloneVideo(n.lesson.Video)
		cp.lesson.Quiz = cloneQuiz(n.lesson.Quiz)
		cp.lesson.Assessment = cloneAssessment(n.lesson.Assessment)
		cp.resources = append([]nodeKey{}, n.resources...)
		c.lessons[k] = &cp
	}
	for k, n := range t.resources {
		cp := *n
		c.resources[k] = &cp
	}
	for id, ref := range t.index {
		c.index[id] = ref
	}
	return c
}

// LessonByID returns a snapshot of the lesson with the given id.
func (t *Tree) LessonByID(id string) (Lesson, bool) {
	ref, ok := t.index[id]
	if !ok || ref.kind != kindLesson {
		return Lesson{}, false
	}
	ln := t.lessons[ref.key]
	l := ln.lesson
	l.Order = t.position(ln.parent, ref.key)
	l.Video, l.Quiz, l.Assessment = cloneVideo(l.Video), cloneQuiz(l.Quiz), cloneAssessment(l.Assessment)
	l.Resources = t.snapshotResources(ln.resources)
	return l, true
}

// Kind returns the node kind ("week", "section", "lesson", "resource") of id.
func (t *Tree) Kind(id string) (string, bool) {
	ref, ok := t.index[id]
	if !ok {
		return "", false
	}
	return ref.kind.String(), true
}

// position returns the index of key within the lesson list of parent.
func (t *Tree) position(parent nodeRef, key nodeKey) int {
	var keys []nodeKey
	switch parent.kind {
	case kindWeek:
		keys = t.weekNodes[parent.key].lessons
	case kindSection:
		keys = t.sections[parent.key].lessons
	}
	return indexOf(keys, key)
}

func (t *Tree) weekNumber(wk nodeKey) int {
	return indexOf(t.weeks, wk) + 1
}

func indexOf(keys []nodeKey, key nodeKey) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

func cloneLiveClasses(in []LiveClass) []LiveClass {
	out := make([]LiveClass, len(in))
	for i, lc := range in {
		lc.Materials = append([]Material{}, lc.Materials...)
		out[i] = lc
	}
	return out
}

func cloneVideo(v *VideoContent) *VideoContent {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneQuiz(q *QuizContent) *QuizContent {
	if q == nil {
		return nil
	}
	cp := *q
	return &cp
}

func cloneAssessment(a *AssessmentContent) *AssessmentContent {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
