// Package dragdrop implements the drag-reorder gesture for the curriculum
// tree: press on a week, section or lesson, hover candidate containers, and
// release to relocate the node.
package dragdrop

import (
	"fmt"
	"log/slog"
)

// RootID is the container id of the curriculum itself. Weeks are dropped on
// it to reorder them.
const RootID = "curriculum"

// ItemType is the kind of node being dragged.
type ItemType string

const (
	ItemWeek    ItemType = "week"
	ItemSection ItemType = "section"
	ItemLesson  ItemType = "lesson"
)

// ContainerType is the kind of node a drag can be dropped on.
type ContainerType string

const (
	ContainerRoot    ContainerType = "curriculum"
	ContainerWeek    ContainerType = "week"
	ContainerSection ContainerType = "section"
)

// accepts maps each dragged item type to the only container type that takes it.
var accepts = map[ItemType]ContainerType{
	ItemWeek:    ContainerRoot,
	ItemSection: ContainerWeek,
	ItemLesson:  ContainerSection,
}

// Accepts reports whether a container of type c takes items of type it.
func Accepts(c ContainerType, it ItemType) bool {
	want, ok := accepts[it]
	return ok && want == c
}

// Tree is the part of the curriculum tree the controller needs.
// *curriculum.Tree satisfies it.
type Tree interface {
	Kind(id string) (string, bool)
	ParentID(id string) (string, bool)
	MoveWeek(weekID string, index int) error
	MoveSection(sectionID, targetWeekID string, index int) error
	MoveLesson(lessonID, targetSectionID string, index int) error
}

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Item is the node captured at drag start.
type Item struct {
	Type            ItemType `json:"itemType"`
	ID              string   `json:"itemId"`
	SourceContainer string   `json:"sourceContainerId"`
}

// Target is a candidate drop container. Index is the insertion position;
// a negative index appends.
type Target struct {
	Type  ContainerType `json:"targetType"`
	ID    string        `json:"targetId"`
	Index int           `json:"index"`
}

// Action tells the caller what a gesture step did.
type Action string

const (
	ActionStarted   Action = "started"
	ActionHovered   Action = "hovered"
	ActionMoved     Action = "moved"
	ActionCancelled Action = "cancelled"
	ActionIgnored   Action = "ignored"
)

// Outcome is the result of one gesture step. Refused steps come back as
// ActionIgnored with a reason; they never surface as errors.
type Outcome struct {
	Action  Action `json:"action"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
	Accepts bool   `json:"accepts,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
}

// Controller runs one drag gesture at a time against a tree. It is not safe
// for concurrent use; callers serialize gestures with their other mutations.
type Controller struct {
	tree  Tree
	state State
	item  Item
	hover *Target
}

// New creates an idle controller bound to tree.
func New(tree Tree) *Controller {
	return &Controller{tree: tree}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	return c.state
}

// Active returns the dragged item while a drag is in progress.
func (c *Controller) Active() (Item, bool) {
	return c.item, c.state == Dragging
}

// Hover returns the last container hovered during the current drag.
func (c *Controller) Hover() (Target, bool) {
	if c.state != Dragging || c.hover == nil {
		return Target{}, false
	}
	return *c.hover, true
}

// Start captures the item under the pointer. A second Start while dragging,
// an unknown item type or a stale id is ignored.
func (c *Controller) Start(it ItemType, id string) Outcome {
	if c.state == Dragging {
		return c.ignore("a drag is already in progress")
	}
	if _, ok := accepts[it]; !ok {
		return c.ignore(fmt.Sprintf("%q items cannot be dragged", it))
	}
	if kind, ok := c.tree.Kind(id); !ok || kind != string(it) {
		return c.ignore(fmt.Sprintf("no %s with id %q", it, id))
	}

	source := RootID
	if it != ItemWeek {
		source, _ = c.tree.ParentID(id)
	}
	c.state = Dragging
	c.item = Item{Type: it, ID: id, SourceContainer: source}
	c.hover = nil
	return c.outcome(ActionStarted)
}

// Over records the hovered container for feedback. It never mutates the tree.
func (c *Controller) Over(target Target) Outcome {
	if c.state != Dragging {
		return c.ignore("no drag in progress")
	}
	t := target
	c.hover = &t
	out := c.outcome(ActionHovered)
	out.Accepts = c.compatible(target)
	return out
}

// Drop releases the item on target and returns the controller to idle.
// Compatible drops relocate the node and renumber both containers; a drop
// back on the source container renumbers it in place.
func (c *Controller) Drop(target Target) Outcome {
	if c.state != Dragging {
		return c.ignore("no drag in progress")
	}
	item := c.item
	c.reset()

	if !c.compatible(target) {
		return c.ignore(fmt.Sprintf("%s cannot be dropped on %s", item.Type, target.Type))
	}
	if target.ID == item.ID {
		return c.ignore("item dropped on itself")
	}
	if kind, ok := c.tree.Kind(item.ID); !ok || kind != string(item.Type) {
		return c.ignore(fmt.Sprintf("%s %q no longer exists", item.Type, item.ID))
	}
	if target.Type != ContainerRoot {
		if kind, ok := c.tree.Kind(target.ID); !ok || kind != string(target.Type) {
			return c.ignore(fmt.Sprintf("%s %q does not exist", target.Type, target.ID))
		}
	}

	var err error
	switch item.Type {
	case ItemWeek:
		err = c.tree.MoveWeek(item.ID, target.Index)
	case ItemSection:
		err = c.tree.MoveSection(item.ID, target.ID, target.Index)
	case ItemLesson:
		err = c.tree.MoveLesson(item.ID, target.ID, target.Index)
	}
	if err != nil {
		return c.ignore(err.Error())
	}

	out := c.outcome(ActionMoved)
	out.From = item.SourceContainer
	out.To = target.ID
	if target.Type == ContainerRoot {
		out.To = RootID
	}
	return out
}

// End finishes a drag that was not dropped on any container.
func (c *Controller) End() Outcome {
	if c.state != Dragging {
		return c.ignore("no drag in progress")
	}
	c.reset()
	return c.outcome(ActionCancelled)
}

func (c *Controller) compatible(target Target) bool {
	if !Accepts(target.Type, c.item.Type) {
		return false
	}
	return target.Type == ContainerRoot || target.ID != ""
}

func (c *Controller) reset() {
	c.state = Idle
	c.hover = nil
}

func (c *Controller) outcome(a Action) Outcome {
	return Outcome{Action: a, State: c.state.String()}
}

func (c *Controller) ignore(reason string) Outcome {
	slog.Debug("drag step ignored", "reason", reason)
	out := c.outcome(ActionIgnored)
	out.Reason = reason
	return out
}
