package editor

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// Command ops accepted by Session.Apply.
const (
	OpAddWeek          = "add_week"
	OpRemoveWeek       = "remove_week"
	OpUpdateWeek       = "update_week"
	OpAddSection       = "add_section"
	OpRemoveSection    = "remove_section"
	OpUpdateSection    = "update_section"
	OpAddLesson        = "add_lesson"
	OpRemoveLesson     = "remove_lesson"
	OpUpdateLesson     = "update_lesson"
	OpClearLessonMedia = "clear_lesson_media"
	OpAddResource      = "add_resource"
	OpRemoveResource   = "remove_resource"
	OpUpdateResource   = "update_resource"
	OpAddTopic         = "add_topic"
	OpRemoveTopic      = "remove_topic"
	OpAddLiveClass     = "add_live_class"
	OpRemoveLiveClass  = "remove_live_class"
	OpUpdateLiveClass  = "update_live_class"
	OpAddMaterial      = "add_material"
	OpRemoveMaterial   = "remove_material"
	OpSetTitle         = "set_title"
)

// ErrUnknownOp is returned for a command op Apply does not know.
var ErrUnknownOp = errors.New("unknown command")

// Command is one mutation sent by the dashboard. Indices are zero-based.
// Section is curriculum.NoSection (-1) for a week's direct lessons; Lesson is
// curriculum.NoLesson (-1) for a section's own resources.
type Command struct {
	Op         string                `json:"op"`
	Week       int                   `json:"week"`
	Section    int                   `json:"section"`
	Lesson     int                   `json:"lesson"`
	Resource   int                   `json:"resource"`
	Class      int                   `json:"class"`
	Index      int                   `json:"index"`
	Field      string                `json:"field,omitempty"`
	Value      any                   `json:"value,omitempty"`
	LessonType curriculum.LessonType `json:"lessonType,omitempty"`
	Text       string                `json:"text,omitempty"`
	Material   *curriculum.Material  `json:"material,omitempty"`
}

func (c Command) lessonRef() curriculum.LessonRef {
	return curriculum.LessonRef{Week: c.Week, Section: c.Section, Lesson: c.Lesson}
}

func (c Command) owner() curriculum.OwnerRef {
	return curriculum.OwnerRef{Week: c.Week, Section: c.Section, Lesson: c.Lesson}
}

// Result is what Apply reports back along with the new snapshot.
type Result struct {
	Op         string             `json:"op"`
	Index      *int               `json:"index,omitempty"`
	Added      *bool              `json:"added,omitempty"`
	Warning    string             `json:"warning,omitempty"`
	Curriculum []curriculum.Week  `json:"curriculum"`
	Summary    curriculum.Summary `json:"summary"`
}

// apply runs cmd against the tree. It returns the index of a created node
// where there is one, and the upload key the command invalidates, if any.
func (s *Session) apply(cmd Command, res *Result) (invalidate string, err error) {
	t := s.tree
	created := func(i int, err error) error {
		if err == nil {
			res.Index = &i
		}
		return err
	}

	switch cmd.Op {
	case OpAddWeek:
		return "", created(t.AddWeek(), nil)
	case OpRemoveWeek:
		return "", t.RemoveWeek(cmd.Week)
	case OpUpdateWeek:
		return "", t.UpdateWeek(cmd.Week, cmd.Field, cmd.Value)
	case OpAddSection:
		return "", created(t.AddSection(cmd.Week))
	case OpRemoveSection:
		return "", t.RemoveSection(cmd.Week, cmd.Section)
	case OpUpdateSection:
		return "", t.UpdateSection(cmd.Week, cmd.Section, cmd.Field, cmd.Value)
	case OpAddLesson:
		return "", created(t.AddLesson(cmd.Week, cmd.Section, cmd.LessonType))
	case OpRemoveLesson:
		return "", t.RemoveLesson(cmd.lessonRef())
	case OpUpdateLesson:
		id, err := t.LessonID(cmd.lessonRef())
		if err != nil {
			return "", err
		}
		if err := t.UpdateLesson(cmd.lessonRef(), cmd.Field, cmd.Value); err != nil {
			return "", err
		}
		if cmd.Field == "video_url" {
			return id, nil
		}
		return "", nil
	case OpClearLessonMedia:
		id, err := t.LessonID(cmd.lessonRef())
		if err != nil {
			return "", err
		}
		return id, t.ClearLessonMedia(id)
	case OpAddResource:
		return "", created(t.AddResource(cmd.owner()))
	case OpRemoveResource:
		return "", t.RemoveResource(cmd.owner(), cmd.Resource)
	case OpUpdateResource:
		id, err := t.ResourceID(cmd.owner(), cmd.Resource)
		if err != nil {
			return "", err
		}
		if err := t.UpdateResource(cmd.owner(), cmd.Resource, cmd.Field, cmd.Value); err != nil {
			return "", err
		}
		if cmd.Field == "url" {
			return id, nil
		}
		return "", nil
	case OpAddTopic:
		added, err := t.AddTopic(cmd.Week, cmd.Text)
		if err == nil {
			res.Added = &added
		}
		return "", err
	case OpRemoveTopic:
		return "", t.RemoveTopic(cmd.Week, cmd.Index)
	case OpAddLiveClass:
		return "", created(t.AddLiveClass(cmd.Week))
	case OpRemoveLiveClass:
		return "", t.RemoveLiveClass(cmd.Week, cmd.Class)
	case OpUpdateLiveClass:
		return "", t.UpdateLiveClass(cmd.Week, cmd.Class, cmd.Field, cmd.Value)
	case OpAddMaterial:
		if cmd.Material == nil {
			return "", fmt.Errorf("material is required: %w", curriculum.ErrInvalidValue)
		}
		return "", t.AddMaterial(cmd.Week, cmd.Class, *cmd.Material)
	case OpRemoveMaterial:
		return "", t.RemoveMaterial(cmd.Week, cmd.Class, cmd.Index)
	case OpSetTitle:
		title, ok := cmd.Value.(string)
		if !ok {
			return "", fmt.Errorf("title must be a string: %w", curriculum.ErrInvalidValue)
		}
		s.title = title
		return "", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
}
