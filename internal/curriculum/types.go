package curriculum

import (
	"encoding/json"
	"fmt"
	"time"
)

// LessonType is the discriminant of the Lesson tagged union.
type LessonType string

const (
	LessonVideo      LessonType = "video"
	LessonQuiz       LessonType = "quiz"
	LessonAssessment LessonType = "assessment"
)

// Valid reports whether t is one of the known lesson variants.
func (t LessonType) Valid() bool {
	switch t {
	case LessonVideo, LessonQuiz, LessonAssessment:
		return true
	}
	return false
}

// ResourceType identifies the kind of a lesson or section resource.
type ResourceType string

const (
	ResourcePDF      ResourceType = "pdf"
	ResourceDocument ResourceType = "document"
	ResourceVideo    ResourceType = "video"
	ResourceAudio    ResourceType = "audio"
	ResourceLink     ResourceType = "link"
)

// ResourceTypes is the full set of allowed resource types. Validation and the
// JSON schema enum are both derived from it.
var ResourceTypes = []ResourceType{
	ResourcePDF,
	ResourceDocument,
	ResourceVideo,
	ResourceAudio,
	ResourceLink,
}

// DefaultResourceType is used for resources created without a type.
const DefaultResourceType = ResourcePDF

// Valid reports whether t is an allowed resource type.
func (t ResourceType) Valid() bool {
	for _, rt := range ResourceTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Week is the root-level grouping of a curriculum.
type Week struct {
	ID          string      `json:"id" yaml:"id"`
	WeekNumber  int         `json:"weekNumber" yaml:"week_number"`
	Title       string      `json:"weekTitle" yaml:"title"`
	Description string      `json:"weekDescription" yaml:"description"`
	Topics      []string    `json:"topics" yaml:"topics"`
	Sections    []Section   `json:"sections" yaml:"sections"`
	Lessons     []Lesson    `json:"lessons" yaml:"lessons"` // direct lessons, outside any section
	LiveClasses []LiveClass `json:"liveClasses" yaml:"live_classes"`
}

// Section groups lessons and section-level resources inside a week.
type Section struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Order       int        `json:"order" yaml:"order"`
	Lessons     []Lesson   `json:"lessons" yaml:"lessons"`
	Resources   []Resource `json:"resources" yaml:"resources"`
}

// Resource is a file or link attached to a lesson or a section.
type Resource struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	URL         string       `json:"url" yaml:"url"`
	Type        ResourceType `json:"type" yaml:"type"`
	Description string       `json:"description" yaml:"description"`
}

// VideoContent holds the fields of a video lesson.
type VideoContent struct {
	URL          string
	Duration     string // free-form, e.g. "12:34"
	ThumbnailURL string
	FileSize     int64
}

// QuizContent references an externally managed quiz.
type QuizContent struct {
	QuizID string
}

// AssessmentContent references an externally managed assignment.
type AssessmentContent struct {
	AssignmentID string
}

// Lesson is a tagged union over video, quiz and assessment lessons. Exactly
// the payload matching Type is non-nil; the variant is fixed at creation.
type Lesson struct {
	ID          string
	Title       string
	Description string
	Order       int
	Type        LessonType
	IsPreview   bool
	Resources   []Resource

	Video      *VideoContent
	Quiz       *QuizContent
	Assessment *AssessmentContent
}

// NewLesson returns an empty lesson of the given variant.
func NewLesson(t LessonType) (Lesson, error) {
	l := Lesson{Type: t, Resources: []Resource{}}
	if err := l.ensurePayload(); err != nil {
		return Lesson{}, err
	}
	return l, nil
}

// ensurePayload allocates the payload for l.Type and clears the others.
func (l *Lesson) ensurePayload() error {
	switch l.Type {
	case LessonVideo:
		if l.Video == nil {
			l.Video = &VideoContent{}
		}
		l.Quiz, l.Assessment = nil, nil
	case LessonQuiz:
		if l.Quiz == nil {
			l.Quiz = &QuizContent{}
		}
		l.Video, l.Assessment = nil, nil
	case LessonAssessment:
		if l.Assessment == nil {
			l.Assessment = &AssessmentContent{}
		}
		l.Video, l.Quiz = nil, nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLessonType, l.Type)
	}
	return nil
}

// lessonWire is the flat dashboard shape of a lesson. Pointer fields keep
// variant fields present (even when empty) for the active variant only.
type lessonWire struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description" yaml:"description"`
	Order        int        `json:"order" yaml:"order"`
	LessonType   LessonType `json:"lessonType" yaml:"lesson_type"`
	IsPreview    bool       `json:"isPreview" yaml:"is_preview"`
	Resources    []Resource `json:"resources" yaml:"resources"`
	VideoURL     *string    `json:"video_url,omitempty" yaml:"video_url,omitempty"`
	Duration     *string    `json:"duration,omitempty" yaml:"duration,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty"`
	FileSize     int64      `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	QuizID       *string    `json:"quiz_id,omitempty" yaml:"quiz_id,omitempty"`
	AssignmentID *string    `json:"assignment_id,omitempty" yaml:"assignment_id,omitempty"`
}

func (l Lesson) toWire() lessonWire {
	w := lessonWire{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Order:       l.Order,
		LessonType:  l.Type,
		IsPreview:   l.IsPreview,
		Resources:   l.Resources,
	}
	if w.Resources == nil {
		w.Resources = []Resource{}
	}
	switch l.Type {
	case LessonVideo:
		v := VideoContent{}
		if l.Video != nil {
			v = *l.Video
		}
		w.VideoURL = &v.URL
		w.Duration = &v.Duration
		w.ThumbnailURL = v.ThumbnailURL
		w.FileSize = v.FileSize
	case LessonQuiz:
		id := ""
		if l.Quiz != nil {
			id = l.Quiz.QuizID
		}
		w.QuizID = &id
	case LessonAssessment:
		id := ""
		if l.Assessment != nil {
			id = l.Assessment.AssignmentID
		}
		w.AssignmentID = &id
	}
	return w
}

func (w lessonWire) toLesson() (Lesson, error) {
	l := Lesson{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Order:       w.Order,
		Type:        w.LessonType,
		IsPreview:   w.IsPreview,
		Resources:   w.Resources,
	}
	switch w.LessonType {
	case LessonVideo:
		l.Video = &VideoContent{
			URL:          deref(w.VideoURL),
			Duration:     deref(w.Duration),
			ThumbnailURL: w.ThumbnailURL,
			FileSize:     w.FileSize,
		}
	case LessonQuiz:
		l.Quiz = &QuizContent{QuizID: deref(w.QuizID)}
	case LessonAssessment:
		l.Assessment = &AssessmentContent{AssignmentID: deref(w.AssignmentID)}
	default:
		return Lesson{}, fmt.Errorf("%w: %q", ErrInvalidLessonType, w.LessonType)
	}
	return l, nil
}

// MarshalJSON flattens the active variant into the lesson object.
func (l Lesson) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.toWire())
}

// UnmarshalJSON reads the flat lesson shape; lessonType selects the variant.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	var w lessonWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out, err := w.toLesson()
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// MarshalYAML mirrors MarshalJSON for template files.
func (l Lesson) MarshalYAML() (any, error) {
	return l.toWire(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON for template files.
func (l *Lesson) UnmarshalYAML(unmarshal func(any) error) error {
	var w lessonWire
	if err := unmarshal(&w); err != nil {
		return err
	}
	out, err := w.toLesson()
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// LiveClass is a scheduled synchronous session attached to a week.
type LiveClass struct {
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description" yaml:"description"`
	ScheduledDate time.Time  `json:"scheduledDate" yaml:"scheduled_date"`
	Duration      int        `json:"duration" yaml:"duration"` // minutes
	MeetingLink   string     `json:"meetingLink" yaml:"meeting_link"`
	Instructor    string     `json:"instructor" yaml:"instructor"`
	RecordingURL  string     `json:"recordingUrl" yaml:"recording_url"`
	IsRecorded    bool       `json:"isRecorded" yaml:"is_recorded"`
	Materials     []Material `json:"materials" yaml:"materials"`
}

// Material is a file or link handed out for a live class.
type Material struct {
	Title string `json:"title" yaml:"title"`
	Type  string `json:"type" yaml:"type"`
	URL   string `json:"url" yaml:"url"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
