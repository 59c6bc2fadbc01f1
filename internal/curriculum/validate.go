package curriculum

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/curriculum.schema.json
var schemaJSON string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	})
	return schema, schemaErr
}

// FieldError is one validation problem, addressed by a dotted path such as
// "weeks[0].sections[1].title".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates every problem found in a curriculum.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	return v.Summary()
}

// Summary is the single user-facing line shown on a failed submit.
func (v ValidationErrors) Summary() string {
	switch len(v) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("1 problem: %s: %s", v[0].Field, v[0].Message)
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%d problems: %s", len(v), strings.Join(parts, "; "))
}

// DecodeDocument checks raw JSON against the curriculum schema and decodes it.
// Schema violations come back as ValidationErrors.
func DecodeDocument(data []byte) ([]Week, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling curriculum schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validating curriculum document: %w", err)
	}
	if !res.Valid() {
		var verrs ValidationErrors
		for _, re := range res.Errors() {
			verrs = append(verrs, FieldError{Field: re.Field(), Message: re.Description()})
		}
		return nil, verrs
	}

	var weeks []Week
	if err := json.Unmarshal(data, &weeks); err != nil {
		return nil, fmt.Errorf("decoding curriculum document: %w", err)
	}
	return weeks, nil
}

// Validate checks a curriculum before submission: required titles, at least
// one week, contiguous numbering, lesson references and resource types.
func Validate(weeks []Week) error {
	var verrs ValidationErrors
	add := func(field, msg string) {
		verrs = append(verrs, FieldError{Field: field, Message: msg})
	}

	if len(weeks) == 0 {
		add("curriculum", "at least one week is required")
	}
	for wi, w := range weeks {
		wp := fmt.Sprintf("weeks[%d]", wi)
		if w.WeekNumber != wi+1 {
			add(wp+".weekNumber", fmt.Sprintf("expected %d, got %d", wi+1, w.WeekNumber))
		}
		if strings.TrimSpace(w.Title) == "" {
			add(wp+".weekTitle", "week title is required")
		}
		for si, s := range w.Sections {
			sp := fmt.Sprintf("%s.sections[%d]", wp, si)
			if s.Order != si {
				add(sp+".order", fmt.Sprintf("expected %d, got %d", si, s.Order))
			}
			if strings.TrimSpace(s.Title) == "" {
				add(sp+".title", "section title is required")
			}
			validateLessons(sp, s.Lessons, add)
			validateResources(sp, s.Resources, add)
		}
		validateLessons(wp, w.Lessons, add)
		for ci, lc := range w.LiveClasses {
			cp := fmt.Sprintf("%s.liveClasses[%d]", wp, ci)
			if strings.TrimSpace(lc.Title) == "" {
				add(cp+".title", "live class title is required")
			}
			if lc.Duration <= 0 {
				add(cp+".duration", "duration must be a positive number of minutes")
			}
			if lc.ScheduledDate.IsZero() {
				add(cp+".scheduledDate", "scheduled date is required")
			}
		}
	}

	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

func validateLessons(prefix string, lessons []Lesson, add func(field, msg string)) {
	for li, l := range lessons {
		lp := fmt.Sprintf("%s.lessons[%d]", prefix, li)
		if l.Order != li {
			add(lp+".order", fmt.Sprintf("expected %d, got %d", li, l.Order))
		}
		if strings.TrimSpace(l.Title) == "" {
			add(lp+".title", "lesson title is required")
		}
		switch l.Type {
		case LessonVideo:
			// video_url may stay empty while an upload is pending.
		case LessonQuiz:
			if l.Quiz == nil || l.Quiz.QuizID == "" {
				add(lp+".quiz_id", "select a quiz")
			}
		case LessonAssessment:
			if l.Assessment == nil || l.Assessment.AssignmentID == "" {
				add(lp+".assignment_id", "select an assignment")
			}
		default:
			add(lp+".lessonType", fmt.Sprintf("unknown lesson type %q", l.Type))
		}
		validateResources(lp, l.Resources, add)
	}
}

func validateResources(prefix string, resources []Resource, add func(field, msg string)) {
	for ri, r := range resources {
		rp := fmt.Sprintf("%s.resources[%d]", prefix, ri)
		if strings.TrimSpace(r.Title) == "" {
			add(rp+".title", "resource title is required")
		}
		if !r.Type.Valid() {
			add(rp+".type", fmt.Sprintf("unknown resource type %q", r.Type))
		}
	}
}
