package curriculum

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

func setResourceField(r *Resource, field string, value any) error {
	s, err := asString(field, value)
	if err != nil {
		return err
	}
	switch field {
	case "title":
		r.Title = s
	case "url":
		r.URL = s
	case "description":
		r.Description = s
	case "type":
		rt := ResourceType(s)
		if !rt.Valid() {
			return fmt.Errorf("%w: resource type %q", ErrInvalidValue, s)
		}
		r.Type = rt
	default:
		return fmt.Errorf("%w: resource.%s", ErrUnknownField, field)
	}
	return nil
}

// setLessonField matches on the lesson variant; fields of another variant
// are rejected rather than silently stored.
func setLessonField(l *Lesson, field string, value any) error {
	switch field {
	case "title", "description":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		if field == "title" {
			l.Title = s
		} else {
			l.Description = s
		}
		return nil
	case "isPreview":
		b, err := asBool(field, value)
		if err != nil {
			return err
		}
		l.IsPreview = b
		return nil
	case "lessonType":
		return fmt.Errorf("%w: lesson type is fixed at creation", ErrInvalidValue)
	}

	switch l.Type {
	case LessonVideo:
		switch field {
		case "video_url", "duration", "thumbnail_url":
			s, err := asString(field, value)
			if err != nil {
				return err
			}
			switch field {
			case "video_url":
				l.Video.URL = s
			case "duration":
				l.Video.Duration = s
			default:
				l.Video.ThumbnailURL = s
			}
			return nil
		case "file_size":
			n, err := asInt(field, value)
			if err != nil {
				return err
			}
			l.Video.FileSize = int64(n)
			return nil
		}
	case LessonQuiz:
		if field == "quiz_id" {
			s, err := asString(field, value)
			if err != nil {
				return err
			}
			l.Quiz.QuizID = s
			return nil
		}
	case LessonAssessment:
		if field == "assignment_id" {
			s, err := asString(field, value)
			if err != nil {
				return err
			}
			l.Assessment.AssignmentID = s
			return nil
		}
	}

	if isVariantField(field) {
		return fmt.Errorf("%w: %s on %s lesson", ErrFieldNotApplicable, field, l.Type)
	}
	return fmt.Errorf("%w: lesson.%s", ErrUnknownField, field)
}

func isVariantField(field string) bool {
	switch field {
	case "video_url", "duration", "thumbnail_url", "file_size", "quiz_id", "assignment_id":
		return true
	}
	return false
}

func setLiveClassField(lc *LiveClass, field string, value any) error {
	switch field {
	case "duration":
		n, err := asInt(field, value)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalidValue)
		}
		lc.Duration = n
		return nil
	case "isRecorded":
		b, err := asBool(field, value)
		if err != nil {
			return err
		}
		lc.IsRecorded = b
		return nil
	case "scheduledDate":
		s, err := asString(field, value)
		if err != nil {
			return err
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: scheduledDate: %v", ErrInvalidValue, err)
		}
		lc.ScheduledDate = ts
		return nil
	}

	s, err := asString(field, value)
	if err != nil {
		return err
	}
	switch field {
	case "title":
		lc.Title = s
	case "description":
		lc.Description = s
	case "meetingLink":
		lc.MeetingLink = s
	case "instructor":
		lc.Instructor = s
	case "recordingUrl":
		lc.RecordingURL = s
	default:
		return fmt.Errorf("%w: liveClass.%s", ErrUnknownField, field)
	}
	return nil
}

func asString(field string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, field, value)
}

func asBool(field string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s expects a boolean, got %v", ErrInvalidValue, field, value)
}

// asInt accepts JSON numbers (float64) as long as they are whole.
func asInt(field string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s expects a whole number, got %v", ErrInvalidValue, field, value)
}

// normalizeTopic trims and NFC-normalizes topic text so composed and
// decomposed spellings compare equal. Case is preserved.
func normalizeTopic(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
