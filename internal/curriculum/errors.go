package curriculum

import "errors"

var (
	// ErrLastWeek is returned when removing the only remaining week.
	ErrLastWeek = errors.New("a curriculum must keep at least one week")

	ErrOutOfRange         = errors.New("index out of range")
	ErrNotFound           = errors.New("node not found")
	ErrInvalidLessonType  = errors.New("invalid lesson type")
	ErrUnknownField       = errors.New("unknown field")
	ErrInvalidValue       = errors.New("invalid value")
	ErrFieldNotApplicable = errors.New("field does not apply to this lesson type")
	ErrDuplicateID        = errors.New("duplicate node id")
)

// LastWeekWarning is the user-facing message shown when week removal is refused.
const LastWeekWarning = "You need at least one week in the curriculum."
