// Package upload coordinates media uploads for curriculum lessons: file
// validation, base64 transfer to the upload collaborator, progress tracking
// and writing the resulting media reference back onto the lesson.
package upload

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
)

// AcceptedMarker is the progress shown once the collaborator has accepted
// the payload and is processing it asynchronously. Transmission progress is
// scaled below it.
const AcceptedMarker = 88

// Status is the per-lesson upload state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InFlight reports whether an attempt is still running.
func (s Status) InFlight() bool {
	return s == StatusUploading || s == StatusProcessing
}

// Media selects the validation rules for a file.
type Media string

const (
	MediaVideo    Media = "video"
	MediaDocument Media = "document"
)

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindTooLarge           ErrorKind = "too_large"
	KindUnsupportedType    ErrorKind = "unsupported_type"
	KindServerError        ErrorKind = "server_error"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindProcessingTimeout  ErrorKind = "processing_timeout"
)

// Error is a classified upload failure. Message is shown to the user as is.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrUploadInFlight is returned when a lesson already has an upload
	// uploading or processing.
	ErrUploadInFlight = errors.New("an upload is already in progress for this lesson")

	// ErrProcessingTimeout marks attempts the collaborator never finished.
	ErrProcessingTimeout = errors.New("upload processing did not finish in time")

	// ErrStale is returned by a MediaWriter when the attempt was invalidated
	// before its result could be written.
	ErrStale = errors.New("upload attempt is no longer current")
)

// File is a user-selected file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Target is the node an upload attaches to: a video lesson, or one of a
// lesson's resources when ResourceID is set.
type Target struct {
	LessonID   string            `json:"lessonId"`
	ResourceID string            `json:"resourceId,omitempty"`
	Media      Media             `json:"media"`
	Handle     curriculum.Handle `json:"-"`
}

// Key is the id the attempt is tracked under.
func (t Target) Key() string {
	if t.ResourceID != "" {
		return t.ResourceID
	}
	return t.LessonID
}

// Metadata describes the encoded file.
type Metadata struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"` // blake2b-256, hex
	LessonID    string `json:"lessonId"`
	Media       Media  `json:"media"`
}

// Payload is the body sent to the upload collaborator.
type Payload struct {
	EncodedFile string   `json:"encodedFile"`
	Metadata    Metadata `json:"metadata"`
}

// RemoteStatus is the collaborator's view of an upload.
type RemoteStatus string

const (
	RemoteAccepted  RemoteStatus = "accepted"
	RemoteCompleted RemoteStatus = "completed"
	RemoteFailed    RemoteStatus = "failed"
)

// Response is the collaborator's reply to an upload or status request.
type Response struct {
	Status       RemoteStatus `json:"status"`
	URL          string       `json:"url,omitempty"`
	VideoID      string       `json:"videoId,omitempty"`
	Message      string       `json:"message,omitempty"`
	Duration     string       `json:"duration,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
}

// ProgressFunc receives byte counts while the payload is transmitted.
type ProgressFunc func(sent, total int64)

// Uploader is the upload collaborator.
type Uploader interface {
	Upload(ctx context.Context, p Payload, progress ProgressFunc) (Response, error)
	Status(ctx context.Context, videoID string) (Response, error)
}

// Result is the media reference written onto the target.
type Result struct {
	URL          string
	Duration     string
	ThumbnailURL string
	FileSize     int64
}

// MediaWriter writes a finished upload onto the tree. current reports whether
// the attempt is still the live one; writers must check it while holding
// whatever lock guards the tree and return ErrStale when it is not.
type MediaWriter interface {
	WriteMedia(t Target, r Result, current func() bool) error
}

// MediaWriterFunc adapts a function to MediaWriter.
type MediaWriterFunc func(t Target, r Result, current func() bool) error

func (f MediaWriterFunc) WriteMedia(t Target, r Result, current func() bool) error {
	return f(t, r, current)
}

// LessonState is the observable upload state of one target.
type LessonState struct {
	Key       string    `json:"key"`
	Target    Target    `json:"target"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Attempt   uint64    `json:"attempt"`
	URL       string    `json:"url,omitempty"`
	VideoID   string    `json:"videoId,omitempty"`
	Error     *Error    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Config holds validation limits and processing timing.
type Config struct {
	MaxDocumentBytes  int64
	MaxVideoBytes     int64
	VideoTypes        []string
	DocumentTypes     []string
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
}
