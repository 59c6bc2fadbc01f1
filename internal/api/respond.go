package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/editor"
	"github.com/p-n-ai/pai-curriculum/internal/reference"
	"github.com/p-n-ai/pai-curriculum/internal/upload"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string                      `json:"error"`
	Kind    upload.ErrorKind            `json:"kind,omitempty"`
	Warning string                      `json:"warning,omitempty"`
	Summary string                      `json:"summary,omitempty"`
	Errors  curriculum.ValidationErrors `json:"errors,omitempty"`
	Result  any                         `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. result, when not nil, is
// sent along so the dashboard can refresh from it.
func writeError(w http.ResponseWriter, err error, result any) {
	body := errorBody{Error: err.Error(), Result: result}
	status := http.StatusInternalServerError

	var verrs curriculum.ValidationErrors
	var ue *upload.Error
	switch {
	case errors.As(err, &verrs):
		status = http.StatusUnprocessableEntity
		body.Errors = verrs
		body.Summary = verrs.Summary()
	case errors.As(err, &ue):
		body.Error = ue.Message
		body.Kind = ue.Kind
		status = uploadStatus(ue.Kind)
	case errors.Is(err, curriculum.ErrLastWeek):
		status = http.StatusConflict
		body.Warning = curriculum.LastWeekWarning
	case errors.Is(err, upload.ErrUploadInFlight):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, editor.ErrSessionNotFound),
		errors.Is(err, editor.ErrTemplateNotFound),
		errors.Is(err, curriculum.ErrRecordNotFound),
		errors.Is(err, curriculum.ErrNotFound),
		errors.Is(err, reference.ErrUnknownKind):
		status = http.StatusNotFound
	case errors.Is(err, curriculum.ErrOutOfRange),
		errors.Is(err, curriculum.ErrInvalidLessonType),
		errors.Is(err, curriculum.ErrUnknownField),
		errors.Is(err, curriculum.ErrInvalidValue),
		errors.Is(err, curriculum.ErrFieldNotApplicable),
		errors.Is(err, curriculum.ErrDuplicateID),
		errors.Is(err, editor.ErrUnknownOp),
		errors.Is(err, editor.ErrNotUploadable),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func uploadStatus(k upload.ErrorKind) int {
	switch k {
	case upload.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case upload.KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case upload.KindUnauthorized:
		return http.StatusUnauthorized
	case upload.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
