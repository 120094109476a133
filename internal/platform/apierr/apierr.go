package apierr

import (
	"errors"
	"fmt"
	"net/http"

	cveerrors "github.com/yungbote/cvetrack-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromService maps a service error onto an HTTP status. resource prefixes the code,
// e.g. "cve" yields "cve_not_found".
func FromService(resource string, err error) *Error {
	var ae *Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, cveerrors.ErrNotFound):
		return New(http.StatusNotFound, resource+"_not_found", err)
	case errors.Is(err, cveerrors.ErrAlreadyExists):
		return New(http.StatusConflict, resource+"_already_exists", err)
	case errors.Is(err, cveerrors.ErrInvalidArgument), errors.Is(err, cveerrors.ErrInvalidRecord):
		return New(http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, cveerrors.ErrBatchUploadFailed):
		return New(http.StatusConflict, "batch_upload_failed", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
