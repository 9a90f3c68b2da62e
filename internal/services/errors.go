package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingFile     = errors.New("no file part")
	ErrEmptyFilename   = errors.New("no selected file")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")

	ErrStorageFailure = errors.New("storage failure")
	ErrStagingMissing = errors.New("staging directory not found")
	ErrDeleteFailure  = errors.New("delete failure")
)

// HTTPError is an error that already knows how it should be rendered.
type HTTPError struct {
	Status  int
	Message string
	Details string
	Cause   error
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

func NewValidationError(cause error, details string) *HTTPError {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: validationMessage(cause),
		Details: details,
		Cause:   cause,
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFile):
		return "No file part"
	case errors.Is(err, ErrEmptyFilename):
		return "No selected file"
	case errors.Is(err, ErrUnsupportedType):
		return "Unsupported file type. Allowed types: " + allowedExtensionList()
	case errors.Is(err, ErrTooLarge):
		return "File too large"
	default:
		return "Invalid upload"
	}
}

// IsValidationError reports whether err is one of the upload validation
// sentinels.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrEmptyFilename) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrTooLarge)
}
