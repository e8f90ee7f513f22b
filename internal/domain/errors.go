package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingCredential = errors.New("missing credential")
	ErrNoPriorImage      = errors.New("no prior image")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrForbidden         = errors.New("forbidden")
)

// GenerationError reports a failed call to the image generation backend.
// Status is zero when the request never produced an HTTP response. Reason is
// the upstream explanation (response body or model text) kept verbatim.
type GenerationError struct {
	Status int
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	reason := e.Reason
	if strings.TrimSpace(reason) == "" {
		reason = ""
	}
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("Gemini error %d: %s", e.Status, reason)
	}
	if reason == "" {
		return ErrGenerationFailed.Error()
	}
	return reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrGenerationFailed) match any GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// InvalidInput wraps a human readable message with ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
