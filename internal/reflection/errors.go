package reflection

import (
	"errors"
	"fmt"
)

// Generation failure kinds. Match with errors.Is.
var (
	ErrTemplateMissingPlaceholder = errors.New("template missing placeholder")
	ErrOutputTruncated            = errors.New("output truncated")
	ErrAPI                        = errors.New("generation API error")
)

// GenerationError reports why no reflection was produced.
type GenerationError struct {
	Kind     error // One of the Err* kinds above
	Attempts int   // Backend calls made
	Budget   int   // Output token budget of the last call
	Err      error
}

func (e *GenerationError) Error() string {
	msg := e.Kind.Error()
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s) (budget %d tokens)", msg, e.Attempts, e.Budget)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause.
func (e *GenerationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
