package fetch

import (
	"errors"
	"fmt"
)

// Extraction failure kinds. Match with errors.Is.
var (
	ErrFetchFailed     = errors.New("fetch failed")
	ErrContentNotFound = errors.New("content not found")
)

// ExtractionError reports why a readings page produced no excerpt.
type ExtractionError struct {
	Kind error  // ErrFetchFailed or ErrContentNotFound
	URL  string // Requested page
	Err  error  // Underlying cause, may be nil
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fetchFailed(url string, err error) error {
	return &ExtractionError{Kind: ErrFetchFailed, URL: url, Err: err}
}

func contentNotFound(url string, err error) error {
	return &ExtractionError{Kind: ErrContentNotFound, URL: url, Err: err}
}
