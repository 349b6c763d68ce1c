package integration

import (
	"errors"
	"fmt"
)

// ErrFormNotFound means the portal page no longer carries the search form.
// The portal markup has most likely changed; retrying will not help.
var ErrFormNotFound = errors.New("search form not found")

// ErrFetchFailed matches every *FetchError
var ErrFetchFailed = errors.New("portal fetch failed")

// FetchError is a retryable failure talking to the portal
type FetchError struct {
	Op  string // "load search page", "submit search form", ...
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailed) true for any FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
