package report

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned before any upstream call when no time-tracking
// credentials have been configured yet.
var ErrNotConfigured = errors.New("time-tracking credentials not configured")

// ValidationError reports malformed caller input or provider data that is
// internally impossible (negative hours, NaN). Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// UpstreamError reports a failure from an external provider (network, auth,
// non-2xx, malformed payload). The report core propagates these unchanged and
// never retries.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
