package jobs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by query operations that reference an unknown
// job id. It is surfaced immediately to the caller and never retried.
var ErrNotFound = errors.New("job not found")

// NotFoundError wraps ErrNotFound with the offending id.
func NotFoundError(jobID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, jobID)
}

// IsNotFound reports whether err indicates an unknown job id.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
