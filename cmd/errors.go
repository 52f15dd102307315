package cmd

import (
	"fmt"

	"github.com/khanhnv2901/seca-probe/internal/checks"
)

// UnknownCheckError reports a --checks entry that names no registered check.
type UnknownCheckError = checks.UnknownCheckError

// FatalChecksError signals that at least one check could not complete. The
// run is still saved; the error only makes the exit status non-zero.
type FatalChecksError struct {
	RunID string
	Count int
	Err   error
}

func (e *FatalChecksError) Error() string {
	return fmt.Sprintf("%d check(s) ended in a fatal error in run %s: %v", e.Count, e.RunID, e.Err)
}

func (e *FatalChecksError) Unwrap() error {
	return e.Err
}
