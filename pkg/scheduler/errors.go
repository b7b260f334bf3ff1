package scheduler

import "errors"

// ErrJobFailed wraps a panic recovered from a job function. Errors passed
// to the handler installed with WithErrorHandler match it with errors.Is.
var ErrJobFailed = errors.New("scheduler: job failed")
