package schedule

import "errors"

// ErrValidation marks a job rejected before persistence: missing media for a
// video platform, an empty or over-limit caption, an unknown platform. These
// never reach the dispatcher.
var ErrValidation = errors.New("validation error")

// ErrNotFound marks an operation against a job id that does not exist.
var ErrNotFound = errors.New("job not found")

// ErrNotPending marks a mutation that only applies to pending jobs
// (reschedule, cancel) attempted against a job in another state.
var ErrNotPending = errors.New("job is not pending")
