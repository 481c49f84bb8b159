package runpod

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a request rejected before any network call.
type ValidationError struct {
	Field  string
	Reason string
	Value  any
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("runpod: invalid %s %v: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("runpod: invalid %s: %s", e.Field, e.Reason)
}

// TransportError reports a failed HTTP exchange: either the call never
// completed (StatusCode is zero and Err is set) or the endpoint answered with
// a non-2xx status, in which case Body holds the response verbatim.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("runpod: %s: status %d", e.Op, e.StatusCode)
		if body := strings.TrimSpace(e.Body); body != "" {
			msg += ": " + body
		}
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
	return fmt.Sprintf("runpod: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError reports an application-level failure returned inside a
// successful HTTP response.
type RemoteError struct {
	JobID   JobID
	Message string
}

func (e *RemoteError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("runpod: job %s failed: %s", e.JobID, e.Message)
	}
	return "runpod: generation failed: " + e.Message
}

// TimeoutError reports that a job was still pending when the wait deadline
// passed.
type TimeoutError struct {
	JobID   JobID
	Elapsed time.Duration
	MaxWait time.Duration
}

func (e *TimeoutError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("runpod: job %s did not complete within %s (elapsed %s)",
			e.JobID, e.MaxWait, e.Elapsed.Round(time.Millisecond))
	}
	return fmt.Sprintf("runpod: generation did not complete within %s (elapsed %s)",
		e.MaxWait, e.Elapsed.Round(time.Millisecond))
}

// UnrecognizedStatusError reports a status string outside the known set. It
// is terminal.
type UnrecognizedStatusError struct {
	JobID  JobID
	Status string
}

func (e *UnrecognizedStatusError) Error() string {
	return fmt.Sprintf("runpod: job %s has unknown status %q", e.JobID, e.Status)
}
