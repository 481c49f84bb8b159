package runpod

import (
	"bytes"
	"encoding/json"
	"strings"
)

// JobID identifies a job accepted by the endpoint. It is all that is needed
// to fetch the job's result later.
type JobID string

type Status string

const (
	StatusQueued       Status = "IN_QUEUE"
	StatusRunning      Status = "IN_PROGRESS"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusUnrecognized Status = "UNRECOGNIZED"
)

// ParseStatus maps a status string reported by the endpoint onto the known
// set. Anything else is StatusUnrecognized.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return st
	default:
		return StatusUnrecognized
	}
}

func (s Status) Pending() bool {
	return s == StatusQueued || s == StatusRunning
}

func (s Status) Terminal() bool {
	return !s.Pending()
}

// Output is the payload produced by the worker.
type Output struct {
	Image     string          `json:"image,omitempty"`
	Format    string          `json:"format,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	Seed      *int64          `json:"seed,omitempty"`
	Height    int             `json:"height,omitempty"`
	Width     int             `json:"width,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

type output Output

// UnmarshalJSON accepts the usual object as well as a bare value, which a
// crashed worker reports in place of its output. The value becomes the error.
func (o *Output) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] != '{' {
		*o = Output{Error: append(json.RawMessage(nil), trimmed...)}
		return nil
	}
	return json.Unmarshal(data, (*output)(o))
}

// JobState is a single observation of a job.
type JobState struct {
	ID            JobID           `json:"id"`
	RawStatus     string          `json:"status"`
	Status        Status          `json:"-"`
	Output        *Output         `json:"output,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
	DelayTime     int64           `json:"delayTime,omitempty"`
	ExecutionTime int64           `json:"executionTime,omitempty"`
}

// errorMessage renders an "error" field, which the worker may send as a
// string or as an arbitrary JSON value. Absent and null yield "".
func errorMessage(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

func hasError(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}
