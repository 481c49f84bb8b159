package runpod

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/lo"
)

// AwaitOptions controls Await. Zero durations use the client defaults.
type AwaitOptions struct {
	// Wait keeps polling while the job is pending. Without it Await returns
	// after the first status query.
	Wait     bool
	Interval time.Duration
	MaxWait  time.Duration
}

// CheckStatus queries the status of a job once.
func (c *Client) CheckStatus(ctx context.Context, id JobID) (*JobState, error) {
	return c.checkStatus(ctx, id, time.Time{})
}

func (c *Client) checkStatus(ctx context.Context, id JobID, deadline time.Time) (*JobState, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, &ValidationError{Field: "job id", Reason: "must not be empty"}
	}

	var state JobState
	path := "/status/" + url.PathEscape(string(id))
	if err := c.send(ctx, "status", http.MethodGet, path, nil, &state, false, deadline); err != nil {
		return nil, err
	}
	if state.ID == "" {
		state.ID = id
	}
	state.Status = ParseStatus(state.RawStatus)
	return &state, nil
}

// Await drives a job towards a terminal status.
//
// A COMPLETED job is returned as is. FAILED becomes a *RemoteError carrying
// the reported reason and an unknown status becomes an
// *UnrecognizedStatusError. While the job is pending Await either returns the
// pending state straight away (Wait false) or sleeps for the poll interval and
// queries again. The deadline is checked after every sleep, and retries of a
// failed query stop at it, so a query is never made once MaxWait has passed.
func (c *Client) Await(ctx context.Context, id JobID, opts AwaitOptions) (*JobState, error) {
	interval := lo.Ternary(opts.Interval > 0, opts.Interval, c.pollInterval)
	maxWait := lo.Ternary(opts.MaxWait > 0, opts.MaxWait, c.maxWait)

	logger := log.FromContextOrDiscard(ctx).WithGroup("runpod").With("id", id)

	start := c.now()
	deadline := start.Add(maxWait)
	for {
		state, err := c.checkStatus(ctx, id, deadline)
		if err != nil {
			return nil, err
		}
		logger.Debug("polled job", "status", state.RawStatus)

		switch state.Status {
		case StatusCompleted:
			return state, nil
		case StatusFailed:
			return nil, &RemoteError{JobID: id, Message: orUnknown(failureReason(state))}
		case StatusQueued, StatusRunning:
			if !opts.Wait {
				return state, nil
			}
		default:
			return nil, &UnrecognizedStatusError{JobID: id, Status: state.RawStatus}
		}

		if err := c.sleep(ctx, interval); err != nil {
			return nil, fmt.Errorf("runpod: waiting for job %s: %w", id, err)
		}
		if now := c.now(); now.After(deadline) {
			logger.Warn("job timed out", "status", state.RawStatus, "elapsed", now.Sub(start))
			return nil, &TimeoutError{JobID: id, Elapsed: now.Sub(start), MaxWait: maxWait}
		}
	}
}

// failureReason prefers the top-level error of a failed job and falls back to
// the one inside its output.
func failureReason(state *JobState) string {
	if msg := errorMessage(state.Error); msg != "" {
		return msg
	}
	if state.Output != nil {
		return errorMessage(state.Output.Error)
	}
	return ""
}
