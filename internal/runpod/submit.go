package runpod

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/lo"
)

// Submit queues a job and returns its id without waiting for it. The request
// is validated first; an invalid request makes no network call.
func (c *Client) Submit(ctx context.Context, req Request) (JobID, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	logger := log.FromContextOrDiscard(ctx).WithGroup("runpod").With("prompt", req.Prompt)
	logger.Info("submitting job")

	var state JobState
	if err := c.send(ctx, "submit", http.MethodPost, "/run", runInput{Input: req}, &state, true, time.Time{}); err != nil {
		return "", err
	}
	if hasError(state.Error) {
		return "", &RemoteError{JobID: state.ID, Message: orUnknown(errorMessage(state.Error))}
	}
	if strings.TrimSpace(string(state.ID)) == "" {
		return "", &RemoteError{Message: "no job id in response"}
	}

	logger.Info("job submitted", "id", state.ID, "status", state.RawStatus)
	return state.ID, nil
}

// SubmitAndAwait runs a job through the endpoint's synchronous mode: one call
// that returns the finished output. A zero timeout uses the client default.
func (c *Client) SubmitAndAwait(ctx context.Context, req Request, timeout time.Duration) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	timeout = lo.Ternary(timeout > 0, timeout, c.syncTimeout)

	logger := log.FromContextOrDiscard(ctx).WithGroup("runpod").With("prompt", req.Prompt, "timeout", timeout)
	logger.Info("running job synchronously")

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()
	var state JobState
	if err := c.send(callCtx, "runsync", http.MethodPost, "/runsync", runInput{Input: req}, &state, true, time.Time{}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Elapsed: c.now().Sub(start), MaxWait: timeout}
		}
		return nil, err
	}
	if hasError(state.Error) {
		return nil, &RemoteError{JobID: state.ID, Message: orUnknown(errorMessage(state.Error))}
	}

	state.Status = lo.Ternary(state.RawStatus == "", StatusCompleted, ParseStatus(state.RawStatus))
	switch {
	case state.Status == StatusFailed:
		return nil, &RemoteError{JobID: state.ID, Message: orUnknown(failureReason(&state))}
	case state.Status == StatusUnrecognized:
		return nil, &UnrecognizedStatusError{JobID: state.ID, Status: state.RawStatus}
	case state.Status.Pending() && state.Output == nil:
		// The endpoint gave up waiting; the job keeps running under its id.
		return nil, &TimeoutError{JobID: state.ID, Elapsed: c.now().Sub(start), MaxWait: timeout}
	}

	result, err := c.result(&state)
	if err != nil {
		return nil, err
	}
	logger.Info("job completed", "id", state.ID, "bytes", len(result.Image))
	return result, nil
}
