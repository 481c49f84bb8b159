package runpod

import (
	"context"
	"net/http"
	"time"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/lo"
)

// Result is the outcome of a job. A result whose Status is still pending
// carries no image; it is what FetchResult returns for a job that is not
// ready yet when asked not to wait.
type Result struct {
	JobID  JobID
	Status Status
	Image  []byte
	Prompt string
	Seed   *int64
	Height int
	Width  int
}

// Ready reports whether the result holds a finished image.
func (r *Result) Ready() bool {
	return r != nil && r.Status == StatusCompleted
}

// GenerateSync generates an image and blocks until it is available.
func (c *Client) GenerateSync(ctx context.Context, req Request, timeout time.Duration) (*Result, error) {
	return c.SubmitAndAwait(ctx, req, timeout)
}

// GenerateAsync queues an image and returns the job id to fetch it with.
func (c *Client) GenerateAsync(ctx context.Context, req Request) (JobID, error) {
	return c.Submit(ctx, req)
}

// FetchResult returns the image of a finished job. With wait set it polls
// until the job is done or maxWait passes; without it a pending job yields a
// result that is not Ready, after a single status query.
func (c *Client) FetchResult(ctx context.Context, id JobID, wait bool, maxWait time.Duration) (*Result, error) {
	state, err := c.Await(ctx, id, AwaitOptions{Wait: wait, MaxWait: maxWait})
	if err != nil {
		return nil, err
	}
	if state.Status.Pending() {
		return &Result{JobID: id, Status: state.Status}, nil
	}
	return c.result(state)
}

// HealthCheck probes the endpoint's health route. Any failure, including a
// timeout or a non-2xx answer, reports false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	if err := c.call(ctx, "health", http.MethodGet, "/health", nil, nil); err != nil {
		log.FromContextOrDiscard(ctx).WithGroup("runpod").Warn("health check failed", "error", err)
		return false
	}
	return true
}

func (c *Client) result(state *JobState) (*Result, error) {
	data, err := DecodeImage(state.Output)
	if err != nil {
		if re, ok := err.(*RemoteError); ok {
			re.JobID = state.ID
		}
		return nil, err
	}
	if c.requirePNG && !IsPNG(data) {
		return nil, &RemoteError{JobID: state.ID, Message: "image is not a PNG"}
	}

	out := state.Output
	return &Result{
		JobID:  state.ID,
		Status: lo.Ternary(state.Status == "", StatusCompleted, state.Status),
		Image:  data,
		Prompt: out.Prompt,
		Seed:   out.Seed,
		Height: out.Height,
		Width:  out.Width,
	}, nil
}
