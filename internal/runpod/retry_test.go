package runpod_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/runpod/runpodtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var busy = runpodtest.Reply{Code: http.StatusServiceUnavailable, Body: "busy"}

func TestNoRetryByDefault(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1", busy, runpodtest.Completed("job-1", runpodtest.PNG, runpod.Request{Prompt: "x"}))

	_, err := endpoint.Client().FetchResult(context.Background(), "job-1", true, time.Second)
	var te *runpod.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, 1, endpoint.Count("/status/"))
}

func TestRetryStatus(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1", busy, busy, runpodtest.Completed("job-1", runpodtest.PNG, runpod.Request{Prompt: "x"}))
	client := endpoint.Client(runpod.WithRetry(runpod.RetryPolicy{MaxTries: 3, Interval: time.Millisecond}))

	result, err := client.FetchResult(context.Background(), "job-1", true, time.Second)
	require.NoError(t, err)
	assert.Equal(t, runpodtest.PNG, result.Image)
	assert.Equal(t, 3, endpoint.Count("/status/"))
}

func TestRetryGivesUp(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1", busy)
	client := endpoint.Client(runpod.WithRetry(runpod.RetryPolicy{MaxTries: 2, Interval: time.Millisecond}))

	_, err := client.CheckStatus(context.Background(), "job-1")
	var te *runpod.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, endpoint.Count("/status/"))
}

func TestRetryStopsAtDeadline(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1", busy)
	client := endpoint.Client(runpod.WithRetry(runpod.RetryPolicy{MaxTries: 10, Interval: 50 * time.Millisecond}))

	start := time.Now()
	_, err := client.FetchResult(context.Background(), "job-1", true, 100*time.Millisecond)
	elapsed := time.Since(start)

	var te *runpod.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.LessOrEqual(t, endpoint.Count("/status/"), 2)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestRetrySkipsSubmissionsUnlessAsked(t *testing.T) {
	endpoint := runpodtest.New(t)
	calls := 0
	endpoint.Run = func(id string, _ runpod.Request) runpodtest.Reply {
		calls++
		if calls == 1 {
			return busy
		}
		return runpodtest.Reply{Body: map[string]any{"id": id}}
	}

	policy := runpod.RetryPolicy{MaxTries: 3, Interval: time.Millisecond}
	_, err := endpoint.Client(runpod.WithRetry(policy)).Submit(context.Background(), runpod.NewRequest("x"))
	var te *runpod.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 1, endpoint.Count("/run"))

	policy.Submissions = true
	id, err := endpoint.Client(runpod.WithRetry(policy)).Submit(context.Background(), runpod.NewRequest("x"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, endpoint.Count("/run"))
}

func TestRetryIgnoresRemoteErrors(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1", runpodtest.Failed("job-1", "nope"))
	client := endpoint.Client(runpod.WithRetry(runpod.RetryPolicy{MaxTries: 5, Interval: time.Millisecond}))

	_, err := client.FetchResult(context.Background(), "job-1", true, time.Second)
	var re *runpod.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, endpoint.Count("/status/"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, runpod.IsRetryable(&runpod.TransportError{Op: "status", StatusCode: 502}))
	assert.False(t, runpod.IsRetryable(&runpod.TransportError{Op: "status", Err: context.Canceled}))
	assert.False(t, runpod.IsRetryable(&runpod.RemoteError{Message: "x"}))
	assert.False(t, runpod.IsRetryable(&runpod.ValidationError{Field: "prompt"}))
}
