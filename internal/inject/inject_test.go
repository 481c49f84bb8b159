package inject

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dmorgan81/zimagebot/internal/batch"
	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/runpod/runpodtest"
	"github.com/dmorgan81/zimagebot/internal/store"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(lookup(map[string]string{
		"RUNPOD_ENDPOINT_ID": "abc123",
		"RUNPOD_API_KEY":     "key",
	}))
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.EndpointID)
	assert.Equal(t, image.ModeAsync, cfg.Mode)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.MaxWait)
	assert.Zero(t, cfg.Retries)
	assert.False(t, cfg.RetrySubmissions)
	assert.Equal(t, 2.0, cfg.SubmitRate)
	assert.Equal(t, 4, cfg.FetchConcurrency)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(lookup(map[string]string{
		"RUNPOD_BASE_URL":          "http://localhost:8000",
		"RUNPOD_API_KEY_PARAM":     "/zimagebot/runpod",
		"RUNPOD_MODE":              "sync",
		"RUNPOD_POLL_INTERVAL":     "250ms",
		"RUNPOD_RETRIES":           "3",
		"RUNPOD_RETRY_SUBMISSIONS": "true",
	}))
	require.NoError(t, err)
	assert.Equal(t, image.ModeSync, cfg.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, uint(3), cfg.Retries)
	assert.True(t, cfg.RetrySubmissions)
	assert.Equal(t, runpod.RetryPolicy{MaxTries: 4, Interval: 250 * time.Millisecond, Submissions: true}, cfg.RetryPolicy())
}

func TestRetryPolicy(t *testing.T) {
	assert.Equal(t, runpod.RetryPolicy{}, Config{PollInterval: time.Second}.RetryPolicy())
	assert.Equal(t, runpod.RetryPolicy{MaxTries: 2, Interval: time.Second}, Config{Retries: 1, PollInterval: time.Second}.RetryPolicy())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(lookup(map[string]string{
		"RUNPOD_MODE":          "eventually",
		"RUNPOD_POLL_INTERVAL": "soon",
	}))
	require.Error(t, err)
	for _, msg := range []string{"RUNPOD_ENDPOINT_ID", "RUNPOD_API_KEY", "RUNPOD_MODE", "RUNPOD_POLL_INTERVAL"} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestSetupLocal(t *testing.T) {
	endpoint := runpodtest.New(t)
	cfg, err := LoadConfig(lookup(map[string]string{
		"RUNPOD_BASE_URL": endpoint.URL,
		"RUNPOD_API_KEY":  runpodtest.APIKey,
		"RUNPOD_MODE":     "sync",
		"OUTPUT_DIR":      t.TempDir(),
	}))
	require.NoError(t, err)

	injector := SetupLocal(context.Background(), cfg)
	client := do.MustInvoke[*runpod.Client](injector)
	assert.True(t, client.HealthCheck(context.Background()))

	data, seed, err := do.MustInvoke[image.Generator](injector).Generate(context.Background(), image.Params{Prompt: "kitten"})
	require.NoError(t, err)
	assert.Equal(t, runpodtest.PNG, data)
	assert.NotEmpty(t, seed)

	assert.NotNil(t, do.MustInvoke[*batch.Runner](injector))
	assert.IsType(t, &store.FileUploader{}, do.MustInvoke[store.Uploader](injector))
}

func TestSetupLocalSingleRetry(t *testing.T) {
	endpoint := runpodtest.New(t)
	endpoint.Script("job-1",
		runpodtest.Reply{Code: http.StatusBadGateway, Body: "bad gateway"},
		runpodtest.Completed("job-1", runpodtest.PNG, runpod.NewRequest("kitten")),
	)
	cfg, err := LoadConfig(lookup(map[string]string{
		"RUNPOD_BASE_URL":      endpoint.URL,
		"RUNPOD_API_KEY":       runpodtest.APIKey,
		"RUNPOD_POLL_INTERVAL": "5ms",
		"RUNPOD_RETRIES":       "1",
	}))
	require.NoError(t, err)

	client := do.MustInvoke[*runpod.Client](SetupLocal(context.Background(), cfg))
	result, err := client.FetchResult(context.Background(), "job-1", false, 0)
	require.NoError(t, err)
	assert.Equal(t, runpodtest.PNG, result.Image)
	assert.Equal(t, 2, endpoint.Count("/status/"))
}
