package runpod

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL       = "https://api.runpod.ai/v2"
	defaultPollInterval  = time.Second
	defaultMaxWait       = 120 * time.Second
	defaultSyncTimeout   = 120 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// Client talks to a single RunPod serverless endpoint. It holds no per-job
// state and is safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	pollInterval  time.Duration
	maxWait       time.Duration
	syncTimeout   time.Duration
	healthTimeout time.Duration
	retry         RetryPolicy
	requirePNG    bool

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type Option func(*Client)

// New creates a client for the endpoint with the given id.
func New(endpointID, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:       defaultBaseURL + "/" + strings.TrimSpace(endpointID),
		apiKey:        strings.TrimSpace(apiKey),
		httpClient:    &http.Client{},
		pollInterval:  defaultPollInterval,
		maxWait:       defaultMaxWait,
		syncTimeout:   defaultSyncTimeout,
		healthTimeout: defaultHealthTimeout,
		now:           time.Now,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// WithBaseURL overrides the endpoint URL, endpoint id included.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval sets the constant delay between status queries.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxWait sets the default deadline used when FetchResult is given none.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxWait = d
		}
	}
}

// WithSyncTimeout sets the default timeout used by GenerateSync.
func WithSyncTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.syncTimeout = d
		}
	}
}

func WithHealthTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.healthTimeout = d
		}
	}
}

// WithRetry enables retries of transport failures. Retries are off unless
// this option is given.
func WithRetry(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithPNGCheck makes decoding reject images that lack the PNG signature.
func WithPNGCheck(enabled bool) Option {
	return func(c *Client) {
		c.requirePNG = enabled
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
