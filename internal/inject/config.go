package inject

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/runpod"
)

// Config is read from the environment of the Lambda or the shell.
type Config struct {
	EndpointID   string
	APIKey       string
	APIKeyParam  string
	BaseURL      string
	Mode         string
	PollInterval time.Duration
	MaxWait      time.Duration
	Timeout      time.Duration
	// Retries counts the attempts made after the first one fails.
	Retries          uint
	RetrySubmissions bool
	SubmitRate       float64
	FetchConcurrency int

	PromptsParam string
	Bucket       string
	Distribution string
	SiteURL      string
	Subreddit    string
	RedditParams RedditParams
	LogLevel     string
	OutputDir    string
}

type RedditParams struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// LoadConfig reads the configuration through lookup, which is os.LookupEnv
// outside of tests.
func LoadConfig(lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		v := env(key, "")
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	number := func(key string, def int) int {
		v := env(key, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}

	cfg := Config{
		EndpointID:       env("RUNPOD_ENDPOINT_ID", ""),
		APIKey:           env("RUNPOD_API_KEY", ""),
		APIKeyParam:      env("RUNPOD_API_KEY_PARAM", ""),
		BaseURL:          env("RUNPOD_BASE_URL", ""),
		Mode:             env("RUNPOD_MODE", image.ModeAsync),
		PollInterval:     duration("RUNPOD_POLL_INTERVAL", time.Second),
		MaxWait:          duration("RUNPOD_MAX_WAIT", 2*time.Minute),
		Timeout:          duration("RUNPOD_TIMEOUT", 2*time.Minute),
		FetchConcurrency: number("RUNPOD_FETCH_CONCURRENCY", 4),
		PromptsParam:     env("PROMPTS_PARAM", ""),
		Bucket:           env("BUCKET", ""),
		Distribution:     env("DISTRIBUTION", ""),
		SiteURL:          env("SITE_URL", "https://zimagebot.io"),
		Subreddit:        env("SUBREDDIT", ""),
		RedditParams: RedditParams{
			ClientID:     env("REDDIT_CLIENT_ID_PARAM", ""),
			ClientSecret: env("REDDIT_CLIENT_SECRET_PARAM", ""),
			Username:     env("REDDIT_USERNAME_PARAM", ""),
			Password:     env("REDDIT_PASSWORD_PARAM", ""),
		},
		LogLevel:  env("LOG_LEVEL", "info"),
		OutputDir: env("OUTPUT_DIR", "."),
	}

	if retries := number("RUNPOD_RETRIES", 0); retries > 0 {
		cfg.Retries = uint(retries)
	}
	cfg.RetrySubmissions = env("RUNPOD_RETRY_SUBMISSIONS", "") == "true"

	rate, err := strconv.ParseFloat(env("RUNPOD_SUBMIT_RATE", "2"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("RUNPOD_SUBMIT_RATE: %w", err))
	}
	cfg.SubmitRate = rate

	if cfg.EndpointID == "" && cfg.BaseURL == "" {
		errs = append(errs, errors.New("RUNPOD_ENDPOINT_ID or RUNPOD_BASE_URL is required"))
	}
	if cfg.APIKey == "" && cfg.APIKeyParam == "" {
		errs = append(errs, errors.New("RUNPOD_API_KEY or RUNPOD_API_KEY_PARAM is required"))
	}
	if cfg.Mode != image.ModeSync && cfg.Mode != image.ModeAsync {
		errs = append(errs, fmt.Errorf("RUNPOD_MODE: unknown mode %q", cfg.Mode))
	}
	return cfg, errors.Join(errs...)
}

// RetryPolicy turns RUNPOD_RETRIES into the client policy, whose MaxTries
// includes the first attempt.
func (c Config) RetryPolicy() runpod.RetryPolicy {
	if c.Retries == 0 {
		return runpod.RetryPolicy{}
	}
	return runpod.RetryPolicy{
		MaxTries:    c.Retries + 1,
		Interval:    c.PollInterval,
		Submissions: c.RetrySubmissions,
	}
}
