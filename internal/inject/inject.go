package inject

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/zimagebot/internal/batch"
	"github.com/dmorgan81/zimagebot/internal/feed"
	"github.com/dmorgan81/zimagebot/internal/handler"
	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/page"
	"github.com/dmorgan81/zimagebot/internal/param"
	"github.com/dmorgan81/zimagebot/internal/post"
	"github.com/dmorgan81/zimagebot/internal/prompt"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/store"
	"github.com/samber/do"
)

// Setup wires the Lambda: secrets come from Parameter Store, images go to S3.
func Setup(ctx context.Context, cfg Config) *do.Injector {
	injector := newInjector(ctx)
	provideRunPod(ctx, injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[store.Uploader](injector, store.NewS3Uploader)
	do.Provide[store.Invalidator](injector, store.NewCloudFrontInvalidator)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*feed.Generator](injector, feed.NewS3Generator)
	do.Provide[post.Poster](injector, post.NewRedditPoster)

	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		return do.MustInvoke[param.Fetcher](i).FetchAll(ctx, cfg.PromptsParam)
	})
	provideFetched(ctx, injector, "reddit_client_id", cfg.RedditParams.ClientID)
	provideFetched(ctx, injector, "reddit_client_secret", cfg.RedditParams.ClientSecret)
	provideFetched(ctx, injector, "reddit_username", cfg.RedditParams.Username)
	provideFetched(ctx, injector, "reddit_password", cfg.RedditParams.Password)
	do.ProvideNamedValue[string](injector, "bucket", cfg.Bucket)
	do.ProvideNamedValue[string](injector, "distribution", cfg.Distribution)
	do.ProvideNamedValue[string](injector, "subreddit", cfg.Subreddit)
	do.ProvideNamedValue[string](injector, "site_url", cfg.SiteURL)

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*handler.HtmlHandler](injector, handler.NewHtmlHandler)

	return injector
}

// SetupLocal wires the command line tool: secrets come from the environment
// and images are written to the output directory.
func SetupLocal(ctx context.Context, cfg Config) *do.Injector {
	injector := newInjector(ctx)
	provideRunPod(ctx, injector, cfg)

	do.ProvideValue[param.Fetcher](injector, &param.EnvFetcher{})
	do.ProvideValue[store.Uploader](injector, &store.FileUploader{Dir: cfg.OutputDir})

	return injector
}

func newInjector(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)
	return do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
}

func provideRunPod(ctx context.Context, injector *do.Injector, cfg Config) {
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: cfg.Timeout + 10*time.Second})

	do.ProvideNamed[string](injector, "runpod_api_key", func(i *do.Injector) (string, error) {
		if cfg.APIKey != "" {
			return cfg.APIKey, nil
		}
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.APIKeyParam)
	})
	do.Provide[*runpod.Client](injector, func(i *do.Injector) (*runpod.Client, error) {
		return runpod.New(cfg.EndpointID, do.MustInvokeNamed[string](i, "runpod_api_key"),
			runpod.WithBaseURL(cfg.BaseURL),
			runpod.WithHTTPClient(do.MustInvoke[*http.Client](i)),
			runpod.WithPollInterval(cfg.PollInterval),
			runpod.WithMaxWait(cfg.MaxWait),
			runpod.WithSyncTimeout(cfg.Timeout),
			runpod.WithPNGCheck(true),
			runpod.WithRetry(cfg.RetryPolicy()),
		), nil
	})

	do.ProvideNamedValue[string](injector, "runpod_mode", cfg.Mode)
	do.ProvideNamedValue[time.Duration](injector, "runpod_timeout", cfg.Timeout)
	do.ProvideNamedValue[float64](injector, "submit_rate", cfg.SubmitRate)
	do.ProvideNamedValue[int](injector, "fetch_concurrency", cfg.FetchConcurrency)
	do.Provide[image.Generator](injector, image.NewRunPodGenerator)
	do.Provide[*batch.Runner](injector, batch.NewRunner)
}

// provideFetched registers a named secret resolved from path, or an empty
// string when no path is configured.
func provideFetched(ctx context.Context, injector *do.Injector, name, path string) {
	do.ProvideNamed[string](injector, name, func(i *do.Injector) (string, error) {
		if path == "" {
			return "", nil
		}
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, path)
	})
}
