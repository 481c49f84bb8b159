package post

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/vartanbeno/go-reddit/v2/reddit"
)

type RedditPoster struct {
	client    *reddit.Client
	subreddit string
}

func NewRedditPoster(i *do.Injector) (Poster, error) {
	subreddit := do.MustInvokeNamed[string](i, "subreddit")
	if subreddit == "" {
		return NopPoster{}, nil
	}
	creds := reddit.Credentials{
		ID:       do.MustInvokeNamed[string](i, "reddit_client_id"),
		Secret:   do.MustInvokeNamed[string](i, "reddit_client_secret"),
		Username: do.MustInvokeNamed[string](i, "reddit_username"),
		Password: do.MustInvokeNamed[string](i, "reddit_password"),
	}

	revision := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		revision = lo.FindOrElse(info.Settings, debug.BuildSetting{Value: "unknown"}, func(s debug.BuildSetting) bool {
			return s.Key == "vcs.revision"
		}).Value
	}

	client, err := reddit.NewClient(creds,
		reddit.WithUserAgent(fmt.Sprintf("web:zimagebot:%s (by /u/%s)", revision, creds.Username)))
	if err != nil {
		return nil, err
	}

	return &RedditPoster{client, subreddit}, nil
}

func (p *RedditPoster) Post(ctx context.Context, params Params) error {
	log.FromContextOrDiscard(ctx).WithGroup("reddit").Info("posting to reddit", "subreddit", p.subreddit, "url", params.URL())
	_, _, err := p.client.Post.SubmitLink(ctx, reddit.SubmitLinkRequest{
		Subreddit:   p.subreddit,
		Title:       params.Title(),
		URL:         params.URL(),
		SendReplies: lo.ToPtr(false),
	})
	if err != nil {
		return fmt.Errorf("submit to r/%s: %w", p.subreddit, err)
	}
	return nil
}
