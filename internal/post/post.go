package post

import (
	"context"
	"fmt"

	"github.com/dmorgan81/zimagebot/internal/log"
)

type Params struct {
	Date   string
	Prompt string
	Seed   string
	Site   string
}

// Title is the headline used when sharing the image of the day.
func (p Params) Title() string {
	return fmt.Sprintf("%s - %s (seed %s)", p.Date, p.Prompt, p.Seed)
}

// URL is the page the post links to.
func (p Params) URL() string {
	return fmt.Sprintf("%s/%s.html", p.Site, p.Date)
}

type Poster interface {
	Post(context.Context, Params) error
}

// NopPoster is used when no subreddit is configured.
type NopPoster struct{}

func (NopPoster) Post(ctx context.Context, params Params) error {
	log.FromContextOrDiscard(ctx).WithGroup("poster").Debug("posting disabled", "url", params.URL())
	return nil
}
