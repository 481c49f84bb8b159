package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const Name = "feed.xml"

// Bucket is the part of the S3 client the feed reads from.
type Bucket interface {
	s3.ListObjectsV2APIClient
	s3.HeadObjectAPIClient
}

// Generator builds the RSS feed from the metadata of the images in the
// bucket.
type Generator struct {
	client  Bucket
	bucket  string
	site    string
	workers int
}

func NewS3Generator(i *do.Injector) (*Generator, error) {
	return &Generator{
		client:  do.MustInvoke[*s3.Client](i),
		bucket:  do.MustInvokeNamed[string](i, "bucket"),
		site:    do.MustInvokeNamed[string](i, "site_url"),
		workers: 8,
	}, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("bucket", g.bucket)
	log.Info("generating rss feed")

	var (
		mu    sync.Mutex
		items []*feeds.Item
	)

	pager := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: &g.bucket,
	})

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			_ = group.Wait()
			return nil, err
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			return IsDailyImage(*o.Key)
		})

		for _, obj := range objs {
			group.Go(func() error {
				out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: &g.bucket,
					Key:    obj.Key,
				})
				if err != nil {
					return err
				}

				item := Item(g.site, out.Metadata, lo.FromPtr(out.LastModified))
				mu.Lock()
				items = append(items, item)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	log.Info("collected feed items", "count", len(items))
	return Render(g.site, items)
}

// IsDailyImage reports whether key names a dated image rather than the
// latest alias.
func IsDailyImage(key string) bool {
	return strings.HasSuffix(key, ".png") && !strings.HasPrefix(key, "latest")
}

// Item builds a feed entry from the metadata stored with an image.
func Item(site string, meta map[string]string, updated time.Time) *feeds.Item {
	return &feeds.Item{
		Title:       fmt.Sprintf("%s - %s", meta["date"], meta["prompt"]),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/%s.html", site, meta["date"])},
		Description: fmt.Sprintf("seed %s, %s", meta["seed"], meta["size"]),
		Id:          fmt.Sprintf("%s/%s.png", site, meta["date"]),
		Updated:     updated,
	}
}

// Render sorts items newest first and encodes them as RSS.
func Render(site string, items []*feeds.Item) ([]byte, error) {
	feed := feeds.Feed{
		Title:       "zimagebot",
		Description: "Daily turbo-generated images",
		Link:        &feeds.Link{Href: site},
		Updated:     time.Now(),
		Items:       items,
	}
	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}
