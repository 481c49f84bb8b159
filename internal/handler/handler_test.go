package handler

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/page"
	"github.com/dmorgan81/zimagebot/internal/post"
	"github.com/dmorgan81/zimagebot/internal/prompt"
	"github.com/dmorgan81/zimagebot/internal/runpod/runpodtest"
	"github.com/dmorgan81/zimagebot/internal/store"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	params []image.Params
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, params image.Params) ([]byte, string, error) {
	g.params = append(g.params, params)
	if g.err != nil {
		return nil, "", g.err
	}
	return runpodtest.PNG, "42", nil
}

type fakeUploader struct{ uploads []store.UploadParams }

func (u *fakeUploader) Upload(_ context.Context, params store.UploadParams) error {
	u.uploads = append(u.uploads, params)
	return nil
}

type fakeInvalidator struct{ paths []string }

func (i *fakeInvalidator) Invalidate(_ context.Context, paths []string) error {
	i.paths = append(i.paths, paths...)
	return nil
}

type fakeFeed struct{}

func (fakeFeed) Generate(context.Context) ([]byte, error) { return []byte("<rss/>"), nil }

type fakePoster struct {
	posts []post.Params
	err   error
}

func (p *fakePoster) Post(_ context.Context, params post.Params) error {
	p.posts = append(p.posts, params)
	return p.err
}

type health bool

func (h health) HealthCheck(context.Context) bool { return bool(h) }

type fixture struct {
	handler     *Handler
	generator   *fakeGenerator
	uploader    *fakeUploader
	invalidator *fakeInvalidator
	poster      *fakePoster
}

func newFixture(prompts ...string) *fixture {
	f := &fixture{
		generator:   &fakeGenerator{},
		uploader:    &fakeUploader{},
		invalidator: &fakeInvalidator{},
		poster:      &fakePoster{},
	}
	f.handler = &Handler{
		randomizer:  prompt.New(prompts, rand.New(rand.NewPCG(1, 1))),
		health:      health(false),
		generator:   f.generator,
		uploader:    f.uploader,
		invalidator: f.invalidator,
		templator:   &page.Templator{},
		feed:        fakeFeed{},
		poster:      f.poster,
		site:        "https://example.com",
	}
	return f
}

func (f *fixture) names() []string {
	return lo.Map(f.uploader.uploads, func(u store.UploadParams, _ int) string { return u.Name })
}

func TestHandleLatest(t *testing.T) {
	f := newFixture("768x512|a kitten on a skateboard")

	out, err := f.handler.Handle(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "a kitten on a skateboard", out.Prompt)
	assert.Equal(t, "42", out.Seed)
	assert.Equal(t, "768x512", out.Size)
	assert.Len(t, out.Date, 8)

	require.Len(t, f.generator.params, 1)
	assert.Equal(t, image.Params{Prompt: "a kitten on a skateboard", Width: 768, Height: 512}, f.generator.params[0])

	assert.Equal(t, []string{out.Date + ".png", out.Date + ".html", "latest.png", "latest.html", "feed.xml"}, f.names())
	assert.Equal(t, runpodtest.PNG, f.uploader.uploads[0].Data)
	assert.Equal(t, map[string]string{"date": out.Date, "prompt": out.Prompt, "seed": "42", "size": "768x512"}, f.uploader.uploads[0].Metadata)
	assert.Contains(t, string(f.uploader.uploads[1].Data), "a kitten on a skateboard")

	assert.ElementsMatch(t, []string{"/" + out.Date + ".png", "/" + out.Date + ".html", "/feed.xml", "/latest.png", "/latest.html"}, f.invalidator.paths)
	require.Len(t, f.poster.posts, 1)
	assert.Equal(t, "https://example.com/"+out.Date+".html", f.poster.posts[0].URL())
}

func TestHandleBackfill(t *testing.T) {
	f := newFixture()

	out, err := f.handler.Handle(context.Background(), Input{Date: "20240101", Prompt: "a kitten", Seed: "7"})
	require.NoError(t, err)
	assert.Equal(t, "20240101", out.Date)
	assert.Equal(t, "1024x1024", out.Size)

	require.Len(t, f.generator.params, 1)
	assert.Equal(t, lo.ToPtr[int64](7), f.generator.params[0].Seed)

	assert.Equal(t, []string{"20240101.png", "20240101.html", "feed.xml"}, f.names())
	assert.Empty(t, f.poster.posts)
}

func TestHandleErrors(t *testing.T) {
	t.Run("no prompts", func(t *testing.T) {
		_, err := newFixture().handler.Handle(context.Background(), Input{})
		assert.ErrorIs(t, err, prompt.ErrNoPrompts)
	})

	t.Run("bad seed", func(t *testing.T) {
		f := newFixture()
		_, err := f.handler.Handle(context.Background(), Input{Prompt: "x", Seed: "lucky"})
		assert.Error(t, err)
		assert.Empty(t, f.generator.params)
	})

	t.Run("generation fails", func(t *testing.T) {
		f := newFixture("a kitten")
		f.generator.err = errors.New("boom")
		_, err := f.handler.Handle(context.Background(), Input{})
		assert.EqualError(t, err, "boom")
		assert.Empty(t, f.uploader.uploads)
		assert.Empty(t, f.invalidator.paths)
	})

	t.Run("posting failure is not fatal", func(t *testing.T) {
		f := newFixture("a kitten")
		f.poster.err = errors.New("reddit down")
		_, err := f.handler.Handle(context.Background(), Input{})
		assert.NoError(t, err)
	})
}

func TestImageKey(t *testing.T) {
	key, err := ImageKey("https://bucket-123.s3-object-lambda.us-east-1.amazonaws.com/20240101.html?X-Amz-Security-Token=abc")
	require.NoError(t, err)
	assert.Equal(t, "20240101.png", key)

	_, err = ImageKey("https://example.com/20240101.png")
	assert.Error(t, err)
}
