package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmorgan81/zimagebot/internal/feed"
	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/page"
	"github.com/dmorgan81/zimagebot/internal/post"
	"github.com/dmorgan81/zimagebot/internal/prompt"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Input struct {
	Date   string `json:"date,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Seed   string `json:"seed,omitempty"`
	Size   string `json:"size,omitempty"`
}

func (i Input) toImageParams() (image.Params, error) {
	params := image.Params{Prompt: i.Prompt}
	if i.Size != "" {
		w, h, err := image.ParseSize(i.Size)
		if err != nil {
			return image.Params{}, err
		}
		params.Width, params.Height = w, h
	}
	if i.Seed != "" {
		seed, err := strconv.ParseInt(i.Seed, 10, 64)
		if err != nil {
			return image.Params{}, fmt.Errorf("invalid seed %q: %w", i.Seed, err)
		}
		params.Seed = &seed
	}
	return params, nil
}

func (i Input) toPageParams() page.Params {
	return page.Params{
		Date:   i.Date,
		Image:  i.Date + ".png",
		Prompt: i.Prompt,
		Seed:   i.Seed,
		Size:   i.Size,
	}
}

func (i Input) toMetadata() map[string]string {
	return map[string]string{
		"date":   i.Date,
		"prompt": i.Prompt,
		"seed":   i.Seed,
		"size":   i.Size,
	}
}

type Output Input

type HealthChecker interface {
	HealthCheck(context.Context) bool
}

type FeedGenerator interface {
	Generate(context.Context) ([]byte, error)
}

type Handler struct {
	randomizer  *prompt.Randomizer
	health      HealthChecker
	generator   image.Generator
	uploader    store.Uploader
	invalidator store.Invalidator
	templator   *page.Templator
	feed        FeedGenerator
	poster      post.Poster
	site        string
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		randomizer:  do.MustInvoke[*prompt.Randomizer](i),
		health:      do.MustInvoke[*runpod.Client](i),
		generator:   do.MustInvoke[image.Generator](i),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		templator:   do.MustInvoke[*page.Templator](i),
		feed:        do.MustInvoke[*feed.Generator](i),
		poster:      do.MustInvoke[post.Poster](i),
		site:        do.MustInvokeNamed[string](i, "site_url"),
	}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("input", input)
	log.Info("handling lambda invocation")

	if input.Prompt == "" {
		params, err := h.randomizer.Randomize(ctx)
		if err != nil {
			return Output{}, err
		}
		input.Prompt = params.Prompt
		if input.Size == "" && params.Width != 0 && params.Height != 0 {
			input.Size = fmt.Sprintf("%dx%d", params.Width, params.Height)
		}
	}

	latest := false
	if input.Date == "" {
		input.Date = time.Now().UTC().Format("20060102")
		latest = true
	}

	params, err := input.toImageParams()
	if err != nil {
		return Output{}, err
	}
	if !h.health.HealthCheck(ctx) {
		log.Warn("endpoint reports unhealthy, generating anyway")
	}

	img, seed, err := h.generator.Generate(ctx, params)
	if err != nil {
		return Output{}, err
	}
	input.Seed = seed
	input.Size = lo.Ternary(input.Size != "", input.Size,
		fmt.Sprintf("%dx%d", runpod.DefaultWidth, runpod.DefaultHeight))

	html, err := h.templator.Template(ctx, input.toPageParams())
	if err != nil {
		return Output{}, err
	}

	metadata := input.toMetadata()
	uploads := []store.UploadParams{
		{
			Name:        input.Date + ".png",
			Data:        img,
			ContentType: "image/png",
			Metadata:    metadata,
		},
		{
			Name:        input.Date + ".html",
			Data:        html,
			ContentType: "text/html",
			Metadata:    metadata,
		},
	}
	if latest {
		uploads = append(uploads,
			store.UploadParams{
				Name:        "latest.png",
				Data:        img,
				ContentType: "image/png",
				Metadata:    metadata,
			},
			store.UploadParams{
				Name:        "latest.html",
				Data:        html,
				ContentType: "text/html",
				Metadata:    metadata,
			},
		)
	}
	for _, u := range uploads {
		if err := h.uploader.Upload(ctx, u); err != nil {
			return Output{}, err
		}
	}

	// the feed lists the bucket, so it is rebuilt after the image lands
	rss, err := h.feed.Generate(ctx)
	if err != nil {
		return Output{}, err
	}
	if err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        feed.Name,
		Data:        rss,
		ContentType: "application/rss+xml",
	}); err != nil {
		return Output{}, err
	}

	paths := []string{"/" + input.Date + ".png", "/" + input.Date + ".html", "/" + feed.Name}
	if latest {
		paths = append(paths, "/latest.png", "/latest.html")
	}
	if err := h.invalidator.Invalidate(ctx, paths); err != nil {
		return Output{}, err
	}

	if latest {
		if err := h.poster.Post(ctx, post.Params{
			Date:   input.Date,
			Prompt: input.Prompt,
			Seed:   input.Seed,
			Site:   h.site,
		}); err != nil {
			log.Error("posting failed", "error", err)
		}
	}

	return Output(input), nil
}
