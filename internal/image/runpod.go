package image

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// RunPodGenerator generates images on a RunPod endpoint, either through the
// synchronous route or by submitting a job and polling it.
type RunPodGenerator struct {
	Client  *runpod.Client
	Mode    string
	Timeout time.Duration
}

func NewRunPodGenerator(i *do.Injector) (Generator, error) {
	mode := do.MustInvokeNamed[string](i, "runpod_mode")
	if mode != ModeSync && mode != ModeAsync {
		return nil, fmt.Errorf("unknown runpod mode %q", mode)
	}
	return &RunPodGenerator{
		Client:  do.MustInvoke[*runpod.Client](i),
		Mode:    mode,
		Timeout: do.MustInvokeNamed[time.Duration](i, "runpod_timeout"),
	}, nil
}

func (g *RunPodGenerator) Generate(ctx context.Context, params Params) ([]byte, string, error) {
	// pin a seed so the published image can be reproduced
	if params.Seed == nil {
		params.Seed = lo.ToPtr(rand.Int64N(1 << 32))
	}

	log := log.FromContextOrDiscard(ctx).WithGroup("runpod generator").With("params", params, "mode", g.Mode)
	log.Info("generating image via runpod")

	// unset size and steps take the worker defaults
	req := runpod.Request{
		Prompt: params.Prompt,
		Height: lo.Ternary(params.Height != 0, params.Height, runpod.DefaultHeight),
		Width:  lo.Ternary(params.Width != 0, params.Width, runpod.DefaultWidth),
		Steps:  lo.Ternary(params.Steps != 0, params.Steps, runpod.DefaultSteps),
		Seed:   params.Seed,
	}

	var (
		result *runpod.Result
		err    error
	)
	if g.Mode == ModeAsync {
		var id runpod.JobID
		if id, err = g.Client.GenerateAsync(ctx, req); err != nil {
			return nil, "", err
		}
		log.Info("submitted job", "id", id)
		result, err = g.Client.FetchResult(ctx, id, true, g.Timeout)
	} else {
		result, err = g.Client.GenerateSync(ctx, req, g.Timeout)
	}
	if err != nil {
		return nil, "", err
	}

	seed := lo.FromPtrOr(result.Seed, *params.Seed)
	log.Info("received image via runpod", "id", result.JobID, "seed", seed, "bytes", len(result.Image))
	return result.Image, strconv.FormatInt(seed, 10), nil
}
