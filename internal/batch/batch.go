package batch

import (
	"context"
	"time"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Outcome is what happened to one request of a batch.
type Outcome struct {
	Request runpod.Request
	JobID   runpod.JobID
	Result  *runpod.Result
	Err     error
}

// Runner submits many prompts and collects their images. Every job is
// independent: a failed submission or fetch is recorded on its outcome and
// the rest of the batch carries on.
type Runner struct {
	Client *runpod.Client
	// Limiter paces submissions; nil submits as fast as possible.
	Limiter *rate.Limiter
	// Concurrency caps the fetches in flight; zero fetches all at once.
	Concurrency int
	MaxWait     time.Duration
}

func NewRunner(i *do.Injector) (*Runner, error) {
	return &Runner{
		Client:      do.MustInvoke[*runpod.Client](i),
		Limiter:     rate.NewLimiter(rate.Limit(do.MustInvokeNamed[float64](i, "submit_rate")), 1),
		Concurrency: do.MustInvokeNamed[int](i, "fetch_concurrency"),
	}, nil
}

func (r *Runner) Run(ctx context.Context, reqs []runpod.Request) []Outcome {
	logger := log.FromContextOrDiscard(ctx).WithGroup("batch").With("size", len(reqs))
	logger.Info("submitting batch")

	outcomes := lo.Map(reqs, func(req runpod.Request, _ int) Outcome {
		return Outcome{Request: req}
	})
	for i := range outcomes {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				outcomes[i].Err = err
				continue
			}
		}
		outcomes[i].JobID, outcomes[i].Err = r.Client.GenerateAsync(ctx, outcomes[i].Request)
		if outcomes[i].Err != nil {
			logger.Warn("submission failed", "index", i, "error", outcomes[i].Err)
		}
	}

	var group errgroup.Group
	group.SetLimit(lo.Ternary(r.Concurrency > 0, r.Concurrency, max(len(reqs), 1)))
	for i := range outcomes {
		if outcomes[i].Err != nil {
			continue
		}
		group.Go(func() error {
			o := &outcomes[i]
			o.Result, o.Err = r.Client.FetchResult(ctx, o.JobID, true, r.MaxWait)
			if o.Err != nil {
				logger.Warn("job failed", "id", o.JobID, "error", o.Err)
			}
			return nil
		})
	}
	_ = group.Wait()

	failed := lo.CountBy(outcomes, func(o Outcome) bool { return o.Err != nil })
	logger.Info("batch finished", "failed", failed)
	return outcomes
}
