package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dmorgan81/zimagebot/internal/batch"
	"github.com/dmorgan81/zimagebot/internal/inject"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/dmorgan81/zimagebot/internal/runpod"
	"github.com/dmorgan81/zimagebot/internal/store"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const usage = `usage: zimage <command> [flags]

commands:
  generate  generate an image and wait for it
  submit    queue an image and print its job id
  fetch     fetch the image of a queued job
  health    probe the endpoint
  batch     generate one image per prompt argument

environment:
  RUNPOD_ENDPOINT_ID, RUNPOD_API_KEY, RUNPOD_BASE_URL, RUNPOD_MODE,
  RUNPOD_POLL_INTERVAL, RUNPOD_MAX_WAIT, RUNPOD_TIMEOUT, RUNPOD_RETRIES,
  OUTPUT_DIR, LOG_LEVEL
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "zimage:", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string, env func(string) (string, bool), stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	cfg, err := inject.LoadConfig(env)
	if err != nil {
		return err
	}
	ctx = log.NewContext(ctx, log.New(stderr, log.ParseLevel(cfg.LogLevel)))
	injector := inject.SetupLocal(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()

	client, err := do.Invoke[*runpod.Client](injector)
	if err != nil {
		return err
	}
	uploader := do.MustInvoke[store.Uploader](injector)

	cmd, args := args[0], args[1:]
	switch cmd {
	case "generate":
		return generate(ctx, client, uploader, cfg, args, stdout)
	case "submit":
		return submit(ctx, client, args, stdout)
	case "fetch":
		return fetch(ctx, client, uploader, args, stdout)
	case "health":
		return health(ctx, client, stdout)
	case "batch":
		return runBatch(ctx, do.MustInvoke[*batch.Runner](injector), uploader, cfg, args, stdout)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type requestFlags struct {
	fs     *flag.FlagSet
	height *int
	width  *int
	steps  *int
	seed   *int64
}

func newRequestFlags(name string) *requestFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &requestFlags{
		fs:     fs,
		height: fs.Int("height", runpod.DefaultHeight, "image height, a multiple of 8"),
		width:  fs.Int("width", runpod.DefaultWidth, "image width, a multiple of 8"),
		steps:  fs.Int("steps", runpod.DefaultSteps, "inference steps"),
		seed:   fs.Int64("seed", -1, "seed; negative picks one at random"),
	}
}

func (f *requestFlags) request(prompt string) runpod.Request {
	return runpod.Request{
		Prompt: prompt,
		Height: *f.height,
		Width:  *f.width,
		Steps:  *f.steps,
		Seed:   lo.Ternary(*f.seed >= 0, f.seed, nil),
	}
}

func generate(ctx context.Context, client *runpod.Client, uploader store.Uploader, cfg inject.Config, args []string, stdout io.Writer) error {
	f := newRequestFlags("generate")
	out := f.fs.String("o", "output.png", "output file name")
	async := f.fs.Bool("async", cfg.Mode == "async", "submit and poll instead of using the synchronous route")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	req := f.request(strings.Join(f.fs.Args(), " "))

	var (
		result *runpod.Result
		err    error
	)
	if *async {
		var id runpod.JobID
		if id, err = client.GenerateAsync(ctx, req); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "submitted", id)
		result, err = client.FetchResult(ctx, id, true, cfg.MaxWait)
	} else {
		result, err = client.GenerateSync(ctx, req, cfg.Timeout)
	}
	if err != nil {
		return err
	}
	return save(ctx, uploader, *out, result, stdout)
}

func submit(ctx context.Context, client *runpod.Client, args []string, stdout io.Writer) error {
	f := newRequestFlags("submit")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	id, err := client.GenerateAsync(ctx, f.request(strings.Join(f.fs.Args(), " ")))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func fetch(ctx context.Context, client *runpod.Client, uploader store.Uploader, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	out := fs.String("o", "", "output file name; defaults to <job id>.png")
	wait := fs.Bool("wait", true, "wait for the job to finish")
	maxWait := fs.Duration("max-wait", 0, "how long to wait; defaults to RUNPOD_MAX_WAIT")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("fetch takes exactly one job id")
	}
	id := runpod.JobID(fs.Arg(0))

	result, err := client.FetchResult(ctx, id, *wait, *maxWait)
	if err != nil {
		return err
	}
	if !result.Ready() {
		fmt.Fprintln(stdout, id, strings.ToLower(string(result.Status)))
		return nil
	}
	return save(ctx, uploader, lo.Ternary(*out != "", *out, string(id)+".png"), result, stdout)
}

func health(ctx context.Context, client *runpod.Client, stdout io.Writer) error {
	if !client.HealthCheck(ctx) {
		fmt.Fprintln(stdout, "unhealthy")
		return errUnhealthy
	}
	fmt.Fprintln(stdout, "healthy")
	return nil
}

func runBatch(ctx context.Context, runner *batch.Runner, uploader store.Uploader, cfg inject.Config, args []string, stdout io.Writer) error {
	f := newRequestFlags("batch")
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() == 0 {
		return errors.New("batch needs at least one prompt")
	}
	runner.MaxWait = cfg.MaxWait

	reqs := lo.Map(f.fs.Args(), func(p string, _ int) runpod.Request { return f.request(p) })
	run := uuid.NewString()[:8]

	var errs []error
	for i, o := range runner.Run(ctx, reqs) {
		if o.Err != nil {
			fmt.Fprintf(stdout, "%d\tfailed\t%v\n", i, o.Err)
			errs = append(errs, o.Err)
			continue
		}
		if err := save(ctx, uploader, fmt.Sprintf("batch_%s_%d.png", run, i), o.Result, stdout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func save(ctx context.Context, uploader store.Uploader, name string, result *runpod.Result, stdout io.Writer) error {
	if err := uploader.Upload(ctx, store.UploadParams{
		Name:        name,
		Data:        result.Image,
		ContentType: "image/png",
	}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\t%s\t%d bytes\n", result.JobID, name, len(result.Image))
	return nil
}

var errUnhealthy = errors.New("endpoint is unhealthy")

// exitCode lets scripts tell failures worth retrying from the rest.
func exitCode(err error) int {
	var (
		ve *runpod.ValidationError
		te *runpod.TimeoutError
	)
	switch {
	case errors.As(err, &ve):
		return 2
	case runpod.IsRetryable(err), errors.As(err, &te), errors.Is(err, errUnhealthy):
		return 3
	default:
		return 1
	}
}
