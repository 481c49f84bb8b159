package param

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/lo"
)

// EnvFetcher resolves parameters from the environment for local runs. The
// path is the name of the variable; FetchAll splits its value on newlines.
type EnvFetcher struct {
	Lookup func(string) (string, bool)
}

func (f *EnvFetcher) lookup(key string) (string, bool) {
	if f.Lookup != nil {
		return f.Lookup(key)
	}
	return os.LookupEnv(key)
}

func (f *EnvFetcher) Fetch(ctx context.Context, path string) (string, error) {
	log.FromContextOrDiscard(ctx).WithGroup("env").Debug("fetching single parameter", "path", path)
	value, ok := f.lookup(path)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return value, nil
}

func (f *EnvFetcher) FetchAll(ctx context.Context, path string) ([]string, error) {
	value, err := f.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	lines := lo.Map(strings.Split(value, "\n"), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(lines), nil
}
