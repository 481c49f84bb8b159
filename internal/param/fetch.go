package param

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("parameter not found")

// Fetcher reads configuration secrets by path.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}
