package image

import (
	"context"
	"fmt"
)

type Params struct {
	Prompt string `json:"prompt"`
	Seed   *int64 `json:"seed,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Steps  int    `json:"steps,omitempty"`
}

// Generator produces a PNG for the given params and reports the seed it
// used.
type Generator interface {
	Generate(context.Context, Params) ([]byte, string, error)
}

// ParseSize reads a WIDTHxHEIGHT string such as "1024x768".
func ParseSize(s string) (int, int, error) {
	var width, height int
	if _, err := fmt.Sscanf(s, "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return width, height, nil
}
