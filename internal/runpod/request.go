package runpod

import (
	"strings"
)

const (
	DefaultHeight = 1024
	DefaultWidth  = 1024
	DefaultSteps  = 9
)

// Request describes a single text-to-image generation. A nil Seed lets the
// worker pick one.
type Request struct {
	Prompt string `json:"prompt"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
	Steps  int    `json:"num_inference_steps"`
	Seed   *int64 `json:"seed"`
}

// NewRequest returns a request for prompt with the worker's default size and
// step count.
func NewRequest(prompt string) Request {
	return Request{
		Prompt: prompt,
		Height: DefaultHeight,
		Width:  DefaultWidth,
		Steps:  DefaultSteps,
	}
}

// Validate checks the request the same way the worker does, so that bad
// requests never leave the process. Zero values are rejected like any other
// non-positive value.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if r.Height <= 0 || r.Height%8 != 0 {
		return &ValidationError{Field: "height", Reason: "must be a positive multiple of 8", Value: r.Height}
	}
	if r.Width <= 0 || r.Width%8 != 0 {
		return &ValidationError{Field: "width", Reason: "must be a positive multiple of 8", Value: r.Width}
	}
	if r.Steps <= 0 {
		return &ValidationError{Field: "num_inference_steps", Reason: "must be positive", Value: r.Steps}
	}
	return nil
}

type runInput struct {
	Input Request `json:"input"`
}
