package post

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams(t *testing.T) {
	p := Params{Date: "20240101", Prompt: "a kitten", Seed: "42", Site: "https://example.com"}
	assert.Equal(t, "20240101 - a kitten (seed 42)", p.Title())
	assert.Equal(t, "https://example.com/20240101.html", p.URL())
}

func TestNopPoster(t *testing.T) {
	assert.NoError(t, NopPoster{}.Post(context.Background(), Params{}))
}
