package prompt

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomize(t *testing.T) {
	prompts := []string{"a kitten in a teacup", "768x512|a kitten on a skateboard", " "}
	r := New(prompts, rand.New(rand.NewPCG(1, 2)))

	seen := map[string]bool{}
	for range 50 {
		params, err := r.Randomize(context.Background())
		require.NoError(t, err)
		seen[params.Prompt] = true
	}
	assert.Equal(t, map[string]bool{"a kitten in a teacup": true, "a kitten on a skateboard": true}, seen)
}

func TestRandomizeEmpty(t *testing.T) {
	_, err := New(nil, rand.New(rand.NewPCG(1, 2))).Randomize(context.Background())
	assert.ErrorIs(t, err, ErrNoPrompts)
}

func TestParse(t *testing.T) {
	params, err := Parse("768x512|a kitten on a skateboard")
	require.NoError(t, err)
	assert.Equal(t, image.Params{Prompt: "a kitten on a skateboard", Width: 768, Height: 512}, params)

	params, err = Parse("sunset over mountains")
	require.NoError(t, err)
	assert.Equal(t, image.Params{Prompt: "sunset over mountains"}, params)

	_, err = Parse("huge|a kitten")
	assert.Error(t, err)
}
