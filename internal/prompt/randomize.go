package prompt

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/dmorgan81/zimagebot/internal/image"
	"github.com/dmorgan81/zimagebot/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var ErrNoPrompts = errors.New("no prompts configured")

// Randomizer picks the prompt of the day. Each entry is either a bare prompt
// or "WIDTHxHEIGHT|prompt".
type Randomizer struct {
	prompts []string
	rnd     *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))), nil
}

func New(prompts []string, rnd *rand.Rand) *Randomizer {
	prompts = lo.Filter(prompts, func(p string, _ int) bool {
		return strings.TrimSpace(p) != ""
	})
	return &Randomizer{prompts, rnd}
}

func (r *Randomizer) Randomize(ctx context.Context) (image.Params, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("randomizer")
	log.Info("getting random prompt", "choices", len(r.prompts))
	if len(r.prompts) == 0 {
		return image.Params{}, ErrNoPrompts
	}
	return Parse(r.prompts[r.rnd.IntN(len(r.prompts))])
}

// Parse turns a prompt entry into generation params.
func Parse(entry string) (image.Params, error) {
	size, text, found := strings.Cut(entry, "|")
	if !found {
		return image.Params{Prompt: strings.TrimSpace(entry)}, nil
	}
	width, height, err := image.ParseSize(strings.TrimSpace(size))
	if err != nil {
		return image.Params{}, err
	}
	return image.Params{Prompt: strings.TrimSpace(text), Width: width, Height: height}, nil
}
