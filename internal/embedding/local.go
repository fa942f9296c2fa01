package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const (
	LocalProviderVersion    = "local"
	localProviderDimensions = 384
)

func init() {
	RegisterProvider(Metadata{
		Name:        "Deterministic Local",
		Version:     LocalProviderVersion,
		Dimensions:  localProviderDimensions,
		Description: "Deterministic hash-based unit-norm vectors; no external model, used as a default and in tests",
		Default:     true,
	}, func() (Provider, error) {
		return NewLocalProvider(localProviderDimensions), nil
	})
}

// localProvider derives a deterministic unit-norm vector from the hash of
// its input text. It never calls out to a model, so Initialize always
// succeeds; it exists so C5/C6 can be exercised end to end without a real
// embedding backend.
type localProvider struct {
	dimensions int
}

// NewLocalProvider constructs a deterministic fallback provider with the
// given vector length.
func NewLocalProvider(dimensions int) Provider {
	if dimensions <= 0 {
		dimensions = localProviderDimensions
	}
	return &localProvider{dimensions: dimensions}
}

func (p *localProvider) ModelName() string { return LocalProviderVersion }
func (p *localProvider) Dimensions() int   { return p.dimensions }
func (p *localProvider) Close() error      { return nil }

func (p *localProvider) Initialize(ctx context.Context) (Availability, error) {
	return Available, nil
}

func (p *localProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return deterministicVector(text, p.dimensions), nil
}

func (p *localProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, p.dimensions)
	}
	return out, nil
}

// deterministicVector hashes text into a seed and walks an LCG to fill a
// vector, then normalizes it to unit length so it exercises C6's cosine
// arithmetic the same way a real model's output would.
func deterministicVector(text string, dimensions int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dimensions)
	var sumSquares float64
	state := seed
	for i := range vec {
		state = state*6364136223846793005 + 1442695040888963407
		v := float64(int64(state>>11)) / float64(1<<52)
		vec[i] = float32(v)
		sumSquares += v * v
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
