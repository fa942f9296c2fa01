package embedding

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	mu    sync.Mutex
	inits int
	dims  int
	avail Availability
}

func (p *countingProvider) Initialize(ctx context.Context) (Availability, error) {
	p.mu.Lock()
	p.inits++
	p.mu.Unlock()
	return p.avail, nil
}
func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return deterministicVector(text, p.dims), nil
}
func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, p.dims)
	}
	return out, nil
}
func (p *countingProvider) Dimensions() int   { return p.dims }
func (p *countingProvider) ModelName() string { return "counting" }
func (p *countingProvider) Close() error      { return nil }

func TestService_InitializeIsCalledOnce(t *testing.T) {
	provider := &countingProvider{dims: 8, avail: Available}
	svc := NewService(provider)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Initialize(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.inits)
	assert.True(t, svc.Available())
}

func TestService_UnavailableDegradesEmbedToNil(t *testing.T) {
	provider := &countingProvider{dims: 8, avail: Unavailable}
	svc := NewService(provider)

	vec := svc.Embed(context.Background(), "hello world")
	assert.Nil(t, vec)
}

func TestService_EmbedBatchPreservesOrder(t *testing.T) {
	provider := &countingProvider{dims: 8, avail: Available}
	svc := NewService(provider)

	texts := []string{"a", "b", "c"}
	vecs := svc.EmbedBatch(context.Background(), texts)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.NotNil(t, v)
	}
}

func TestService_TruncatesLongInput(t *testing.T) {
	provider := &countingProvider{dims: 8, avail: Available}
	svc := NewService(provider)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	vec := svc.Embed(context.Background(), string(long))
	assert.NotNil(t, vec)
}
