package embedding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// maxInputChars is the truncation length applied to every text before it
// reaches a provider (spec §4.5, §6).
const maxInputChars = 2000

// Service wraps a Provider with the concurrency-safe, idempotent
// initialization and the tolerant null-on-failure semantics the core
// requires: once Initialize reports Unavailable, every subsequent Embed
// call degrades to nil rather than propagating an error (spec §4.5).
type Service struct {
	provider Provider

	initGroup   singleflight.Group
	initialized atomic.Bool
	mu          sync.RWMutex
	availability Availability
}

// NewService wraps provider.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Initialize is idempotent and safe under concurrent first-callers: the
// first caller runs Provider.Initialize, concurrent callers await its
// result via singleflight, and later callers simply read the cached
// outcome.
func (s *Service) Initialize(ctx context.Context) Availability {
	if s.initialized.Load() {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.availability
	}

	v, _, _ := s.initGroup.Do("initialize", func() (interface{}, error) {
		avail, err := s.provider.Initialize(ctx)
		if err != nil {
			log.Debug().Err(err).Str("provider", s.provider.ModelName()).Msg("embedding provider unavailable")
			avail = Unavailable
		}
		s.mu.Lock()
		s.availability = avail
		s.mu.Unlock()
		s.initialized.Store(true)
		return avail, nil
	})
	return v.(Availability)
}

// Dimensions returns the wrapped provider's vector length.
func (s *Service) Dimensions() int { return s.provider.Dimensions() }

// ModelName returns the wrapped provider's identifier.
func (s *Service) ModelName() string { return s.provider.ModelName() }

// Available reports the last-known Initialize outcome without blocking
// on a fresh initialization attempt.
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized.Load() && s.availability == Available
}

// Embed truncates text to 2000 characters and returns a vector, or nil if
// the provider is unavailable or the call failed. Errors are logged, not
// propagated: missing embeddings are repaired later (spec §7).
func (s *Service) Embed(ctx context.Context, text string) []float32 {
	if s.Initialize(ctx) == Unavailable {
		return nil
	}
	vec, err := s.provider.Embed(ctx, truncate(text, maxInputChars))
	if err != nil {
		log.Debug().Err(err).Msg("embed call failed, degrading to nil")
		return nil
	}
	return vec
}

// EmbedBatch preserves input order; any item whose embedding fails (or
// whose provider is unavailable) is nil at that index. The batch as a
// whole is never aborted by a per-item failure.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if s.Initialize(ctx) == Unavailable {
		return out
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncate(t, maxInputChars)
	}

	results, err := s.provider.EmbedBatch(ctx, truncated)
	if err != nil {
		log.Debug().Err(err).Msg("embed batch failed, degrading whole batch to nil")
		return out
	}
	copy(out, results)
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
