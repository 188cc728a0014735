// Package guard protects a storage.Store with a per-lookup deadline and a
// circuit breaker, so a dead or hung backend fails fast instead of stalling
// every resolution.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sony/gobreaker"

	"github.com/scrypster/resolver/internal/logger"
	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/pkg/types"
)

// Compile-time interface checks.
var (
	_ storage.Store       = (*Store)(nil)
	_ storage.Snapshotter = (*Store)(nil)
)

// ErrCircuitOpen is returned when the circuit breaker is in open state
// and rejects lookups to prevent cascading failures.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// errCallerDone marks failures caused by the caller's own context ending.
// They do not count against the backend.
var errCallerDone = errors.New("caller context done")

// Config holds the configuration for the guard.
type Config struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 5
	MaxFailures uint32

	// OpenTimeout is the duration the circuit stays open before transitioning to half-open.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes required in half-open
	// state to close the circuit again.
	// Default: 2
	HalfOpenMaxSuccesses uint32

	// LookupTimeout bounds each individual store call. Zero disables it.
	// Default: 2 seconds
	LookupTimeout time.Duration
}

// DefaultConfig returns the guard defaults.
func DefaultConfig() Config {
	return Config{
		MaxFailures:          5,
		OpenTimeout:          30 * time.Second,
		HalfOpenMaxSuccesses: 2,
		LookupTimeout:        2 * time.Second,
	}
}

// Metrics holds counters about guarded lookups.
type Metrics struct {
	TotalRequests        uint64 `json:"total_requests"`
	TotalSuccesses       uint64 `json:"total_successes"`
	TotalFailures        uint64 `json:"total_failures"`
	Rejected             uint64 `json:"rejected"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store wraps a storage.Store.
//
// When closed (normal operation), lookups pass through under LookupTimeout.
// After MaxFailures consecutive failures the circuit opens and every lookup
// returns ErrCircuitOpen. After OpenTimeout the circuit goes half-open and
// lets HalfOpenMaxSuccesses trial lookups through before closing again.
type Store struct {
	inner   storage.Store
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	stats   *stats
}

// stats is shared between a Store and the snapshot views it hands out.
type stats struct {
	mu      sync.Mutex
	metrics Metrics
}

// New wraps inner with a breaker configured by cfg.
func New(inner storage.Store, cfg Config) *Store {
	s := &Store{inner: inner, cfg: cfg, stats: &stats{}}

	settings := gobreaker.Settings{
		Name:        "store",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Interval:    0, // Don't clear counts periodically
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Logger.Warnw("store circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	s.breaker = gobreaker.NewCircuitBreaker(settings)
	return s
}

// State returns the current state of the circuit breaker.
// Possible values: "closed", "open", "half-open"
func (s *Store) State() string {
	switch s.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Metrics returns a copy of the current counters.
func (s *Store) Metrics() Metrics {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	counts := s.breaker.Counts()
	m := s.stats.metrics
	m.ConsecutiveFailures = counts.ConsecutiveFailures
	m.ConsecutiveSuccesses = counts.ConsecutiveSuccesses
	return m
}

func (s *Store) record(err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	m := &s.stats.metrics
	m.TotalRequests++
	switch {
	case err == nil:
		m.TotalSuccesses++
	case errors.Is(err, ErrCircuitOpen):
		m.Rejected++
	default:
		m.TotalFailures++
	}
}

// guarded runs fn through the breaker under the lookup deadline.
func guarded[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	res, err := s.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Mark(err, errCallerDone)
		}

		callCtx := ctx
		if s.cfg.LookupTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
			defer cancel()
		}

		v, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return nil, errors.Mark(err, errCallerDone)
		}
		return v, err
	})

	err = classify(err, op)
	s.record(err)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	return res.(T), nil
}

// classify turns breaker rejections into ErrCircuitOpen.
func classify(err error, op string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrapf(ErrCircuitOpen, "guard: %s", op)
	}
	return err
}

// FindBySlugOrName implements storage.CatalogStore.
func (s *Store) FindBySlugOrName(ctx context.Context, normalized string, typeFilter []types.EntityType) (*types.Entity, error) {
	return guarded(ctx, s, "FindBySlugOrName", func(ctx context.Context) (*types.Entity, error) {
		return s.inner.FindBySlugOrName(ctx, normalized, typeFilter)
	})
}

// FuzzySearch implements storage.CatalogStore.
func (s *Store) FuzzySearch(ctx context.Context, normalized string, typeFilter []types.EntityType, minSimilarity float64) ([]types.ScoredEntity, error) {
	return guarded(ctx, s, "FuzzySearch", func(ctx context.Context) ([]types.ScoredEntity, error) {
		return s.inner.FuzzySearch(ctx, normalized, typeFilter, minSimilarity)
	})
}

// VectorSearch implements storage.CatalogStore.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, typeFilter []types.EntityType, minSimilarity float64, topK int) ([]types.ScoredEntity, error) {
	return guarded(ctx, s, "VectorSearch", func(ctx context.Context) ([]types.ScoredEntity, error) {
		return s.inner.VectorSearch(ctx, embedding, typeFilter, minSimilarity, topK)
	})
}

// FindAlias implements storage.AliasStore.
func (s *Store) FindAlias(ctx context.Context, normalizedTerm, scope string, typeFilter []types.EntityType) (*types.AliasTerm, error) {
	return guarded(ctx, s, "FindAlias", func(ctx context.Context) (*types.AliasTerm, error) {
		return s.inner.FindAlias(ctx, normalizedTerm, scope, typeFilter)
	})
}

// FuzzyAliasSearch implements storage.AliasStore.
func (s *Store) FuzzyAliasSearch(ctx context.Context, normalizedTerm, scope string, minSimilarity float64, topK int) ([]types.ScoredAlias, error) {
	return guarded(ctx, s, "FuzzyAliasSearch", func(ctx context.Context) ([]types.ScoredAlias, error) {
		return s.inner.FuzzyAliasSearch(ctx, normalizedTerm, scope, minSimilarity, topK)
	})
}

// GetEntity implements storage.AliasStore.
func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	return guarded(ctx, s, "GetEntity", func(ctx context.Context) (*types.Entity, error) {
		return s.inner.GetEntity(ctx, id)
	})
}

// Ping checks the backend through the breaker. Backends without a Ping
// method are always reachable.
func (s *Store) Ping(ctx context.Context) error {
	p, ok := s.inner.(Pinger)
	if !ok {
		return nil
	}
	_, err := guarded(ctx, s, "Ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Ping(ctx)
	})
	return err
}
