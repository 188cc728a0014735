package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrypster/resolver/internal/storage"
	"github.com/scrypster/resolver/pkg/types"
)

// Operation names accepted by FaultyStore.
const (
	OpFindAlias        = "FindAlias"
	OpFindBySlugOrName = "FindBySlugOrName"
	OpFuzzySearch      = "FuzzySearch"
	OpVectorSearch     = "VectorSearch"
	OpFuzzyAliasSearch = "FuzzyAliasSearch"
	OpGetEntity        = "GetEntity"
)

var _ storage.Store = (*FaultyStore)(nil)

// FaultyStore delegates to an inner store but can fail or stall chosen
// operations. It counts every call. A nil inner store finds nothing.
type FaultyStore struct {
	inner storage.Store

	mu     sync.Mutex
	errs   map[string]error
	delays map[string]time.Duration
	calls  map[string]int
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner storage.Store) *FaultyStore {
	return &FaultyStore{
		inner:  inner,
		errs:   make(map[string]error),
		delays: make(map[string]time.Duration),
		calls:  make(map[string]int),
	}
}

// FailWith makes op return err. A nil err clears the fault.
func (f *FaultyStore) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Stall makes op block for d or until its context ends.
func (f *FaultyStore) Stall(op string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[op] = d
}

// Calls returns how many times op was invoked.
func (f *FaultyStore) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyStore) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.errs[op]
	delay := f.delays[op]
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (f *FaultyStore) FindBySlugOrName(ctx context.Context, normalized string, typeFilter []types.EntityType) (*types.Entity, error) {
	if err := f.enter(ctx, OpFindBySlugOrName); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.FindBySlugOrName(ctx, normalized, typeFilter)
}

func (f *FaultyStore) FuzzySearch(ctx context.Context, normalized string, typeFilter []types.EntityType, minSimilarity float64) ([]types.ScoredEntity, error) {
	if err := f.enter(ctx, OpFuzzySearch); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return []types.ScoredEntity{}, nil
	}
	return f.inner.FuzzySearch(ctx, normalized, typeFilter, minSimilarity)
}

func (f *FaultyStore) VectorSearch(ctx context.Context, embedding []float32, typeFilter []types.EntityType, minSimilarity float64, topK int) ([]types.ScoredEntity, error) {
	if err := f.enter(ctx, OpVectorSearch); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return []types.ScoredEntity{}, nil
	}
	return f.inner.VectorSearch(ctx, embedding, typeFilter, minSimilarity, topK)
}

func (f *FaultyStore) FindAlias(ctx context.Context, normalizedTerm, scope string, typeFilter []types.EntityType) (*types.AliasTerm, error) {
	if err := f.enter(ctx, OpFindAlias); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.FindAlias(ctx, normalizedTerm, scope, typeFilter)
}

func (f *FaultyStore) FuzzyAliasSearch(ctx context.Context, normalizedTerm, scope string, minSimilarity float64, topK int) ([]types.ScoredAlias, error) {
	if err := f.enter(ctx, OpFuzzyAliasSearch); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return []types.ScoredAlias{}, nil
	}
	return f.inner.FuzzyAliasSearch(ctx, normalizedTerm, scope, minSimilarity, topK)
}

func (f *FaultyStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if err := f.enter(ctx, OpGetEntity); err != nil {
		return nil, err
	}
	if f.inner == nil {
		return nil, nil
	}
	return f.inner.GetEntity(ctx, id)
}

// HangingSnapshotter is a FaultyStore whose Snapshot never returns until its
// context ends, like a backend stuck in BEGIN.
type HangingSnapshotter struct {
	*FaultyStore
	released atomic.Int32
}

var _ storage.Snapshotter = (*HangingSnapshotter)(nil)

// NewHangingSnapshotter wraps inner.
func NewHangingSnapshotter(inner storage.Store) *HangingSnapshotter {
	return &HangingSnapshotter{FaultyStore: NewFaultyStore(inner)}
}

func (h *HangingSnapshotter) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	<-ctx.Done()
	h.released.Add(1)
	return nil, ctx.Err()
}

// Released returns how many blocked Snapshot calls have returned.
func (h *HangingSnapshotter) Released() int {
	return int(h.released.Load())
}
