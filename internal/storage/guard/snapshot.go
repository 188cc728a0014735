package guard

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/scrypster/resolver/internal/storage"
)

// Snapshot opens a snapshot on the wrapped store through the breaker. Lookups
// on the snapshot share this Store's breaker and deadline. When the wrapped
// store cannot snapshot, the returned view reads the live store.
//
// The read transaction lives on the caller's ctx, but BEGIN itself must
// return within LookupTimeout. A hung BEGIN counts as a backend failure.
func (s *Store) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	snapper, ok := s.inner.(storage.Snapshotter)
	if !ok {
		return &snapshot{Store: s, close: func() error { return nil }}, nil
	}

	var release context.CancelFunc
	res, err := s.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Mark(err, errCallerDone)
		}
		snap, cancel, err := s.begin(ctx, snapper)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Mark(err, errCallerDone)
			}
			return nil, err
		}
		release = cancel
		return snap, nil
	})
	if err != nil {
		err = classify(err, "Snapshot")
		s.record(err)
		return nil, err
	}
	s.record(nil)

	snap := res.(storage.Snapshot)
	view := &Store{inner: snap, breaker: s.breaker, cfg: s.cfg, stats: s.stats}
	return &snapshot{Store: view, close: func() error {
		defer release()
		return snap.Close()
	}}, nil
}

type opened struct {
	snap storage.Snapshot
	err  error
}

// begin opens the inner snapshot on a context derived from ctx. The returned
// cancel func must be called after the snapshot is closed.
func (s *Store) begin(ctx context.Context, snapper storage.Snapshotter) (storage.Snapshot, context.CancelFunc, error) {
	snapCtx, cancel := context.WithCancel(ctx)

	if s.cfg.LookupTimeout <= 0 {
		snap, err := snapper.Snapshot(snapCtx)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		return snap, cancel, nil
	}

	done := make(chan opened, 1)
	go func() {
		snap, err := snapper.Snapshot(snapCtx)
		done <- opened{snap: snap, err: err}
	}()

	timer := time.NewTimer(s.cfg.LookupTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		if o.err != nil {
			cancel()
			return nil, nil, o.err
		}
		return o.snap, cancel, nil
	case <-timer.C:
		cancel()
		go func() {
			if o := <-done; o.snap != nil {
				_ = o.snap.Close()
			}
		}()
		return nil, nil, errors.Wrapf(context.DeadlineExceeded, "snapshot not opened within %s", s.cfg.LookupTimeout)
	}
}

// snapshot is a guarded view that closes the underlying snapshot.
type snapshot struct {
	*Store
	close func() error
}

func (s *snapshot) Close() error {
	return s.close()
}
