package swrender

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// maxWorkerThreads bounds the resolved worker count regardless of config or
// hardware.
const maxWorkerThreads = 64

// Pool runs partitioned, disjoint-range work. It holds only the resolved
// worker count; each Partition call starts one goroutine per non-empty
// range and waits for them.
type Pool struct {
	numWorkers int
}

// NewPool resolves requested (0 meaning "use hardware parallelism") to an
// actual worker count in [1, maxWorkerThreads].
func NewPool(requested int) *Pool {
	n := requested
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		n = 1
	}
	if n > maxWorkerThreads {
		n = maxWorkerThreads
	}
	return &Pool{numWorkers: n}
}

// NumWorkers returns the resolved worker count.
func (p *Pool) NumWorkers() int { return p.numWorkers }

// Partition splits [0, n) into p.NumWorkers() contiguous, disjoint index
// ranges and runs task(lo, hi) for each range concurrently, returning once
// every task has completed or one has panicked (propagated) or returned an
// error. Generalized to arbitrary index ranges so the same helper serves
// per-row rasterizer partitioning and per-object animation partitioning
// alike.
func (p *Pool) Partition(ctx context.Context, n int, task func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers := p.numWorkers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return task(lo, hi)
		})
	}
	return g.Wait()
}

// ForEach runs task(i) once per index in [0, n), partitioned across
// workers, for call sites that want one task per object rather than one
// task per contiguous range.
func (p *Pool) ForEach(ctx context.Context, n int, task func(i int) error) error {
	return p.Partition(ctx, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := task(i); err != nil {
				return err
			}
		}
		return nil
	})
}

// sharedSlice wraps a slice that multiple worker goroutines write into
// concurrently through disjoint sub-ranges assigned serially before
// dispatch. Sub returns an aliasing sub-slice; callers must never
// let two concurrently-running tasks' Sub ranges overlap — this is not
// checked at runtime.
type sharedSlice[T any] struct {
	data []T
}

// newSharedSlice wraps an existing slice for partitioned concurrent access.
func newSharedSlice[T any](data []T) sharedSlice[T] {
	return sharedSlice[T]{data: data}
}

// Sub returns data[lo:hi], trusting the caller to have partitioned ranges
// disjointly before dispatch.
func (s sharedSlice[T]) Sub(lo, hi int) []T {
	return s.data[lo:hi]
}

// Len returns the full backing slice's length.
func (s sharedSlice[T]) Len() int { return len(s.data) }
