package scorer

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/semaphore"

	"urlrisk/pkg/serrors"
)

// PoolOptions configure how many scorer calls may run at once and how long a
// single call may take.
type PoolOptions struct {
	// MaxConcurrency bounds concurrent calls into the wrapped scorer.
	// Zero or negative means runtime.GOMAXPROCS(0).
	MaxConcurrency int
	// Timeout bounds waiting for a slot plus scoring. Zero disables it.
	Timeout time.Duration
}

// Pool offloads CPU-bound scoring onto a bounded set of goroutines. Callers
// that cannot get a slot, or whose call outlives Timeout, receive an
// ErrUnavailable error instead of a probability.
type Pool struct {
	inner   Scorer
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Ensure Pool conforms to the Scorer interface at compile time.
var _ Scorer = (*Pool)(nil)

// NewPool wraps inner with concurrency and time bounds.
func NewPool(inner Scorer, opts PoolOptions) *Pool {
	n := opts.MaxConcurrency
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}

	return &Pool{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(n)),
		timeout: opts.Timeout,
	}
}

type result struct {
	p   float64
	err error
}

// Score acquires a slot and runs the wrapped scorer on its own goroutine. The
// slot is held until the wrapped call returns, even when the caller gave up
// waiting, so abandoned calls still count against MaxConcurrency.
func (p *Pool) Score(ctx context.Context, URL string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0, serrors.Wrap(serrors.ErrUnavailable, err, "no scoring slot available")
	}

	done := make(chan result, 1)
	go func() {
		defer p.sem.Release(1)

		prob, err := p.inner.Score(ctx, URL)
		done <- result{p: prob, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, serrors.Wrap(serrors.ErrUnavailable, ctx.Err(), "scoring timed out")
	case r := <-done:
		return r.p, r.err
	}
}
