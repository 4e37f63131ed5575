package phash

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// HashResult pairs a source ID with its token, or with the error that
// prevented hashing it.
type HashResult struct {
	ID    string
	Token HashToken
	Err   error
}

// OK reports whether the source was hashed.
func (r HashResult) OK() bool {
	return r.Err == nil
}

// Failure records a source excluded from the grouping table.
type Failure struct {
	ID   string
	Kind ErrorKind
	Err  error
}

// BatchResult is the outcome of a batch run.
type BatchResult struct {
	Table     *GroupingTable
	Failures  []Failure
	Skipped   []string // sources never hashed because the run was cancelled
	Cancelled bool
}

// HashBatch hashes sources with at most cfg.Concurrency computations in flight
// and groups them by token. Per-source failures are recorded in Failures and
// never abort the batch.
//
// When ctx is cancelled no new sources are started, in-flight ones drain, and
// the partial result is returned with Cancelled set together with ctx.Err().
func (e *Engine) HashBatch(ctx context.Context, sources []Source) (*BatchResult, error) {
	next := 0
	res, err := e.run(ctx, func() (Source, bool) {
		if next >= len(sources) {
			return Source{}, false
		}
		next++
		return sources[next-1], true
	})
	for _, src := range sources[next:] {
		res.Skipped = append(res.Skipped, src.ID)
	}
	return res, err
}

// HashStream is like HashBatch for collections of unknown size. It consumes in
// until the channel is closed or ctx is done; sources still queued in the
// channel after cancellation are left to the caller.
func (e *Engine) HashStream(ctx context.Context, in <-chan Source) (*BatchResult, error) {
	return e.run(ctx, func() (Source, bool) {
		select {
		case <-ctx.Done():
			return Source{}, false
		case src, ok := <-in:
			return src, ok
		}
	})
}

// run schedules next() onto a bounded errgroup until next is exhausted or ctx
// is done, then snapshots the aggregator once every worker has returned.
func (e *Engine) run(ctx context.Context, next func() (Source, bool)) (*BatchResult, error) {
	agg := newAggregator(e.cfg.OnResult)

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for ctx.Err() == nil {
		src, ok := next()
		if !ok {
			break
		}
		g.Go(func() error {
			e.hashOne(ctx, src, agg)
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{
		Table:    agg.table,
		Failures: agg.failures,
		Skipped:  agg.skipped,
	}
	if err := ctx.Err(); err != nil {
		res.Cancelled = true
		slog.Debug("phash: batch cancelled", "hashed", res.Table.Members(), "failed", len(res.Failures), "error", err.Error())
		return res, err
	}
	return res, nil
}

// hashOne loads and hashes a single source and hands the outcome to agg.
// Recovers from panics to protect the worker pool.
func (e *Engine) hashOne(ctx context.Context, src Source, agg *aggregator) {
	defer func() {
		if r := recover(); r != nil {
			if e.cfg.OnPanic != nil {
				e.cfg.OnPanic("hashSource", r)
			}
			agg.fail(src.ID, fmt.Errorf("%w: %s: %v", ErrPanic, src.ID, r))
		}
	}()

	if ctx.Err() != nil {
		agg.skip(src.ID)
		return
	}

	data, err := src.bytes(ctx)
	if err != nil {
		if ctx.Err() != nil {
			agg.skip(src.ID)
			return
		}
		slog.Debug("phash: source read failed", "id", src.ID, "error", err.Error())
		agg.fail(src.ID, err)
		return
	}

	tok, err := e.HashContext(ctx, data)
	if err != nil {
		slog.Debug("phash: hash failed", "id", src.ID, "error", err.Error())
		agg.fail(src.ID, err)
		return
	}
	agg.add(src.ID, tok)
}
