// Package batch orders a list of operations and runs it either sequentially
// or with bounded parallelism.
package batch

import (
	"context"
	"fmt"
	"sync"

	"reshape/internal/operation"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallel bounds the operations in flight on the parallel path.
const DefaultMaxParallel = 4

// Executor runs one operation and always returns a result.
type Executor func(ctx context.Context, op operation.Operation) *operation.Result

// Scheduler runs batches through an Executor.
type Scheduler struct {
	exec        Executor
	ordering    Ordering
	maxParallel int
	log         *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithOrdering selects the sequential ordering mode.
func WithOrdering(o Ordering) Option {
	return func(s *Scheduler) {
		if o.Valid() {
			s.ordering = o
		}
	}
}

// WithMaxParallel bounds the parallel path.
func WithMaxParallel(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler creates a scheduler.
func NewScheduler(exec Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec:        exec,
		ordering:    OrderGraph,
		maxParallel: DefaultMaxParallel,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes b. Independent batches run in parallel and always run to
// completion; otherwise operations run one at a time in optimized order and
// stop at the first failure when the batch asks for it. Cancelling ctx stops
// the batch between operations.
func (s *Scheduler) Run(ctx context.Context, b operation.Batch) *operation.BatchResult {
	if len(b.Operations) > 1 && CanParallelize(b.Operations) {
		return s.runParallel(ctx, b.Operations)
	}
	return s.runSequential(ctx, b.Operations, b.Options.StopsOnError())
}

func (s *Scheduler) runSequential(ctx context.Context, ops []operation.Operation, stopOnError bool) *operation.BatchResult {
	out := &operation.BatchResult{Results: []operation.Result{}}
	order := OptimizeOrder(ops, s.ordering)
	s.log.Debug("running batch sequentially",
		zap.Int("operations", len(ops)),
		zap.String("ordering", string(s.ordering)),
		zap.Ints("order", order))

	for _, i := range order {
		if err := ctx.Err(); err != nil {
			out.Error = fmt.Sprintf("batch cancelled: %v", err)
			break
		}
		res := s.exec(ctx, ops[i])
		res.Index = i
		out.Results = append(out.Results, *res)
		if !res.Success && stopOnError {
			out.Error = fmt.Sprintf("operation %d (%s %s) failed: %s", i, ops[i].Type, ops[i].Selector.Name, res.Error)
			break
		}
	}
	summarize(out, len(ops))
	return out
}

func (s *Scheduler) runParallel(ctx context.Context, ops []operation.Operation) *operation.BatchResult {
	s.log.Debug("running batch in parallel", zap.Int("operations", len(ops)), zap.Int("limit", s.maxParallel))

	results := make([]*operation.Result, len(ops))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.maxParallel)
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := s.exec(ctx, op)
			res.Index = i
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := &operation.BatchResult{Results: []operation.Result{}, Parallel: true}
	for _, r := range results {
		if r != nil {
			out.Results = append(out.Results, *r)
		}
	}
	if err := ctx.Err(); err != nil {
		out.Error = fmt.Sprintf("batch cancelled: %v", err)
	}
	summarize(out, len(ops))
	return out
}

func summarize(out *operation.BatchResult, total int) {
	out.Summary.Total = total
	for _, r := range out.Results {
		if r.Success {
			out.Summary.Succeeded++
		} else {
			out.Summary.Failed++
		}
	}
	out.Summary.Skipped = total - len(out.Results)
	out.Success = out.Summary.Failed == 0 && out.Summary.Skipped == 0
	if out.Error == "" && out.Summary.Failed > 0 {
		out.Error = fmt.Sprintf("%d of %d operations failed", out.Summary.Failed, total)
	}
}
