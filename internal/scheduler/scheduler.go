// Package scheduler runs many independent tasks with a bound on how many are
// in flight at once.
package scheduler

import (
	"context"
	"digimon-scraper/internal/components/chrono"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of the task at the same index.
type Result[T any] struct {
	Value T
	Err   error
}

type Options struct {
	// Limit is the maximum number of tasks in flight, values below 1 mean 1.
	Limit int
	// a random delay in [JitterMin, JitterMax] is waited before each task starts
	JitterMin time.Duration
	JitterMax time.Duration
	// Time defaults to chrono.StandardImpl.
	Time chrono.API
}

func DefaultOptions() Options {
	return Options{
		Limit:     4,
		JitterMin: 50 * time.Millisecond,
		JitterMax: 230 * time.Millisecond,
	}
}

// RunAll starts tasks in input order and waits for every one of them to
// settle. A failing or panicking task does not stop the others, its error is
// kept in its Result. When ctx is done no further task is started and the
// remaining results carry ctx's error.
func RunAll[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	limit := opts.Limit
	if limit < 1 {
		limit = 1
	}
	clock := opts.Time
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}

	results := make([]Result[T], len(tasks))

	var group errgroup.Group
	group.SetLimit(limit)

	for i, task := range tasks {
		err := clock.Sleep(ctx, chrono.Between(opts.JitterMin, opts.JitterMax))
		if err != nil {
			for j := i; j < len(tasks); j++ {
				results[j].Err = err
			}
			break
		}

		// blocks until a slot is free, this is what keeps start order
		group.Go(func() error {
			results[i] = run(ctx, task)
			return nil
		})
	}
	group.Wait()

	return results
}

func run[T any](ctx context.Context, task Task[T]) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	value, err := task(ctx)
	return Result[T]{Value: value, Err: err}
}

// Values returns the values of every successful result, in input order.
func Values[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		out = append(out, r.Value)
	}
	return out
}

// Errors returns the errors of every failed result, in input order.
func Errors[T any](results []Result[T]) []error {
	var out []error
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}
