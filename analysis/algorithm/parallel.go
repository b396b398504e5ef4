package algorithm

import (
	"context"
	"fmt"

	"github.com/cs-au-dk/reach/analysis/reached"
	"golang.org/x/sync/errgroup"
)

// Task is one independent exploration.
type Task struct {
	Name      string
	Algorithm *Algorithm
	Reached   *reached.Set
}

// RunParallel runs the tasks with at most workers explorations at a time.
// Tasks share nothing but what their analyses share, e.g. a block summary
// cache. The first failure cancels the remaining explorations, which then
// report incomplete statuses.
func RunParallel(ctx context.Context, workers int, tasks ...Task) ([]Status, error) {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	statuses := make([]Status, len(tasks))
	for i, t := range tasks {
		i, t := i, t // per-iteration copy (module targets go 1.21)
		g.Go(func() error {
			status, err := t.Algorithm.Run(ctx, t.Reached)
			statuses[i] = status
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	return statuses, err
}

// Combine folds the statuses of several explorations.
func Combine(statuses ...Status) Status {
	res := Done
	for _, s := range statuses {
		res = res.Update(s)
	}
	return res
}
