package utils

import (
	"context"
	"sync"
)

type CompletedTask[T any] struct {
	Index  int
	Result T
	Error  error
}

// RunInPool applies worker to every item using at most maxWorkers goroutines.
// The returned slice is indexed like items. onDone, if non-nil, is called from
// the collecting goroutine once per finished item.
func RunInPool[In any, Out any](ctx context.Context, items []In, worker func(context.Context, In) (Out, error), maxWorkers int, onDone func(CompletedTask[Out])) []CompletedTask[Out] {
	results := make([]CompletedTask[Out], len(items))
	if len(items) == 0 {
		return results
	}

	workers := max(1, min(len(items), maxWorkers))

	queue := make(chan int, len(items))
	for i := range items {
		queue <- i
	}
	close(queue)

	completed := make(chan CompletedTask[Out], workers)

	wg := sync.WaitGroup{}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for idx := range queue {
				if err := ctx.Err(); err != nil {
					completed <- CompletedTask[Out]{Index: idx, Error: err}
					continue
				}
				res, err := worker(ctx, items[idx])
				completed <- CompletedTask[Out]{Index: idx, Result: res, Error: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(completed)
	}()

	for task := range completed {
		results[task.Index] = task
		if onDone != nil {
			onDone(task)
		}
	}

	return results
}
