package collector

import (
	"context"
	"sync"

	"codeberg.org/mutker/fleetinv/internal/backend"
	"codeberg.org/mutker/fleetinv/internal/inventory"
)

// fetchJob is one (entity, category) detail fetch.
type fetchJob struct {
	entity   inventory.Entity
	category inventory.Category
	spec     backend.DetailSpec
}

type fetchResult struct {
	job     fetchJob
	payload any
	err     error
}

// runFetches drains jobs through a bounded worker pool, retrying each fetch
// per policy, and hands every result to handle on the caller's goroutine.
// Cancellation stops the feeder; jobs already in flight still report.
func runFetches(
	ctx context.Context,
	jobs []fetchJob,
	workers int,
	policy RetryPolicy,
	fetch func(context.Context, fetchJob) (any, error),
	handle func(fetchResult),
) {
	if len(jobs) == 0 {
		return
	}

	if workers < 1 {
		workers = 1
	}

	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan fetchJob)
	resultCh := make(chan fetchResult)

	var wg sync.WaitGroup

	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			for job := range jobCh {
				var payload any

				err := policy.Do(ctx, func() error {
					p, fetchErr := fetch(ctx, job)
					if fetchErr != nil {
						return fetchErr
					}

					payload = p

					return nil
				})

				resultCh <- fetchResult{job: job, payload: payload, err: err}
			}
		}()
	}

	go func() {
		defer close(jobCh)

		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		handle(result)
	}
}
