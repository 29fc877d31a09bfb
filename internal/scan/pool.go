package scan

import (
	"context"
	"sync"

	"filesift/internal/schema"
)

// Scan processes paths on a bounded worker pool. Results come back indexed
// by input position, so the output order is deterministic regardless of
// which worker finishes first. Cancellation marks the remaining files as
// failed rather than dropping them from the audit trail.
func (s *Scanner) Scan(ctx context.Context, paths []string, workers int) []Result {
	if len(paths) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	results := make([]Result, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					results[i] = canceledResult(paths[i], ctx)
					continue
				default:
				}
				results[i] = s.Process(paths[i])
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func canceledResult(path string, ctx context.Context) Result {
	reason := "scan canceled"
	if cause := context.Cause(ctx); cause != nil {
		reason = cause.Error()
	}
	return Result{
		Path:    path,
		Failure: &schema.FailureRecord{Path: path, Kind: KindIO, Reason: reason},
	}
}
