// Package fetch downloads remote-storage objects to local disk so the
// installer can consume them as file paths.
package fetch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultWidth bounds how many object downloads run concurrently.
const DefaultWidth = 10

// Fetcher downloads a single object to a local destination path.
type Fetcher interface {
	Fetch(ctx context.Context, objectURL, dest string) error
}

// Error reports a failed object download. It always aborts the enclosing
// install attempt: a missing dependency object cannot be silently skipped.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Job pairs an object URL with its local destination.
type Job struct {
	URL  string
	Dest string
}

// All downloads every job with at most width concurrent fetches, waiting for
// all of them before returning. The first failure cancels the remaining
// downloads and is returned.
func All(ctx context.Context, f Fetcher, jobs []Job, width int) error {
	if width <= 0 {
		width = DefaultWidth
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(width)
	for _, job := range jobs {
		g.Go(func() error {
			return f.Fetch(ctx, job.URL, job.Dest)
		})
	}
	return g.Wait()
}
