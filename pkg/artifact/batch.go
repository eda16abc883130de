package artifact

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/modman-dev/modman/pkg/catalog"
)

// Item is one artifact to fetch. Name labels progress output and failures;
// it is typically the project slug.
type Item struct {
	Name    string
	Version *catalog.Version
}

// Placement records one successfully placed artifact.
type Placement struct {
	Name      string
	Path      string
	FromCache bool
}

// Failure records one item that could not be fetched or verified.
type Failure struct {
	Name string
	Err  error
}

// BatchResult collects the outcome of a FetchBatch run. Order follows the
// input items.
type BatchResult struct {
	Placed   []Placement
	Failures []Failure
}

// FetchBatch downloads and places all items concurrently with a bounded
// worker pool. One failing item never aborts the rest; its error is
// collected instead. Only context cancellation stops the batch early.
func (s *Store) FetchBatch(ctx context.Context, items []Item, destDir string) (*BatchResult, error) {
	type slot struct {
		placement *Placement
		failure   *Failure
	}
	slots := make([]slot, len(items))

	var done atomic.Int64
	total := len(items)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range items {
		g.Go(func() error {
			path, fromCache, err := s.FetchAndPlace(ctx, item.Version, destDir)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slots[i].failure = &Failure{Name: item.Name, Err: err}
				s.log.Warn("fetch failed", "name", item.Name, "err", err)
				return nil
			}
			slots[i].placement = &Placement{Name: item.Name, Path: path, FromCache: fromCache}
			s.log.Info("placed", "name", item.Name,
				"cached", fromCache, "progress", done.Add(1), "total", total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, sl := range slots {
		if sl.placement != nil {
			result.Placed = append(result.Placed, *sl.placement)
		}
		if sl.failure != nil {
			result.Failures = append(result.Failures, *sl.failure)
		}
	}
	return result, nil
}
