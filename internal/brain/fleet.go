package brain

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fleet runs independent thread ids concurrently. Threads share only
// the externally synchronized store and executor.
type Fleet struct {
	brains []*Brain
}

func NewFleet(brains ...*Brain) *Fleet {
	return &Fleet{brains: brains}
}

// Run drives every thread until all finish; the first error cancels the
// rest.
func (f *Fleet) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range f.brains {
		g.Go(func() error {
			return b.Run(ctx)
		})
	}
	return g.Wait()
}
