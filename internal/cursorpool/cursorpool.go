// Package cursorpool runs independent read-only cursors against the same
// finalized dataframe concurrently. Callers may run multiple cursors in
// parallel against a finalized dataframe with no internal synchronization,
// but nothing else in the engine provides a fan-out helper for doing so;
// this package is that helper. It fans independent goroutines out over an
// errgroup.Group and returns the first error (if any) once every goroutine
// has finished.
package cursorpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/google/perfetto-dataframe/internal/column"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/queryplan"
)

// Query pairs a compiled plan with the ValueFetcher its CastFilterValue[List]
// opcodes should consult. Each Query runs on its own Cursor, so the same
// plan may safely appear more than once with different fetchers (e.g. the
// same query re-run for several client-supplied filter values).
type Query struct {
	Plan    *queryplan.QueryPlan
	Fetcher interp.ValueFetcher
}

// RunAll executes every query's plan against df on its own goroutine and
// its own Cursor, returning the cursors in the same order as queries. df
// must already be finalized; each Cursor only reads from it. If ctx is
// canceled, or any PrepareCursor/Execute-adjacent failure occurs, RunAll
// returns the first such error and the partially populated cursor slice is
// discarded — the interpreter itself has no notion of cancellation, so a
// canceled context only prevents *starting* cursors, not interrupting ones
// already running.
func RunAll(ctx context.Context, df *column.Dataframe, queries []Query) ([]*queryplan.Cursor, error) {
	if !df.Finalized {
		dferrors.Fatalf("cursorpool: RunAll requires a finalized dataframe")
	}
	cursors := make([]*queryplan.Cursor, len(queries))
	group, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cur := queryplan.PrepareCursor(q.Plan, df)
			cur.Execute(q.Fetcher)
			cursors[i] = cur
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return cursors, nil
}
