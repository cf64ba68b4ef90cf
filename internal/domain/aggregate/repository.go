// Package aggregate abstracts the derived read models the refresher keeps
// warm. The Postgres implementation refreshes materialized views; the live
// subset excludes the expensive season-wide aggregates.
package aggregate

import "context"

type Refresher interface {
	RefreshAll(ctx context.Context) error
	RefreshLive(ctx context.Context) error
}
