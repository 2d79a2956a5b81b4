package weather

import (
	"context"
	"time"
)

// Provider abstracts the weather data source. A successful Fetch returns a
// complete, validated series; any error leaves nothing half-built.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location, horizon Horizon) (Series, error)
}

// Store is the contract the in-memory series cache must satisfy.
type Store interface {
	SaveSeries(series Series)
	GetLatest(loc Location, horizon Horizon) (Series, error)
	GetRange(loc Location, horizon Horizon, from, to time.Time) ([]Series, error)
}
