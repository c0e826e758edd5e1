package fetcher

import (
	"context"
	"time"
)

// QuoteFetcher retrieves realtime quotes for a set of contract codes.
type QuoteFetcher interface {
	RealtimeQuotes(ctx context.Context, codes []string) ([]Quote, error)
}

// HistoryFetcher retrieves daily history for contract codes.
type HistoryFetcher interface {
	HistoryQuotes(ctx context.Context, codes []string, indicators []string, from, to time.Time) ([]Series, error)
}

// MacroFetcher retrieves economic database (EDB) series.
type MacroFetcher interface {
	EDBSeries(ctx context.Context, id string, from, to time.Time) ([]Point, error)
}
