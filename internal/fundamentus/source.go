package fundamentus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fundamentusapi/internal/fetcher"
)

// DefaultURL is the screener page listing every ticker with its indicators.
const DefaultURL = "https://www.fundamentus.com.br/resultado.php"

// Source fetches and parses the screener page.
type Source struct {
	fetcher fetcher.Fetcher
	url     string
}

// NewSource creates a Source reading url through f.
func NewSource(f fetcher.Fetcher, url string) *Source {
	if url == "" {
		url = DefaultURL
	}
	return &Source{fetcher: f, url: url}
}

// Load fetches the page and parses it into a fresh TickerTable.
// A table whose rows were all rejected is a structure error: the layout
// changed, and an empty result must not replace a good one.
func (s *Source) Load(ctx context.Context) (TickerTable, error) {
	start := time.Now()

	html, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}

	table, stats, err := ParseWithStats(html)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.url, err)
	}

	slog.Info("loaded screener table",
		"url", s.url,
		"tickers", len(table),
		"rows", stats.Rows,
		"short", stats.Short,
		"invalid", stats.Invalid,
		"duplicates", stats.Duplicates,
		"header_fields", stats.FromHeader,
		"duration", time.Since(start))

	if stats.Rows > 0 && len(table) == 0 {
		return nil, fetcher.NewStructureError(fmt.Sprintf(
			"%s: all %d rows rejected (%d short, %d invalid) for %d fields",
			s.url, stats.Rows, stats.Short, stats.Invalid, stats.Fields))
	}

	return table, nil
}
