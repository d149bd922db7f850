package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fundamentusapi/internal/fundamentus"
)

// ErrNotFound is returned by Lookup when the ticker is not in the current table.
var ErrNotFound = errors.New("ticker not found")

// TableSource provides the current ticker table.
//
//go:generate mockgen -package=query_test -destination=mock_table_source_test.go -source=service.go TableSource
type TableSource interface {
	Get(ctx context.Context) (fundamentus.TickerTable, error)
	Invalidate()
}

// Service answers read-only queries over the cached table.
type Service struct {
	tables TableSource
}

// NewService creates a Service reading from tables.
func NewService(tables TableSource) *Service {
	return &Service{tables: tables}
}

// Lookup returns the indicators for ticker, matched case-insensitively.
// It fails with ErrNotFound when the ticker is absent, or with the load
// error when no table could be obtained.
func (s *Service) Lookup(ctx context.Context, ticker string) (fundamentus.IndicatorSet, error) {
	table, err := s.tables.Get(ctx)
	if err != nil {
		return nil, err
	}

	key := NormalizeTicker(ticker)
	set, ok := table[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return set.Clone(), nil
}

// ListAll returns a copy of the whole table.
func (s *Service) ListAll(ctx context.Context) (fundamentus.TickerTable, error) {
	table, err := s.tables.Get(ctx)
	if err != nil {
		return nil, err
	}
	return table.Clone(), nil
}

// Invalidate forces the next query to reload the table.
func (s *Service) Invalidate() {
	s.tables.Invalidate()
}

// NormalizeTicker uppercases and trims a user-supplied ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
