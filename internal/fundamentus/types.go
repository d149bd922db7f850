// Package fundamentus scrapes and parses the Fundamentus stock screener table
// into exact decimal indicators keyed by ticker.
package fundamentus

import (
	"maps"

	"github.com/shopspring/decimal"
)

// IndicatorSet maps an indicator name (e.g. "P/L", "ROE") to its value.
type IndicatorSet map[string]decimal.Decimal

// Clone returns an independent copy of s.
func (s IndicatorSet) Clone() IndicatorSet {
	return maps.Clone(s)
}

// TickerTable maps a ticker symbol (e.g. "ABEV3") to its indicators.
// A table is built once per fetch and never modified afterwards.
type TickerTable map[string]IndicatorSet

// Clone returns a deep copy of t, so callers can mutate it freely.
func (t TickerTable) Clone() TickerTable {
	if t == nil {
		return nil
	}
	out := make(TickerTable, len(t))
	for ticker, set := range t {
		out[ticker] = set.Clone()
	}
	return out
}
