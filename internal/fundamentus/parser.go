package fundamentus

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"fundamentusapi/internal/fetcher"
)

// TableID is the id attribute of the screener results table.
const TableID = "resultado"

// ParseStats summarizes a parse run.
type ParseStats struct {
	Fields     int  // indicator columns per row
	FromHeader bool // fields came from the table header rather than DefaultFields
	Rows       int  // data rows seen
	Kept       int  // distinct tickers stored
	Short      int  // rows dropped for having too few cells
	Invalid    int  // rows dropped for an unparseable cell or empty ticker
	Duplicates int  // rows that replaced an earlier row for the same ticker
}

// Parse extracts the ticker table from a screener results page.
func Parse(html string) (TickerTable, error) {
	table, _, err := ParseWithStats(html)
	return table, err
}

// ParseWithStats is Parse, also reporting what was kept and dropped.
// Malformed rows are skipped; only a missing table is an error.
func ParseWithStats(html string) (TickerTable, ParseStats, error) {
	var stats ParseStats

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, stats, fetcher.NewStructureError(fmt.Sprintf("parse html: %v", err))
	}

	table := doc.Find("table#" + TableID).First()
	if table.Length() == 0 {
		return nil, stats, fetcher.NewStructureError(fmt.Sprintf("table %q not found", TableID))
	}

	fields, fromHeader := fieldList(table)
	stats.Fields = len(fields)
	stats.FromHeader = fromHeader

	result := make(TickerTable)
	table.Find("tbody > tr").Each(func(_ int, row *goquery.Selection) {
		cells := cellTexts(row.ChildrenFiltered("td"))
		if len(cells) == 0 {
			// header rows the parser folded into tbody
			return
		}
		stats.Rows++

		if len(cells) < len(fields)+1 {
			stats.Short++
			slog.Debug("dropping short row", "cells", len(cells), "want", len(fields)+1)
			return
		}

		ticker := cells[0]
		if ticker == "" {
			stats.Invalid++
			slog.Debug("dropping row without ticker")
			return
		}

		set, err := indicatorSet(fields, cells[1:])
		if err != nil {
			stats.Invalid++
			slog.Debug("dropping row with invalid cell", "ticker", ticker, "error", err.Error())
			return
		}

		if _, dup := result[ticker]; dup {
			stats.Duplicates++
		} else {
			stats.Kept++
		}
		result[ticker] = set
	})

	return result, stats, nil
}

// fieldList returns the indicator names for the data columns, preferring the
// table's own header so upstream column changes do not misalign values.
func fieldList(table *goquery.Selection) ([]string, bool) {
	header := table.Find("thead > tr").First().ChildrenFiltered("th, td")
	if header.Length() == 0 {
		// no thead: accept a leading row made only of <th> cells
		first := table.Find("tr").First()
		if first.ChildrenFiltered("td").Length() == 0 {
			header = first.ChildrenFiltered("th")
		}
	}

	labels := cellTexts(header)
	if len(labels) < 2 {
		return DefaultFields, false
	}
	return labels[1:], true
}

// indicatorSet pairs fields with values, failing on the first bad cell
func indicatorSet(fields, values []string) (IndicatorSet, error) {
	set := make(IndicatorSet, len(fields))
	for i, field := range fields {
		d, err := Normalize(values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		set[field] = d
	}
	return set, nil
}

func cellTexts(cells *goquery.Selection) []string {
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
