package testutil

import (
	"context"
	"strings"
	"sync/atomic"

	"fundamentusapi/internal/fetcher"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context, url string) (string, error)

	calls atomic.Int32
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.calls.Add(1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return "", nil
}

// Calls returns how many times Fetch was invoked
func (m *MockFetcher) Calls() int {
	return int(m.calls.Load())
}

// NewMockFetcher creates a simple mock fetcher with a predefined page and error
func NewMockFetcher(html string, err error) *MockFetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context, url string) (string, error) {
			return html, err
		},
	}
}

var _ fetcher.Fetcher = (*MockFetcher)(nil)

// ScreenerPage renders a results page with a table#resultado.
// A nil header renders the table without a <thead>.
func ScreenerPage(header []string, rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<html><head><meta charset=\"utf-8\"></head><body>\n")
	b.WriteString("<table id=\"resultado\">\n")
	if header != nil {
		b.WriteString("<thead><tr>")
		for _, h := range header {
			b.WriteString("<th>\n  " + h + "\n</th>")
		}
		b.WriteString("</tr></thead>\n")
	}
	b.WriteString("<tbody>\n")
	for _, row := range rows {
		b.WriteString("<tr>")
		for i, cell := range row {
			if i == 0 {
				b.WriteString("<td><span class=\"tips\"><a href=\"detalhes.php?papel=" + cell + "\">" + cell + "</a></span></td>")
				continue
			}
			b.WriteString("<td> " + cell + " </td>")
		}
		b.WriteString("</tr>\n")
	}
	b.WriteString("</tbody>\n</table>\n</body></html>")
	return b.String()
}

// ScreenerHeader returns the live site's header labels, ticker column first
func ScreenerHeader() []string {
	return []string{
		"Papel", "Cotação", "P/L", "P/VP", "PSR", "Div.Yield", "P/Ativo",
		"P/Cap.Giro", "P/EBIT", "P/Ativ Circ.Liq", "EV/EBIT", "EV/EBITDA",
		"Mrg Ebit", "Mrg. Líq.", "Liq. Corr.", "ROIC", "ROE", "Liq.2meses",
		"Patrim. Líq", "Dív.Brut/ Patrim.", "Cresc. Rec.5a",
	}
}

// ScreenerRow returns a well-formed 21-cell row for ticker
func ScreenerRow(ticker, price string) []string {
	return []string{
		ticker, price, "12,50", "1,80", "2,30", "3,50%", "0,10",
		"0,20", "0,30", "0,40", "0,50", "0,60",
		"25,30%", "18,40%", "1,10", "14,20%", "16,90%", "1.234.567,00",
		"45.678.901.000,00", "0,45", "8,70%",
	}
}
