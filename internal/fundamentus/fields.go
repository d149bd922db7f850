package fundamentus

// DefaultFields is the screener's column order after the ticker column.
// It is only used when the table has no header row, and must be kept in
// sync with the site by hand.
var DefaultFields = []string{
	"Cotacao",
	"P/L",
	"P/VP",
	"PSR",
	"DY",
	"P/Ativo",
	"P/Cap.Giro",
	"P/EBIT",
	"P/ACL",
	"EV/EBIT",
	"EV/EBITDA",
	"Mrg.Ebit",
	"Mrg.Liq.",
	"Liq.Corr.",
	"ROIC",
	"ROE",
	"Liq.2meses",
	"Pat.Liq",
	"Div.Brut/Pat.",
	"Cresc.5anos",
}
