package fundamentus

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// localeReplacer strips thousands separators and percent signs and turns
// the decimal comma into a point: "1.234,56%" -> "1234.56".
var localeReplacer = strings.NewReplacer(".", "", "%", "", ",", ".")

// ParseError reports a cell that is not a pt-BR formatted number.
type ParseError struct {
	Value string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q as decimal: %v", e.Value, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Normalize converts a pt-BR formatted number such as "1.234,56" or "5,6%"
// into an exact decimal.
func Normalize(raw string) (decimal.Decimal, error) {
	cleaned := localeReplacer.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, &ParseError{Value: raw, Cause: fmt.Errorf("empty value")}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &ParseError{Value: raw, Cause: err}
	}
	return d, nil
}
