// Package fieldparse converts the loosely typed values that arrive in CRM
// webhook payloads into domain values, and formats domain values back into
// the shapes the CRM expects.
//
// Parsing is permissive: anything that cannot be understood becomes the zero
// value (0, "no", "ind", noficial) instead of an error, because the CRM is the
// source of truth and a bad field must never block synchronisation.
package fieldparse

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyStyle decides which character separates thousands and which one
// separates decimals.
type CurrencyStyle int

const (
	// StyleUS: "1,234.56"
	StyleUS CurrencyStyle = iota
	// StyleEU: "1.234,56"
	StyleEU
)

// ParseCurrencyStyle maps a config value (USD, EUR, US, EU) to a style.
// Unknown values fall back to StyleUS.
func ParseCurrencyStyle(s string) CurrencyStyle {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EUR", "EU", "€":
		return StyleEU
	default:
		return StyleUS
	}
}

func (s CurrencyStyle) String() string {
	if s == StyleEU {
		return "EUR"
	}
	return "USD"
}

var currencyMarkers = []struct {
	marker string
	style  CurrencyStyle
}{
	{"€", StyleEU},
	{"EUR", StyleEU},
	{"$", StyleUS},
	{"USD", StyleUS},
}

// Parser holds the numeric parsing policy.
// A currency symbol in the value always wins; DefaultStyle applies only to
// values without a recognised symbol.
type Parser struct {
	DefaultStyle CurrencyStyle
}

func NewParser(defaultStyle CurrencyStyle) *Parser {
	return &Parser{DefaultStyle: defaultStyle}
}

// Currency parses a money amount. Negative or unparseable values yield zero.
func (p *Parser) Currency(v any) decimal.Decimal {
	var d decimal.Decimal
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case json.Number:
		parsed, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	case decimal.Decimal:
		d = t
	case string:
		d = p.currencyString(t)
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

func (p *Parser) currencyString(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" || s == "null" {
		return decimal.Zero
	}

	// Every marker at either end is stripped ("$250,000 USD"); the first one
	// found decides the style.
	style, found := p.DefaultStyle, false
	for stripped := true; stripped; {
		stripped = false
		s = strings.TrimSpace(s)
		upper := strings.ToUpper(s)
		for _, m := range currencyMarkers {
			switch {
			case strings.HasPrefix(upper, m.marker):
				s, stripped = s[len(m.marker):], true
			case strings.HasSuffix(upper, m.marker):
				s, stripped = s[:len(s)-len(m.marker)], true
			}
			if stripped {
				if !found {
					style, found = m.style, true
				}
				break
			}
		}
	}
	// An unrecognised leading symbol (£, ¥ ...) is dropped and the default style applies.
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '-' && r != '.' && r != ','
	})
	s = strings.ReplaceAll(s, " ", "")

	switch style {
	case StyleEU:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int parses a non-negative integer. "3.7" truncates to 3; anything
// unparseable or negative yields 0.
func Int(v any) int {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		return max(t, 0)
	case int64:
		return max(int(t), 0)
	case float64:
		f = t
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f <= 0 {
		return 0
	}
	return int(f)
}
