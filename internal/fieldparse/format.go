package fieldparse

import (
	"strings"

	"github.com/creeyes/crmprueba/internal/model"
	"github.com/shopspring/decimal"
)

// FormatEUR renders an amount the way the CRM currency field shows it: "€150.000,50".
func FormatEUR(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "€" + b.String() + "," + frac
}

func FormatSiNo(p model.Preferencia) string {
	if p == model.PrefSi {
		return "Si"
	}
	return "No"
}

func FormatSiIndiferente(p model.Preferencia) string {
	if p == model.PrefSi {
		return "Si"
	}
	return "Indiferente"
}

// FormatEstado returns the CRM option value for a listing state.
func FormatEstado(e model.EstadoPropiedad) string {
	switch e {
	case model.EstadoActivo:
		return "a_la_venta"
	case model.EstadoVendido:
		return "vendido"
	default:
		return "no_es_oficial"
	}
}

// FileURL is one entry of a CRM file field.
type FileURL struct {
	URL string `json:"url"`
}

func FormatImages(urls []string) []FileURL {
	out := make([]FileURL, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, FileURL{URL: u})
		}
	}
	return out
}

// ZoneOptionValue is the inverse of ZoneName: "Casco Antiguo" → "casco_antiguo".
func ZoneOptionValue(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
