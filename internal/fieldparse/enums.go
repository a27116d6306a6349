package fieldparse

import (
	"strings"

	"github.com/creeyes/crmprueba/internal/model"
	"golang.org/x/text/cases"
)

func normalise(v any) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// PrefSiNo maps "Si"/"No" to the binary preference. Anything else is "no".
func PrefSiNo(v any) model.Preferencia {
	if normalise(v) == "si" {
		return model.PrefSi
	}
	return model.PrefNo
}

// PrefSiIndiferente maps "Si"/"Indiferente" to the lead's ternary preference.
// Anything else is "ind".
func PrefSiIndiferente(v any) model.Preferencia {
	if normalise(v) == "si" {
		return model.PrefSi
	}
	return model.PrefIndiferente
}

// Estado maps the CRM listing state. Underscores are read as spaces, so both
// "A la venta" and "a_la_venta" are active. Unknown states are noficial.
func Estado(v any) model.EstadoPropiedad {
	switch strings.ReplaceAll(normalise(v), "_", " ") {
	case "a la venta":
		return model.EstadoActivo
	case "vendido":
		return model.EstadoVendido
	default:
		return model.EstadoNoOficial
	}
}

// ImageURLs extracts the urls from a CRM file field: a list of {"url": ...}.
// Plain strings in the list are accepted as urls too.
func ImageURLs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	urls := make([]string, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case map[string]any:
			if u, ok := t["url"].(string); ok && u != "" {
				urls = append(urls, u)
			}
		case string:
			if t != "" {
				urls = append(urls, t)
			}
		}
	}
	return urls
}

// ZoneName turns a CRM option value ("casco_antiguo") into a zone name ("casco antiguo").
func ZoneName(v any) string {
	return strings.ReplaceAll(normalise(v), "_", " ")
}

// ZoneList splits a comma separated list of zone names, dropping blanks.
func ZoneList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := ZoneName(p); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// String returns v as a trimmed string, or "" when it is not a string.
func String(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// FoldKey is the case-insensitive lookup key for catalog names
// ("Málaga", "MÁLAGA" and "málaga" share one key). Casers are stateful, so a
// new one is built per call.
func FoldKey(name string) string {
	return cases.Fold().String(strings.Join(strings.Fields(name), " "))
}
