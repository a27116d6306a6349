package fieldparse

import (
	"encoding/json"
	"testing"

	"github.com/creeyes/crmprueba/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrency_SymbolDecidesSeparators(t *testing.T) {
	p := NewParser(StyleUS)

	cases := []struct {
		in   any
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"€150.000,50", "150000.5"},
		{"150.000,50 €", "150000.5"},
		{"EUR 1.200", "1200"},
		{"$250,000 USD", "250000"},
		{"USD 250,000$", "250000"},
		{"€ 150.000,50 EUR", "150000.5"},
		{"usd 99", "99"},
		{"USD", "0"},
		{"1234.56", "1234.56"},
		{"1,234,567", "1234567"},
		{"  1234  ", "1234"},
		{"", "0"},
		{nil, "0"},
		{"abc", "0"},
		{"-50", "0"},
		{float64(300000), "300000"},
		{json.Number("99.5"), "99.5"},
	}
	for _, tc := range cases {
		got := p.Currency(tc.in)
		assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "input %#v: got %s", tc.in, got)
	}
}

func TestCurrency_DefaultStyleOnlyWithoutSymbol(t *testing.T) {
	eu := NewParser(StyleEU)

	assert.Equal(t, "150000", eu.Currency("150.000").String())
	assert.Equal(t, "1.5", eu.Currency("1,5").String())
	// symbol wins over the configured default
	assert.Equal(t, "1234.56", eu.Currency("$1,234.56").String())
	// unknown symbol is dropped, default style applies
	assert.Equal(t, "2000", eu.Currency("£2.000").String())
}

func TestParseCurrencyStyle(t *testing.T) {
	assert.Equal(t, StyleEU, ParseCurrencyStyle("eur"))
	assert.Equal(t, StyleUS, ParseCurrencyStyle("USD"))
	assert.Equal(t, StyleUS, ParseCurrencyStyle("whatever"))
}

func TestInt(t *testing.T) {
	assert.Equal(t, 5, Int("5"))
	assert.Equal(t, 3, Int("3.7"))
	assert.Equal(t, 0, Int(nil))
	assert.Equal(t, 0, Int(""))
	assert.Equal(t, 0, Int("abc"))
	assert.Equal(t, 0, Int("-2"))
	assert.Equal(t, 4, Int(float64(4)))
	assert.Equal(t, 80, Int(json.Number("80")))
}

func TestPreferences(t *testing.T) {
	assert.Equal(t, model.PrefSi, PrefSiNo("Si"))
	assert.Equal(t, model.PrefNo, PrefSiNo("No"))
	assert.Equal(t, model.PrefNo, PrefSiNo(nil))
	assert.Equal(t, model.PrefNo, PrefSiNo("Indiferente"))

	assert.Equal(t, model.PrefSi, PrefSiIndiferente("SI"))
	assert.Equal(t, model.PrefIndiferente, PrefSiIndiferente("Indiferente"))
	assert.Equal(t, model.PrefIndiferente, PrefSiIndiferente(""))
}

func TestEstado(t *testing.T) {
	assert.Equal(t, model.EstadoActivo, Estado("A la venta"))
	assert.Equal(t, model.EstadoActivo, Estado("a_la_venta"))
	assert.Equal(t, model.EstadoVendido, Estado("Vendido"))
	assert.Equal(t, model.EstadoNoOficial, Estado("no_es_oficial"))
	assert.Equal(t, model.EstadoNoOficial, Estado(nil))
}

func TestImageURLs(t *testing.T) {
	in := []any{
		map[string]any{"url": "https://cdn/a.jpg"},
		map[string]any{"name": "no-url"},
		"https://cdn/b.jpg",
		42,
	}
	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.jpg"}, ImageURLs(in))
	assert.Empty(t, ImageURLs("null"))
	assert.Empty(t, ImageURLs(nil))
}

func TestZones(t *testing.T) {
	assert.Equal(t, "casco antiguo", ZoneName("Casco_Antiguo"))
	assert.Equal(t, []string{"almeda", "centro"}, ZoneList("Almeda, Centro ,"))
	assert.Equal(t, []string{"la marina"}, ZoneList([]any{"la_marina", 3}))
	assert.Equal(t, FoldKey("Málaga"), FoldKey("  MÁLAGA "))
	assert.Equal(t, "casco_antiguo", ZoneOptionValue(" Casco Antiguo"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "€150.000,50", FormatEUR(decimal.RequireFromString("150000.5")))
	assert.Equal(t, "€0,00", FormatEUR(decimal.Zero))
	assert.Equal(t, "€999,99", FormatEUR(decimal.RequireFromString("999.99")))
	assert.Equal(t, "€1.000.000,00", FormatEUR(decimal.NewFromInt(1000000)))

	assert.Equal(t, "Si", FormatSiNo(model.PrefSi))
	assert.Equal(t, "No", FormatSiNo(model.PrefNo))
	assert.Equal(t, "Indiferente", FormatSiIndiferente(model.PrefIndiferente))
	assert.Equal(t, "a_la_venta", FormatEstado(model.EstadoActivo))
	assert.Equal(t, "no_es_oficial", FormatEstado(model.EstadoNoOficial))
	assert.Equal(t, []FileURL{{URL: "x"}}, FormatImages([]string{"x", ""}))
}

func TestRoundTrip_EstadoAndCurrency(t *testing.T) {
	p := NewParser(StyleUS)
	for _, e := range []model.EstadoPropiedad{model.EstadoActivo, model.EstadoVendido, model.EstadoNoOficial} {
		assert.Equal(t, e, Estado(FormatEstado(e)))
	}
	price := decimal.RequireFromString("275500.25")
	assert.True(t, price.Equal(p.Currency(FormatEUR(price))))
}
