package service

import (
	"strings"

	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/model"

	"github.com/shopspring/decimal"
)

// defaultFeaturedThreshold applies when the property was loaded without its tenant.
var defaultFeaturedThreshold = decimal.NewFromInt(500000)

// PropertyRecord builds the custom-object properties sent to the CRM. The keys
// are the ones the property webhook reads back, so a round trip is lossless.
func PropertyRecord(p *model.Propiedad) map[string]any {
	threshold := defaultFeaturedThreshold
	if p.Agencia != nil {
		threshold = p.Agencia.FeaturedThreshold
	}

	rec := map[string]any{
		"precio":        fieldparse.FormatEUR(p.Precio),
		"habitaciones":  p.Habitaciones,
		"metros":        p.Metros,
		"estado":        fieldparse.FormatEstado(p.Estado),
		"animales":      fieldparse.FormatSiNo(p.Animales),
		"balcon":        fieldparse.FormatSiNo(p.Balcon),
		"garaje":        fieldparse.FormatSiNo(p.Garaje),
		"patioInterior": fieldparse.FormatSiNo(p.PatioInterior),
		"imagenesUrl":   fieldparse.FormatImages(p.Imagenes),
		"isFeatured":    p.Precio.GreaterThanOrEqual(threshold),
	}
	if p.Zona != nil {
		rec["zona"] = fieldparse.ZoneOptionValue(p.Zona.Nombre)
	}
	return rec
}

// LeadContact builds the contact sent to the CRM for a lead created locally.
func LeadContact(c *model.Cliente) infra.ContactInput {
	first, last := splitName(c.Nombre)
	in := infra.ContactInput{
		FirstName: first,
		LastName:  last,
	}
	if c.Email != nil {
		in.Email = *c.Email
	}
	if c.Telefono != nil {
		in.Phone = *c.Telefono
	}

	zonas := make([]string, 0, len(c.ZonasInteres))
	for _, z := range c.ZonasInteres {
		zonas = append(zonas, z.Nombre)
	}
	in.CustomFields = []infra.CustomField{
		{Key: "presupuesto", Value: fieldparse.FormatEUR(c.PresupuestoMaximo)},
		{Key: "habitaciones", Value: c.HabitacionesMinimas},
		{Key: "metros", Value: c.MetrosMinimos},
		{Key: "animales", Value: fieldparse.FormatSiNo(c.Animales)},
		{Key: "balcon", Value: fieldparse.FormatSiIndiferente(c.Balcon)},
		{Key: "garaje", Value: fieldparse.FormatSiIndiferente(c.Garaje)},
		{Key: "patioInterior", Value: fieldparse.FormatSiIndiferente(c.PatioInterior)},
		{Key: "zona_interes", Value: strings.Join(zonas, ",")},
	}
	return in
}

// splitName splits "Ana María López" into "Ana" and "María López".
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	first, rest, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(rest)
}
