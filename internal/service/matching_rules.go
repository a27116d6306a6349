package service

import (
	"slices"

	"github.com/creeyes/crmprueba/internal/model"
)

// The predicates below mirror the SQL in PropiedadRepository.MatchingForCliente
// and ClienteRepository.MatchingForPropiedad. They are used by the in-memory
// stores and to double check the queries in tests.

// PropertyAcceptsLead reports whether lead c belongs in the match set of property p.
// The search is anchored on the property's zone: a property without a zone
// accepts nobody and a lead without zones is never found.
func PropertyAcceptsLead(p *model.Propiedad, c *model.Cliente) bool {
	if p.ZonaID == nil || p.LocationID != c.LocationID {
		return false
	}
	if !slices.Contains(c.ZonaIDs(), *p.ZonaID) {
		return false
	}
	if c.PresupuestoMaximo.LessThan(p.Precio) ||
		c.HabitacionesMinimas > p.Habitaciones ||
		c.MetrosMinimos > p.Metros {
		return false
	}
	// A property lacking an amenity only rejects the leads that require it.
	if p.Animales != model.PrefSi && c.Animales != model.PrefNo {
		return false
	}
	for _, pair := range [][2]model.Preferencia{
		{p.Balcon, c.Balcon},
		{p.Garaje, c.Garaje},
		{p.PatioInterior, c.PatioInterior},
	} {
		if pair[0] != model.PrefSi && pair[1] != model.PrefIndiferente {
			return false
		}
	}
	return true
}

// LeadAcceptsProperty reports whether property p belongs in the match set of lead c.
// Only active listings qualify and an empty zone set means any zone.
func LeadAcceptsProperty(c *model.Cliente, p *model.Propiedad) bool {
	if p.LocationID != c.LocationID || p.Estado != model.EstadoActivo {
		return false
	}
	if p.Precio.GreaterThan(c.PresupuestoMaximo) ||
		p.Habitaciones < c.HabitacionesMinimas ||
		p.Metros < c.MetrosMinimos {
		return false
	}
	if zonas := c.ZonaIDs(); len(zonas) > 0 {
		if p.ZonaID == nil || !slices.Contains(zonas, *p.ZonaID) {
			return false
		}
	}
	for _, pair := range [][2]model.Preferencia{
		{c.Animales, p.Animales},
		{c.Balcon, p.Balcon},
		{c.Garaje, p.Garaje},
		{c.PatioInterior, p.PatioInterior},
	} {
		if pair[0] == model.PrefSi && pair[1] != model.PrefSi {
			return false
		}
	}
	return true
}
