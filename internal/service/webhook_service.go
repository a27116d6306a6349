package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusIgnored = "ignored"
	StatusDeleted = "deleted"
)

// WebhookService ingests property and lead change notifications from the CRM.
// Both handlers are idempotent upserts keyed by (tenant, remote id), followed
// by a recompute of the entity's matches and a background association push.
type WebhookService interface {
	Propiedad(ctx context.Context, in dto.WebhookPayload) (*dto.WebhookResponse, error)
	Cliente(ctx context.Context, in dto.WebhookPayload) (*dto.WebhookResponse, error)
}

type webhookService struct {
	agencias    repository.AgenciaRepository
	propiedades repository.PropiedadRepository
	clientes    repository.ClienteRepository
	zonas       repository.ZonaRepository
	matching    MatchingService
	tokens      TokenGuard
	dispatcher  AssociationDispatcher
	parser      *fieldparse.Parser
}

type WebhookDeps struct {
	Agencias    repository.AgenciaRepository
	Propiedades repository.PropiedadRepository
	Clientes    repository.ClienteRepository
	Zonas       repository.ZonaRepository
	Matching    MatchingService
	Tokens      TokenGuard
	Dispatcher  AssociationDispatcher
	Parser      *fieldparse.Parser
}

func NewWebhookService(d WebhookDeps) WebhookService {
	return &webhookService{
		agencias:    d.Agencias,
		propiedades: d.Propiedades,
		clientes:    d.Clientes,
		zonas:       d.Zonas,
		matching:    d.Matching,
		tokens:      d.Tokens,
		dispatcher:  d.Dispatcher,
		parser:      d.Parser,
	}
}

// ── Propiedad ─────────────────────────────────────────────────────────────────

func (s *webhookService) Propiedad(ctx context.Context, in dto.WebhookPayload) (*dto.WebhookResponse, error) {
	locationID := tenantID(in)
	if locationID == "" {
		return nil, fmt.Errorf("%w: location.id", ErrMissingField)
	}
	recordID := firstNonEmpty(fieldparse.String(in.CustomData["contact_id"]), in.ID)
	if recordID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}
	agencia, err := s.loadAgencia(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !agencia.Active {
		return &dto.WebhookResponse{Status: StatusIgnored, Msg: "Agencia inactiva"}, nil
	}

	p := &model.Propiedad{
		LocationID:    locationID,
		CRMRecordID:   &recordID,
		Precio:        s.parser.Currency(lookup(in, "precio")),
		Habitaciones:  fieldparse.Int(lookup(in, "habitaciones")),
		Metros:        fieldparse.Int(in.CustomData["metros"]),
		Estado:        fieldparse.Estado(in.CustomData["estado"]),
		Imagenes:      fieldparse.ImageURLs(in.CustomData["imagenesUrl"]),
		Animales:      fieldparse.PrefSiNo(in.CustomData["animales"]),
		Balcon:        fieldparse.PrefSiNo(in.CustomData["balcon"]),
		Garaje:        fieldparse.PrefSiNo(in.CustomData["garaje"]),
		PatioInterior: fieldparse.PrefSiNo(in.CustomData["patioInterior"]),
		SyncStatus:    model.SyncSynced,
	}
	if name := fieldparse.ZoneName(in.CustomData["zona"]); name != "" {
		z, err := s.zonas.FindByName(ctx, name)
		switch {
		case err == nil:
			p.ZonaID = &z.ID
		case errors.Is(err, repository.ErrNotFound):
			log.Warn().Str("location_id", locationID).Str("zona", name).Msg("webhook_propiedad: unknown zone, property saved without zone")
		default:
			return nil, err
		}
	}

	if err := s.propiedades.UpsertByRecordID(ctx, p); err != nil {
		return nil, fmt.Errorf("guardar propiedad: %w", err)
	}

	res, err := s.matching.RecomputeForPropiedad(ctx, p)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("location_id", locationID).
		Str("record_id", recordID).
		Str("estado", string(p.Estado)).
		Int("matches", res.Count).
		Msg("webhook_propiedad: matches recomputed")

	return s.respond(ctx, agencia, recordID, res, false), nil
}

// ── Cliente ───────────────────────────────────────────────────────────────────

func (s *webhookService) Cliente(ctx context.Context, in dto.WebhookPayload) (*dto.WebhookResponse, error) {
	locationID := tenantID(in)
	if locationID == "" {
		return nil, fmt.Errorf("%w: location.id", ErrMissingField)
	}
	contactID := firstNonEmpty(in.ID, fieldparse.String(in.CustomData["contact_id"]))
	if contactID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}
	agencia, err := s.loadAgencia(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if !agencia.Active {
		return &dto.WebhookResponse{Status: StatusIgnored, Msg: "Agencia inactiva"}, nil
	}

	nombre := fieldparse.String(in.CustomData["full_name"])
	if nombre == "" {
		nombre = "Desconocido"
	}
	c := &model.Cliente{
		LocationID:          locationID,
		CRMContactID:        &contactID,
		Nombre:              nombre,
		Email:               optional(in.Email),
		Telefono:            optional(in.Phone),
		PresupuestoMaximo:   s.parser.Currency(lookup(in, "presupuesto")),
		HabitacionesMinimas: fieldparse.Int(firstPresent(in.CustomData["habitaciones"], in.Data["habitaciones_min"])),
		MetrosMinimos:       fieldparse.Int(in.CustomData["metros"]),
		Animales:            fieldparse.PrefSiNo(in.CustomData["animales"]),
		Balcon:              fieldparse.PrefSiIndiferente(in.CustomData["balcon"]),
		Garaje:              fieldparse.PrefSiIndiferente(in.CustomData["garaje"]),
		PatioInterior:       fieldparse.PrefSiIndiferente(in.CustomData["patioInterior"]),
		SyncStatus:          model.SyncSynced,
	}
	if names := fieldparse.ZoneList(in.CustomData["zona_interes"]); len(names) > 0 {
		zonas, err := s.zonas.FindByNames(ctx, names)
		if err != nil {
			return nil, err
		}
		if len(zonas) < len(names) {
			log.Warn().Str("location_id", locationID).Strs("zonas", names).Int("found", len(zonas)).
				Msg("webhook_cliente: some zones of interest are unknown")
		}
		c.ZonasInteres = zonas
	}

	if err := s.clientes.UpsertByContactID(ctx, c); err != nil {
		return nil, fmt.Errorf("guardar cliente: %w", err)
	}

	res, err := s.matching.RecomputeForCliente(ctx, c)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("location_id", locationID).
		Str("contact_id", contactID).
		Int("zonas", len(c.ZonasInteres)).
		Int("matches", res.Count).
		Msg("webhook_cliente: matches recomputed")

	return s.respond(ctx, agencia, contactID, res, true), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *webhookService) loadAgencia(ctx context.Context, locationID string) (*model.Agencia, error) {
	a, err := s.agencias.FindByLocationID(ctx, locationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, locationID)
	}
	return a, err
}

func (s *webhookService) respond(ctx context.Context, agencia *model.Agencia, originID string, res *MatchResult, originIsLead bool) *dto.WebhookResponse {
	switch pushAssociations(ctx, s.tokens, s.dispatcher, agencia, originID, res.RemoteIDs, originIsLead) {
	case pushNoAssocType:
		return &dto.WebhookResponse{Status: StatusWarning, Msg: "Falta Association ID", MatchesFound: res.Count}
	default:
		return &dto.WebhookResponse{Status: StatusSuccess, MatchesFound: res.Count}
	}
}

// tenantID reads the location from the places the CRM puts it.
func tenantID(in dto.WebhookPayload) string {
	return firstNonEmpty(in.Location.ID, in.LocationID, fieldparse.String(in.CustomData["location_id"]))
}

// lookup reads a custom field, falling back to the legacy data object.
func lookup(in dto.WebhookPayload, key string) any {
	return firstPresent(in.CustomData[key], in.Data[key])
}

func firstPresent(vals ...any) any {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
