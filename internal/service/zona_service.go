package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	ZonaStatusCreated   = "created"
	ZonaStatusUnchanged = "unchanged"

	msgZonaCreada    = "Se ha creado el registro correctamente"
	msgZonaExistente = "No se ha hecho nada (ya existia todo)"
)

// ZonaService exposes the zone catalog and keeps the CRM dropdowns that list
// zones in step with it.
type ZonaService interface {
	Arbol(ctx context.Context) (*dto.ZonaArbolResponse, error)
	Registrar(ctx context.Context, req dto.RegistrarZonaRequest) (*dto.RegistrarZonaResponse, error)
	// PushOptions rewrites the zone dropdowns of every active tenant that has
	// zone field ids configured. Returns how many tenants were updated.
	PushOptions(ctx context.Context) (int, error)
}

type zonaService struct {
	zonas    repository.ZonaRepository
	agencias repository.AgenciaRepository
	tokens   TokenGuard
	crm      CRMGateway
	runner   TaskRunner
}

// NewZonaService builds the service. With a nil runner new zones are not
// pushed automatically; callers invoke PushOptions themselves.
func NewZonaService(zonas repository.ZonaRepository, agencias repository.AgenciaRepository, tokens TokenGuard, crm CRMGateway, runner TaskRunner) ZonaService {
	return &zonaService{zonas: zonas, agencias: agencias, tokens: tokens, crm: crm, runner: runner}
}

func (s *zonaService) Arbol(ctx context.Context) (*dto.ZonaArbolResponse, error) {
	provincias, err := s.zonas.Tree(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.ZonaArbolResponse{Zonas: make([]dto.ProvinciaNodo, 0, len(provincias))}
	for _, p := range provincias {
		nodo := dto.ProvinciaNodo{Provincia: p.Nombre, Municipios: make([]dto.MunicipioNodo, 0, len(p.Municipios))}
		for _, m := range p.Municipios {
			zonas := make([]string, 0, len(m.Zonas))
			for _, z := range m.Zonas {
				zonas = append(zonas, z.Nombre)
			}
			nodo.Municipios = append(nodo.Municipios, dto.MunicipioNodo{Nombre: m.Nombre, Zonas: zonas})
		}
		out.Zonas = append(out.Zonas, nodo)
	}
	return out, nil
}

func (s *zonaService) Registrar(ctx context.Context, req dto.RegistrarZonaRequest) (*dto.RegistrarZonaResponse, error) {
	provincia := strings.TrimSpace(req.Provincia)
	municipio := strings.TrimSpace(req.Municipio)
	zona := strings.TrimSpace(req.Zona)
	if provincia == "" || municipio == "" || zona == "" {
		return nil, fmt.Errorf("%w: zona, municipio y provincia", ErrMissingField)
	}

	reg, err := s.zonas.Register(ctx, provincia, municipio, zona)
	if err != nil {
		return nil, fmt.Errorf("registrar zona: %w", err)
	}

	out := &dto.RegistrarZonaResponse{
		Status:    ZonaStatusUnchanged,
		Message:   msgZonaExistente,
		Provincia: provincia,
		Municipio: municipio,
		Zona:      reg.Zona.Nombre,
		ZonaID:    reg.Zona.ID.String(),
	}
	if reg.AlgoNuevo() {
		out.Status = ZonaStatusCreated
		out.Message = msgZonaCreada
	}
	log.Info().
		Str("provincia", provincia).
		Str("municipio", municipio).
		Str("zona", zona).
		Bool("zona_creada", reg.ZonaCreada).
		Msg("zonas: registration processed")

	if reg.ZonaCreada && s.runner != nil {
		err := s.runner.Submit("zonas:push_options", func(ctx context.Context) error {
			_, err := s.PushOptions(ctx)
			return err
		}, nil)
		if err != nil {
			log.Error().Err(err).Msg("zonas: could not schedule option push")
		}
	}
	return out, nil
}

func (s *zonaService) PushOptions(ctx context.Context) (int, error) {
	zonas, err := s.zonas.ListZonas(ctx)
	if err != nil {
		return 0, err
	}
	propOptions, leadOptions := zoneOptions(zonas)

	agencias, err := s.agencias.List(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range agencias {
		a := &agencias[i]
		if !a.Active || (a.PropertyZoneFieldID == nil && a.LeadZoneFieldID == nil) {
			continue
		}
		token, ok := s.tokens.GetValidToken(ctx, a.LocationID)
		if !ok {
			log.Warn().Str("location_id", a.LocationID).Msg("zonas: no valid token, skipping option push")
			continue
		}
		failed := false
		if a.PropertyZoneFieldID != nil && *a.PropertyZoneFieldID != "" {
			if err := s.crm.UpdateObjectFieldOptions(ctx, token, a.LocationID, *a.PropertyZoneFieldID, propOptions); err != nil {
				log.Error().Err(err).Str("location_id", a.LocationID).Msg("zonas: property field update failed")
				failed = true
			}
		}
		if a.LeadZoneFieldID != nil && *a.LeadZoneFieldID != "" {
			if err := s.crm.UpdateContactFieldOptions(ctx, token, a.LocationID, *a.LeadZoneFieldID, leadOptions); err != nil {
				log.Error().Err(err).Str("location_id", a.LocationID).Msg("zonas: lead field update failed")
				failed = true
			}
		}
		if !failed {
			updated++
		}
	}
	log.Info().Int("zonas", len(zonas)).Int("agencias", updated).Msg("zonas: options pushed")
	return updated, nil
}

// zoneOptions builds the dropdown contents. The same zone name in two
// municipalities yields one option.
func zoneOptions(zonas []model.Zona) ([]infra.FieldOption, []string) {
	seen := make(map[string]struct{}, len(zonas))
	props := make([]infra.FieldOption, 0, len(zonas))
	leads := make([]string, 0, len(zonas))
	for _, z := range zonas {
		value := fieldparse.ZoneOptionValue(z.Nombre)
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		props = append(props, infra.FieldOption{Label: z.Nombre, Value: value})
		leads = append(leads, z.Nombre)
	}
	return props, leads
}
