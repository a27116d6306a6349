package service

import (
	"context"
	"fmt"

	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MatchResult is the outcome of recomputing one side of the match relation.
type MatchResult struct {
	IDs []uuid.UUID
	// RemoteIDs are the CRM ids of the matched counterparts that already exist
	// in the CRM; only those can be associated remotely.
	RemoteIDs []string
	Delta     repository.Delta
	Count     int
}

// MatchingService evaluates the rules for one entity and rewrites its side of
// the relation. It never talks to the CRM.
type MatchingService interface {
	RecomputeForPropiedad(ctx context.Context, p *model.Propiedad) (*MatchResult, error)
	RecomputeForCliente(ctx context.Context, c *model.Cliente) (*MatchResult, error)
}

type matchingService struct {
	propiedades repository.PropiedadRepository
	clientes    repository.ClienteRepository
	matches     repository.MatchRepository
}

func NewMatchingService(propiedades repository.PropiedadRepository, clientes repository.ClienteRepository, matches repository.MatchRepository) MatchingService {
	return &matchingService{propiedades: propiedades, clientes: clientes, matches: matches}
}

// ── Property side ─────────────────────────────────────────────────────────────

func (s *matchingService) RecomputeForPropiedad(ctx context.Context, p *model.Propiedad) (*MatchResult, error) {
	leads := []model.Cliente{}
	// A listing that is sold or unofficial keeps no leads.
	if p.Estado == model.EstadoActivo {
		var err error
		leads, err = s.clientes.MatchingForPropiedad(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("buscar clientes para propiedad %s: %w", p.ID, err)
		}
	}

	out := &MatchResult{IDs: make([]uuid.UUID, 0, len(leads)), RemoteIDs: make([]string, 0, len(leads))}
	for i := range leads {
		out.IDs = append(out.IDs, leads[i].ID)
		if rid := leads[i].RemoteID(); rid != "" {
			out.RemoteIDs = append(out.RemoteIDs, rid)
		}
	}

	delta, n, err := s.matches.ReplaceClientesForPropiedad(ctx, p.ID, out.IDs)
	if err != nil {
		return nil, fmt.Errorf("reconciliar matches de propiedad %s: %w", p.ID, err)
	}
	out.Delta, out.Count = delta, n

	log.Debug().
		Str("propiedad_id", p.ID.String()).
		Int("matches", n).
		Int("added", len(delta.Added)).
		Int("removed", len(delta.Removed)).
		Msg("matching: property side recomputed")
	return out, nil
}

// ── Lead side ─────────────────────────────────────────────────────────────────

func (s *matchingService) RecomputeForCliente(ctx context.Context, c *model.Cliente) (*MatchResult, error) {
	props, err := s.propiedades.MatchingForCliente(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("buscar propiedades para cliente %s: %w", c.ID, err)
	}

	out := &MatchResult{IDs: make([]uuid.UUID, 0, len(props)), RemoteIDs: make([]string, 0, len(props))}
	for i := range props {
		out.IDs = append(out.IDs, props[i].ID)
		if rid := props[i].RemoteID(); rid != "" {
			out.RemoteIDs = append(out.RemoteIDs, rid)
		}
	}

	delta, n, err := s.matches.ReplacePropiedadesForCliente(ctx, c.ID, out.IDs)
	if err != nil {
		return nil, fmt.Errorf("reconciliar matches de cliente %s: %w", c.ID, err)
	}
	out.Delta, out.Count = delta, n

	log.Debug().
		Str("cliente_id", c.ID.String()).
		Int("matches", n).
		Int("added", len(delta.Added)).
		Int("removed", len(delta.Removed)).
		Msg("matching: lead side recomputed")
	return out, nil
}
