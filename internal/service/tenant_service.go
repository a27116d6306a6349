package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/rs/zerolog/log"
)

// TenantService holds the per-tenant setup that runs outside webhooks.
type TenantService interface {
	// DiscoverAssociationType finds and stores the contact ↔ property
	// association type of a tenant. Returns "" when the CRM has none.
	DiscoverAssociationType(ctx context.Context, locationID string) (string, error)
}

type tenantService struct {
	agencias repository.AgenciaRepository
	tokens   TokenGuard
	crm      CRMGateway
}

func NewTenantService(agencias repository.AgenciaRepository, tokens TokenGuard, crm CRMGateway) TenantService {
	return &tenantService{agencias: agencias, tokens: tokens, crm: crm}
}

func (s *tenantService) DiscoverAssociationType(ctx context.Context, locationID string) (string, error) {
	if _, err := s.agencias.FindByLocationID(ctx, locationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTenantNotFound, locationID)
		}
		return "", err
	}
	token, ok := s.tokens.GetValidToken(ctx, locationID)
	if !ok {
		return "", ErrNoToken
	}
	id, err := s.crm.FindAssociationTypeID(ctx, token, locationID, infra.PropertyAssociationTarget)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", nil
	}
	if err := s.agencias.SetAssociationType(ctx, locationID, id); err != nil {
		return "", err
	}
	log.Info().Str("location_id", locationID).Str("association_type_id", id).Msg("tenants: association type stored")
	return id, nil
}
