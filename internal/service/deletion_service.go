package service

import (
	"context"
	"fmt"

	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	EventContactDelete = "ContactDelete"
	EventRecordDelete  = "RecordDelete"
)

// DeletionService applies CRM delete events to the local mirror. Deleting a
// row that is already gone counts as success so redeliveries are harmless.
type DeletionService interface {
	Handle(ctx context.Context, in dto.WebhookPayload) (*dto.DeleteResponse, error)
}

type deletionService struct {
	propiedades       repository.PropiedadRepository
	clientes          repository.ClienteRepository
	propertyObjectKey string
}

func NewDeletionService(propiedades repository.PropiedadRepository, clientes repository.ClienteRepository, propertyObjectKey string) DeletionService {
	return &deletionService{propiedades: propiedades, clientes: clientes, propertyObjectKey: propertyObjectKey}
}

func (s *deletionService) Handle(ctx context.Context, in dto.WebhookPayload) (*dto.DeleteResponse, error) {
	var kind string
	switch {
	case in.Type == EventContactDelete:
		kind = "cliente"
	case in.Type == EventRecordDelete && in.ObjectKey == s.propertyObjectKey:
		kind = "propiedad"
	default:
		return &dto.DeleteResponse{
			Status:  StatusIgnored,
			Message: fmt.Sprintf("Evento %q no gestionado", in.Type),
		}, nil
	}

	if in.ID == "" {
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	}
	locationID := tenantID(in)
	if locationID == "" {
		return nil, fmt.Errorf("%w: locationId", ErrMissingField)
	}

	var (
		existed bool
		err     error
	)
	if kind == "cliente" {
		existed, err = s.clientes.DeleteByContactID(ctx, locationID, in.ID)
	} else {
		existed, err = s.propiedades.DeleteByRecordID(ctx, locationID, in.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("borrar %s %s: %w", kind, in.ID, err)
	}

	log.Info().
		Str("location_id", locationID).
		Str("kind", kind).
		Str("id", in.ID).
		Bool("existed", existed).
		Msg("webhook_delete: record processed")
	return &dto.DeleteResponse{Status: StatusDeleted, Message: "Registro procesado correctamente"}, nil
}
