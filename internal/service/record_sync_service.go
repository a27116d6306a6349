package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoToken is recorded on rows whose tenant has no usable credential.
var ErrNoToken = errors.New("sin token valido para la agencia")

// RecordSyncService pushes locally created or edited rows to the CRM. The
// caller has already claimed the row (status syncing); every outcome leaves it
// in synced or error.
type RecordSyncService interface {
	SyncCliente(ctx context.Context, id uuid.UUID) error
	SyncPropiedad(ctx context.Context, id uuid.UUID) error
}

type recordSyncService struct {
	propiedades       repository.PropiedadRepository
	clientes          repository.ClienteRepository
	matching          MatchingService
	tokens            TokenGuard
	crm               CRMGateway
	dispatcher        AssociationDispatcher
	propertyObjectKey string
}

type RecordSyncDeps struct {
	Propiedades       repository.PropiedadRepository
	Clientes          repository.ClienteRepository
	Matching          MatchingService
	Tokens            TokenGuard
	CRM               CRMGateway
	Dispatcher        AssociationDispatcher
	PropertyObjectKey string
}

func NewRecordSyncService(d RecordSyncDeps) RecordSyncService {
	return &recordSyncService{
		propiedades:       d.Propiedades,
		clientes:          d.Clientes,
		matching:          d.Matching,
		tokens:            d.Tokens,
		crm:               d.CRM,
		dispatcher:        d.Dispatcher,
		propertyObjectKey: d.PropertyObjectKey,
	}
}

// ── Leads ─────────────────────────────────────────────────────────────────────

func (s *recordSyncService) SyncCliente(ctx context.Context, id uuid.UUID) error {
	c, err := s.clientes.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("cargar cliente %s: %w", id, err)
	}
	token, ok := s.tokens.GetValidToken(ctx, c.LocationID)
	if !ok {
		return s.failCliente(ctx, c, ErrNoToken)
	}

	contactID := c.RemoteID()
	if contactID == "" {
		contactID, err = s.crm.CreateContact(ctx, token, c.LocationID, LeadContact(c))
	} else {
		err = s.crm.UpdateContact(ctx, token, contactID, LeadContact(c))
	}
	if err != nil {
		return s.failCliente(ctx, c, err)
	}
	if err := s.clientes.MarkSynced(ctx, c.ID, contactID); err != nil {
		return fmt.Errorf("marcar cliente %s sincronizado: %w", c.ID, err)
	}
	c.CRMContactID = &contactID
	log.Info().Str("cliente_id", c.ID.String()).Str("contact_id", contactID).Msg("record_sync: lead synced")

	res, err := s.matching.RecomputeForCliente(ctx, c)
	if err != nil {
		return err
	}
	if c.Agencia != nil {
		pushAssociations(ctx, s.tokens, s.dispatcher, c.Agencia, contactID, res.RemoteIDs, true)
	}
	return nil
}

func (s *recordSyncService) failCliente(ctx context.Context, c *model.Cliente, cause error) error {
	// The CRM was never reached: hand the row back untouched.
	if errors.Is(cause, infra.ErrCircuitOpen) {
		return errors.Join(cause, s.clientes.ReleaseClaim(ctx, []uuid.UUID{c.ID}))
	}
	log.Error().Err(cause).Str("cliente_id", c.ID.String()).Str("location_id", c.LocationID).Msg("record_sync: lead sync failed")
	if err := s.clientes.MarkError(ctx, c.ID, cause.Error()); err != nil {
		log.Error().Err(err).Str("cliente_id", c.ID.String()).Msg("record_sync: failed to mark lead error")
	}
	return cause
}

// ── Properties ────────────────────────────────────────────────────────────────

func (s *recordSyncService) SyncPropiedad(ctx context.Context, id uuid.UUID) error {
	p, err := s.propiedades.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("cargar propiedad %s: %w", id, err)
	}
	token, ok := s.tokens.GetValidToken(ctx, p.LocationID)
	if !ok {
		return s.failPropiedad(ctx, p, ErrNoToken)
	}

	recordID := p.RemoteID()
	if recordID == "" {
		recordID, err = s.crm.CreateRecord(ctx, token, p.LocationID, s.propertyObjectKey, PropertyRecord(p))
	} else {
		err = s.crm.UpdateRecord(ctx, token, p.LocationID, s.propertyObjectKey, recordID, PropertyRecord(p))
	}
	if err != nil {
		return s.failPropiedad(ctx, p, err)
	}
	if err := s.propiedades.MarkSynced(ctx, p.ID, recordID); err != nil {
		return fmt.Errorf("marcar propiedad %s sincronizada: %w", p.ID, err)
	}
	p.CRMRecordID = &recordID
	log.Info().Str("propiedad_id", p.ID.String()).Str("record_id", recordID).Msg("record_sync: property synced")

	res, err := s.matching.RecomputeForPropiedad(ctx, p)
	if err != nil {
		return err
	}
	if p.Agencia != nil {
		pushAssociations(ctx, s.tokens, s.dispatcher, p.Agencia, recordID, res.RemoteIDs, false)
	}
	return nil
}

func (s *recordSyncService) failPropiedad(ctx context.Context, p *model.Propiedad, cause error) error {
	if errors.Is(cause, infra.ErrCircuitOpen) {
		return errors.Join(cause, s.propiedades.ReleaseClaim(ctx, []uuid.UUID{p.ID}))
	}
	log.Error().Err(cause).Str("propiedad_id", p.ID.String()).Str("location_id", p.LocationID).Msg("record_sync: property sync failed")
	if err := s.propiedades.MarkError(ctx, p.ID, cause.Error()); err != nil {
		log.Error().Err(err).Str("propiedad_id", p.ID.String()).Msg("record_sync: failed to mark property error")
	}
	return cause
}
