package service

import (
	"context"

	"github.com/creeyes/crmprueba/internal/model"

	"github.com/rs/zerolog/log"
)

// AssociationJob asks for the CRM associations of OriginID to be converged to
// exactly TargetIDs.
type AssociationJob struct {
	Token             string
	LocationID        string
	OriginID          string
	TargetIDs         []string
	AssociationTypeID string
	// OriginIsLead puts the origin first in created edges (contact → property).
	OriginIsLead bool
}

// AssociationDispatcher hands jobs to the background association syncer.
type AssociationDispatcher interface {
	Dispatch(job AssociationJob) error
}

// Outcome of an attempt to push associations.
const (
	pushDispatched   = "dispatched"
	pushNoAssocType  = "no_association_type"
	pushNoToken      = "no_token"
	pushNotAvailable = "not_dispatched"
)

// pushAssociations schedules the remote convergence of originID's associations.
// It never fails the caller: local state is already committed and the next
// webhook or sync cycle converges again.
func pushAssociations(ctx context.Context, guard TokenGuard, dispatcher AssociationDispatcher, agencia *model.Agencia, originID string, targets []string, originIsLead bool) string {
	if !agencia.HasAssociationType() {
		log.Warn().Str("location_id", agencia.LocationID).Msg("associations: tenant has no association type, skipping remote sync")
		return pushNoAssocType
	}
	token, ok := guard.GetValidToken(ctx, agencia.LocationID)
	if !ok {
		log.Warn().Str("location_id", agencia.LocationID).Msg("associations: no valid token, skipping remote sync")
		return pushNoToken
	}
	err := dispatcher.Dispatch(AssociationJob{
		Token:             token,
		LocationID:        agencia.LocationID,
		OriginID:          originID,
		TargetIDs:         targets,
		AssociationTypeID: *agencia.AssociationTypeID,
		OriginIsLead:      originIsLead,
	})
	if err != nil {
		log.Error().Err(err).
			Str("location_id", agencia.LocationID).
			Str("origin_id", originID).
			Msg("associations: dispatch rejected, next sync will converge")
		return pushNotAvailable
	}
	return pushDispatched
}
