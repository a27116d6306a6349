package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/rs/zerolog/log"
)

// RelationClient is the association part of *infra.CRMClient.
type RelationClient interface {
	GetRelations(ctx context.Context, token, locationID, recordID string) (map[string]infra.Relation, error)
	DeleteRelation(ctx context.Context, token, locationID, relationID string) error
	CreateRelation(ctx context.Context, token, locationID, associationID, contactID, propertyID string) error
}

// SyncRequest asks for OriginID's remote associations to equal TargetIDs.
type SyncRequest struct {
	Token             string
	TenantID          string
	OriginID          string
	TargetIDs         []string
	AssociationTypeID string
	// OriginIsLead: the CRM stores edges as (contact, property), so a lead
	// origin goes first and a property origin goes second.
	OriginIsLead bool
}

type SyncReport struct {
	Added   int
	Removed int
	Failed  int
}

// DiffAssociations compares the remote edges of a record (keyed by counterpart
// id) with the wanted counterpart ids. toAdd keeps the order of target;
// toRemove is sorted by relation id.
func DiffAssociations(current map[string]infra.Relation, target []string) (toAdd []string, toRemove []infra.Relation) {
	want := make(map[string]struct{}, len(target))
	for _, id := range target {
		if id == "" {
			continue
		}
		if _, dup := want[id]; dup {
			continue
		}
		want[id] = struct{}{}
		if _, ok := current[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for other, rel := range current {
		if _, ok := want[other]; !ok {
			toRemove = append(toRemove, rel)
		}
	}
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i].ID < toRemove[j].ID })
	return toAdd, toRemove
}

// AssociationSyncer converges the CRM association edges of one record.
type AssociationSyncer struct {
	crm   RelationClient
	pacer *infra.Pacer
	dlq   DeadLetterSink
}

func NewAssociationSyncer(crm RelationClient, pacer *infra.Pacer, dlq DeadLetterSink) *AssociationSyncer {
	if pacer == nil {
		pacer = infra.NewPacer()
	}
	return &AssociationSyncer{crm: crm, pacer: pacer, dlq: dlq}
}

// Sync reads the current edges, deletes the stale ones and creates the missing
// ones. A failing write is logged and dead-lettered; the rest still run.
// Only a failure to read the current edges aborts the sync.
func (s *AssociationSyncer) Sync(ctx context.Context, req SyncRequest) (SyncReport, error) {
	var report SyncReport

	current, err := s.crm.GetRelations(ctx, req.Token, req.TenantID, req.OriginID)
	if err != nil {
		return report, fmt.Errorf("leer asociaciones de %s: %w", req.OriginID, err)
	}
	toAdd, toRemove := DiffAssociations(current, req.TargetIDs)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		log.Debug().Str("origin_id", req.OriginID).Int("edges", len(current)).Msg("association_sync: already converged")
		return report, nil
	}

	writes := 0
	pace := func() error {
		writes++
		if writes == 1 {
			return nil
		}
		return s.pacer.Pause(ctx)
	}

	for _, rel := range toRemove {
		if err := pace(); err != nil {
			return report, err
		}
		if err := s.crm.DeleteRelation(ctx, req.Token, req.TenantID, rel.ID); err != nil {
			report.Failed++
			s.deadLetter(ctx, req, "remove", rel.Counterpart(req.OriginID), err)
			continue
		}
		report.Removed++
	}

	for _, other := range toAdd {
		if err := pace(); err != nil {
			return report, err
		}
		contactID, propertyID := req.OriginID, other
		if !req.OriginIsLead {
			contactID, propertyID = other, req.OriginID
		}
		if err := s.crm.CreateRelation(ctx, req.Token, req.TenantID, req.AssociationTypeID, contactID, propertyID); err != nil {
			report.Failed++
			s.deadLetter(ctx, req, "add", other, err)
			continue
		}
		report.Added++
	}

	log.Info().
		Str("location_id", req.TenantID).
		Str("origin_id", req.OriginID).
		Bool("origin_is_lead", req.OriginIsLead).
		Int("added", report.Added).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("association_sync: edges converged")
	return report, nil
}

type deadAssociation struct {
	LocationID   string `json:"location_id"`
	OriginID     string `json:"origin_id"`
	Counterpart  string `json:"counterpart_id"`
	Operation    string `json:"operation"`
	OriginIsLead bool   `json:"origin_is_lead"`
}

func (s *AssociationSyncer) deadLetter(ctx context.Context, req SyncRequest, op, counterpart string, cause error) {
	log.Error().Err(cause).
		Str("location_id", req.TenantID).
		Str("origin_id", req.OriginID).
		Str("counterpart_id", counterpart).
		Str("operation", op).
		Msg("association_sync: write failed")
	if s.dlq == nil {
		return
	}
	s.dlq.Send(ctx, QueueAssociations, "association_"+op, deadAssociation{
		LocationID:   req.TenantID,
		OriginID:     req.OriginID,
		Counterpart:  counterpart,
		Operation:    op,
		OriginIsLead: req.OriginIsLead,
	}, cause.Error(), 1)
}

// ── Dispatcher ────────────────────────────────────────────────────────────────

// AssociationDispatcher runs association syncs on the pool.
type AssociationDispatcher struct {
	pool   *Pool
	syncer *AssociationSyncer
}

func NewAssociationDispatcher(pool *Pool, syncer *AssociationSyncer) *AssociationDispatcher {
	return &AssociationDispatcher{pool: pool, syncer: syncer}
}

var _ service.AssociationDispatcher = (*AssociationDispatcher)(nil)

// Dispatch enqueues the job. ErrPoolSaturated means it was dropped.
func (d *AssociationDispatcher) Dispatch(job service.AssociationJob) error {
	req := SyncRequest{
		Token:             job.Token,
		TenantID:          job.LocationID,
		OriginID:          job.OriginID,
		TargetIDs:         append([]string(nil), job.TargetIDs...),
		AssociationTypeID: job.AssociationTypeID,
		OriginIsLead:      job.OriginIsLead,
	}
	return d.pool.Submit("associations:"+req.OriginID, func(ctx context.Context) error {
		_, err := d.syncer.Sync(ctx, req)
		return err
	}, nil)
}
