package repository

import (
	"context"
	"errors"
	"time"

	"github.com/creeyes/crmprueba/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PropiedadRepository persists properties and answers the property side of matching.
type PropiedadRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Propiedad, error)
	FindByRecordID(ctx context.Context, locationID, recordID string) (*model.Propiedad, error)
	// UpsertByRecordID inserts or fully overwrites the row keyed by (tenant, CRM record id).
	UpsertByRecordID(ctx context.Context, p *model.Propiedad) error
	Create(ctx context.Context, p *model.Propiedad) error
	// DeleteByRecordID removes the property and its match edges. Reports whether a row existed.
	DeleteByRecordID(ctx context.Context, locationID, recordID string) (bool, error)

	// MatchingForCliente returns the tenant's active properties that satisfy the lead.
	MatchingForCliente(ctx context.Context, c *model.Cliente) ([]model.Propiedad, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Propiedad, error)

	CountPending(ctx context.Context, opts ClaimOptions) (int64, error)
	// ClaimPending locks up to opts.Limit pending rows with FOR UPDATE SKIP LOCKED,
	// flips them to syncing and returns their ids. Rows locked by another worker are skipped.
	ClaimPending(ctx context.Context, opts ClaimOptions) ([]uuid.UUID, error)
	ListPending(ctx context.Context, opts ClaimOptions) ([]model.Propiedad, error)
	ReleaseClaim(ctx context.Context, ids []uuid.UUID) error
	MarkSynced(ctx context.Context, id uuid.UUID, recordID string) error
	MarkError(ctx context.Context, id uuid.UUID, msg string) error
}

type propiedadRepo struct{ db *gorm.DB }

func NewPropiedadRepository(db *gorm.DB) PropiedadRepository {
	return &propiedadRepo{db: db}
}

func (r *propiedadRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Propiedad, error) {
	var p model.Propiedad
	err := r.db.WithContext(ctx).Preload("Agencia").Preload("Zona").First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *propiedadRepo) FindByRecordID(ctx context.Context, locationID, recordID string) (*model.Propiedad, error) {
	var p model.Propiedad
	err := r.db.WithContext(ctx).
		Where("location_id = ? AND crm_record_id = ?", locationID, recordID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *propiedadRepo) UpsertByRecordID(ctx context.Context, p *model.Propiedad) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Propiedad
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "created_at").
			Where("location_id = ? AND crm_record_id = ?", p.LocationID, p.RemoteID()).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(p).Error
		case err != nil:
			return err
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		return tx.Omit(clause.Associations).Save(p).Error
	})
}

func (r *propiedadRepo) Create(ctx context.Context, p *model.Propiedad) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *propiedadRepo) DeleteByRecordID(ctx context.Context, locationID, recordID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Propiedad
		err := tx.Select("id").Where("location_id = ? AND crm_record_id = ?", locationID, recordID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("propiedad_id = ?", p.ID).Delete(&model.Match{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Propiedad{}, "id = ?", p.ID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ── Matching ──────────────────────────────────────────────────────────────────

func (r *propiedadRepo) MatchingForCliente(ctx context.Context, c *model.Cliente) ([]model.Propiedad, error) {
	q := r.db.WithContext(ctx).
		Where("location_id = ?", c.LocationID).
		Where("estado = ?", model.EstadoActivo).
		Where("precio <= ?", c.PresupuestoMaximo).
		Where("habitaciones >= ?", c.HabitacionesMinimas).
		Where("metros >= ?", c.MetrosMinimos)

	// A lead without zones of interest accepts any zone.
	if ids := c.ZonaIDs(); len(ids) > 0 {
		q = q.Where("zona_id IN ?", ids)
	}

	// Every amenity the lead requires must be present.
	for col, pref := range map[string]model.Preferencia{
		"animales":       c.Animales,
		"balcon":         c.Balcon,
		"garaje":         c.Garaje,
		"patio_interior": c.PatioInterior,
	} {
		if pref == model.PrefSi {
			q = q.Where(col+" = ?", model.PrefSi)
		}
	}

	var list []model.Propiedad
	err := q.Find(&list).Error
	return list, err
}

func (r *propiedadRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Propiedad, error) {
	if len(ids) == 0 {
		return []model.Propiedad{}, nil
	}
	var list []model.Propiedad
	err := r.db.WithContext(ctx).Preload("Agencia").Preload("Zona").Where("id IN ?", ids).Find(&list).Error
	return list, err
}

// ── Sync queue ────────────────────────────────────────────────────────────────

func (r *propiedadRepo) CountPending(ctx context.Context, opts ClaimOptions) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Propiedad{}).
		Scopes(pendingScope("propiedades", "crm_record_id", opts)).
		Count(&n).Error
	return n, err
}

func (r *propiedadRepo) ListPending(ctx context.Context, opts ClaimOptions) ([]model.Propiedad, error) {
	var list []model.Propiedad
	err := r.db.WithContext(ctx).
		Scopes(pendingScope("propiedades", "crm_record_id", opts)).
		Order("updated_at asc").
		Limit(opts.Limit).
		Find(&list).Error
	return list, err
}

func (r *propiedadRepo) ClaimPending(ctx context.Context, opts ClaimOptions) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.Propiedad
		if err := tx.Select("propiedades.id").
			Scopes(pendingScope("propiedades", "crm_record_id", opts)).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("propiedades.updated_at asc").
			Limit(opts.Limit).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, p := range rows {
			ids = append(ids, p.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&model.Propiedad{}).Where("id IN ?", ids).
			Updates(map[string]any{"sync_status": model.SyncSyncing, "updated_at": time.Now()}).Error
	})
	return ids, err
}

func (r *propiedadRepo) ReleaseClaim(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Propiedad{}).
		Where("id IN ? AND sync_status = ?", ids, model.SyncSyncing).
		Update("sync_status", model.SyncPending).Error
}

func (r *propiedadRepo) MarkSynced(ctx context.Context, id uuid.UUID, recordID string) error {
	return r.db.WithContext(ctx).Model(&model.Propiedad{}).Where("id = ?", id).
		Updates(map[string]any{
			"sync_status":   model.SyncSynced,
			"sync_error":    nil,
			"crm_record_id": recordID,
		}).Error
}

func (r *propiedadRepo) MarkError(ctx context.Context, id uuid.UUID, msg string) error {
	return r.db.WithContext(ctx).Model(&model.Propiedad{}).Where("id = ?", id).
		Updates(map[string]any{"sync_status": model.SyncError, "sync_error": msg}).Error
}
