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

// ClienteRepository persists leads and answers the lead side of matching.
type ClienteRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error)
	FindByContactID(ctx context.Context, locationID, contactID string) (*model.Cliente, error)
	// UpsertByContactID inserts or fully overwrites the row keyed by (tenant, CRM contact id)
	// and replaces its zones of interest with c.ZonasInteres.
	UpsertByContactID(ctx context.Context, c *model.Cliente) error
	Create(ctx context.Context, c *model.Cliente) error
	// DeleteByContactID removes the lead, its zones of interest and its match edges.
	DeleteByContactID(ctx context.Context, locationID, contactID string) (bool, error)

	// MatchingForPropiedad returns the tenant's leads that accept the property.
	// A property without a zone matches nobody.
	MatchingForPropiedad(ctx context.Context, p *model.Propiedad) ([]model.Cliente, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Cliente, error)

	CountPending(ctx context.Context, opts ClaimOptions) (int64, error)
	ClaimPending(ctx context.Context, opts ClaimOptions) ([]uuid.UUID, error)
	ListPending(ctx context.Context, opts ClaimOptions) ([]model.Cliente, error)
	ReleaseClaim(ctx context.Context, ids []uuid.UUID) error
	MarkSynced(ctx context.Context, id uuid.UUID, contactID string) error
	MarkError(ctx context.Context, id uuid.UUID, msg string) error
}

type clienteRepo struct{ db *gorm.DB }

func NewClienteRepository(db *gorm.DB) ClienteRepository {
	return &clienteRepo{db: db}
}

func (r *clienteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).Preload("ZonasInteres").Preload("Agencia").First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *clienteRepo) FindByContactID(ctx context.Context, locationID, contactID string) (*model.Cliente, error) {
	var c model.Cliente
	err := r.db.WithContext(ctx).Preload("ZonasInteres").
		Where("location_id = ? AND crm_contact_id = ?", locationID, contactID).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *clienteRepo) UpsertByContactID(ctx context.Context, c *model.Cliente) error {
	zonas := c.ZonasInteres
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Cliente
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "created_at").
			Where("location_id = ? AND crm_contact_id = ?", c.LocationID, c.RemoteID()).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			c.ID = existing.ID
			c.CreatedAt = existing.CreatedAt
			if err := tx.Omit(clause.Associations).Save(c).Error; err != nil {
				return err
			}
		}
		return replaceZonas(tx, c, zonas)
	})
}

func replaceZonas(tx *gorm.DB, c *model.Cliente, zonas []model.Zona) error {
	assoc := tx.Model(c).Association("ZonasInteres")
	if len(zonas) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(zonas)
}

func (r *clienteRepo) Create(ctx context.Context, c *model.Cliente) error {
	zonas := c.ZonasInteres
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(c).Error; err != nil {
			return err
		}
		return replaceZonas(tx, c, zonas)
	})
}

func (r *clienteRepo) DeleteByContactID(ctx context.Context, locationID, contactID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Cliente
		err := tx.Select("id").Where("location_id = ? AND crm_contact_id = ?", locationID, contactID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("cliente_id = ?", c.ID).Delete(&model.Match{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&c).Association("ZonasInteres").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&model.Cliente{}, "id = ?", c.ID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ── Matching ──────────────────────────────────────────────────────────────────

func (r *clienteRepo) MatchingForPropiedad(ctx context.Context, p *model.Propiedad) ([]model.Cliente, error) {
	if p.ZonaID == nil {
		return []model.Cliente{}, nil
	}
	db := r.db.WithContext(ctx)
	wantsZone := db.Session(&gorm.Session{NewDB: true}).
		Table("cliente_zonas").Select("cliente_id").Where("zona_id = ?", *p.ZonaID)

	q := db.Where("location_id = ?", p.LocationID).
		Where("id IN (?)", wantsZone).
		Where("presupuesto_maximo >= ?", p.Precio).
		Where("habitaciones_minimas <= ?", p.Habitaciones).
		Where("metros_minimos <= ?", p.Metros)

	// A missing amenity only rules out leads that require it.
	if p.Animales != model.PrefSi {
		q = q.Where("animales = ?", model.PrefNo)
	}
	for col, has := range map[string]model.Preferencia{
		"balcon":         p.Balcon,
		"garaje":         p.Garaje,
		"patio_interior": p.PatioInterior,
	} {
		if has != model.PrefSi {
			q = q.Where(col+" = ?", model.PrefIndiferente)
		}
	}

	var list []model.Cliente
	err := q.Find(&list).Error
	return list, err
}

func (r *clienteRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Cliente, error) {
	if len(ids) == 0 {
		return []model.Cliente{}, nil
	}
	var list []model.Cliente
	err := r.db.WithContext(ctx).Preload("ZonasInteres").Preload("Agencia").Where("id IN ?", ids).Find(&list).Error
	return list, err
}

// ── Sync queue ────────────────────────────────────────────────────────────────

func (r *clienteRepo) CountPending(ctx context.Context, opts ClaimOptions) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Cliente{}).
		Scopes(pendingScope("clientes", "crm_contact_id", opts)).
		Count(&n).Error
	return n, err
}

func (r *clienteRepo) ListPending(ctx context.Context, opts ClaimOptions) ([]model.Cliente, error) {
	var list []model.Cliente
	err := r.db.WithContext(ctx).
		Scopes(pendingScope("clientes", "crm_contact_id", opts)).
		Order("updated_at asc").
		Limit(opts.Limit).
		Find(&list).Error
	return list, err
}

func (r *clienteRepo) ClaimPending(ctx context.Context, opts ClaimOptions) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.Cliente
		if err := tx.Select("clientes.id").
			Scopes(pendingScope("clientes", "crm_contact_id", opts)).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("clientes.updated_at asc").
			Limit(opts.Limit).
			Find(&rows).Error; err != nil {
			return err
		}
		for _, c := range rows {
			ids = append(ids, c.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&model.Cliente{}).Where("id IN ?", ids).
			Updates(map[string]any{"sync_status": model.SyncSyncing, "updated_at": time.Now()}).Error
	})
	return ids, err
}

func (r *clienteRepo) ReleaseClaim(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.Cliente{}).
		Where("id IN ? AND sync_status = ?", ids, model.SyncSyncing).
		Update("sync_status", model.SyncPending).Error
}

func (r *clienteRepo) MarkSynced(ctx context.Context, id uuid.UUID, contactID string) error {
	return r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", id).
		Updates(map[string]any{
			"sync_status":    model.SyncSynced,
			"sync_error":     nil,
			"crm_contact_id": contactID,
		}).Error
}

func (r *clienteRepo) MarkError(ctx context.Context, id uuid.UUID, msg string) error {
	return r.db.WithContext(ctx).Model(&model.Cliente{}).Where("id = ?", id).
		Updates(map[string]any{"sync_status": model.SyncError, "sync_error": msg}).Error
}
