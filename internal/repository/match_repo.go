package repository

import (
	"context"

	"github.com/creeyes/crmprueba/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Delta is what a reconcile changed.
type Delta struct {
	Added   []uuid.UUID
	Removed []uuid.UUID
}

func (d Delta) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// MatchRepository owns the cliente_propiedades relation. Each Replace call
// rewrites one side atomically: afterwards the side's edge set equals the
// given ids exactly. Replacing with the current set writes nothing.
type MatchRepository interface {
	ReplaceClientesForPropiedad(ctx context.Context, propiedadID uuid.UUID, clienteIDs []uuid.UUID) (Delta, int, error)
	ReplacePropiedadesForCliente(ctx context.Context, clienteID uuid.UUID, propiedadIDs []uuid.UUID) (Delta, int, error)
	ClienteIDsForPropiedad(ctx context.Context, propiedadID uuid.UUID) ([]uuid.UUID, error)
	PropiedadIDsForCliente(ctx context.Context, clienteID uuid.UUID) ([]uuid.UUID, error)
}

type matchRepo struct{ db *gorm.DB }

func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepo{db: db}
}

func (r *matchRepo) ReplaceClientesForPropiedad(ctx context.Context, propiedadID uuid.UUID, clienteIDs []uuid.UUID) (Delta, int, error) {
	return r.replace(ctx, "propiedad_id", "cliente_id", propiedadID, clienteIDs, func(other uuid.UUID) model.Match {
		return model.Match{ClienteID: other, PropiedadID: propiedadID}
	})
}

func (r *matchRepo) ReplacePropiedadesForCliente(ctx context.Context, clienteID uuid.UUID, propiedadIDs []uuid.UUID) (Delta, int, error) {
	return r.replace(ctx, "cliente_id", "propiedad_id", clienteID, propiedadIDs, func(other uuid.UUID) model.Match {
		return model.Match{ClienteID: clienteID, PropiedadID: other}
	})
}

// replace reads the current edges of anchor, deletes the stale ones with one
// statement and batch-inserts the missing ones, all in one transaction.
func (r *matchRepo) replace(ctx context.Context, anchorCol, otherCol string, anchor uuid.UUID, target []uuid.UUID, edge func(uuid.UUID) model.Match) (Delta, int, error) {
	var delta Delta
	want := make(map[uuid.UUID]struct{}, len(target))
	for _, id := range target {
		want[id] = struct{}{}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []uuid.UUID
		if err := tx.Model(&model.Match{}).Where(anchorCol+" = ?", anchor).Pluck(otherCol, &current).Error; err != nil {
			return err
		}
		have := make(map[uuid.UUID]struct{}, len(current))
		for _, id := range current {
			have[id] = struct{}{}
			if _, ok := want[id]; !ok {
				delta.Removed = append(delta.Removed, id)
			}
		}
		for id := range want {
			if _, ok := have[id]; !ok {
				delta.Added = append(delta.Added, id)
			}
		}

		if len(delta.Removed) > 0 {
			if err := tx.Where(anchorCol+" = ? AND "+otherCol+" IN ?", anchor, delta.Removed).
				Delete(&model.Match{}).Error; err != nil {
				return err
			}
		}
		if len(delta.Added) > 0 {
			rows := make([]model.Match, 0, len(delta.Added))
			for _, id := range delta.Added {
				rows = append(rows, edge(id))
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Delta{}, 0, err
	}
	return delta, len(want), nil
}

func (r *matchRepo) ClienteIDsForPropiedad(ctx context.Context, propiedadID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Match{}).Where("propiedad_id = ?", propiedadID).Pluck("cliente_id", &ids).Error
	return ids, err
}

func (r *matchRepo) PropiedadIDsForCliente(ctx context.Context, clienteID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Match{}).Where("cliente_id = ?", clienteID).Pluck("propiedad_id", &ids).Error
	return ids, err
}
