package repository

import (
	"context"

	"github.com/creeyes/crmprueba/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgenciaRepository reads and writes tenants.
type AgenciaRepository interface {
	FindByLocationID(ctx context.Context, locationID string) (*model.Agencia, error)
	List(ctx context.Context) ([]model.Agencia, error)
	// Upsert inserts the tenant or refreshes its name and active flag.
	Upsert(ctx context.Context, a *model.Agencia) error
	SetAssociationType(ctx context.Context, locationID, associationTypeID string) error
}

type agenciaRepo struct{ db *gorm.DB }

func NewAgenciaRepository(db *gorm.DB) AgenciaRepository {
	return &agenciaRepo{db: db}
}

func (r *agenciaRepo) FindByLocationID(ctx context.Context, locationID string) (*model.Agencia, error) {
	var a model.Agencia
	if err := r.db.WithContext(ctx).First(&a, "location_id = ?", locationID).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r *agenciaRepo) List(ctx context.Context) ([]model.Agencia, error) {
	var list []model.Agencia
	err := r.db.WithContext(ctx).Order("location_id asc").Find(&list).Error
	return list, err
}

func (r *agenciaRepo) Upsert(ctx context.Context, a *model.Agencia) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "location_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nombre", "active", "updated_at"}),
	}).Create(a).Error
}

func (r *agenciaRepo) SetAssociationType(ctx context.Context, locationID, associationTypeID string) error {
	res := r.db.WithContext(ctx).Model(&model.Agencia{}).
		Where("location_id = ?", locationID).
		Update("association_type_id", associationTypeID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
