package repository

import (
	"context"

	"github.com/creeyes/crmprueba/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialRepository stores the CRM OAuth credential of each tenant.
type CredentialRepository interface {
	FindByLocationID(ctx context.Context, locationID string) (*model.CRMToken, error)
	// UpdateLocked loads the credential under SELECT … FOR UPDATE and runs fn
	// inside the same transaction. When fn returns changed=true the row is saved
	// (updated_at is bumped, which restarts the expiry clock).
	UpdateLocked(ctx context.Context, locationID string, fn func(tok *model.CRMToken) (changed bool, err error)) (*model.CRMToken, error)
	Save(ctx context.Context, tok *model.CRMToken) error
}

type credentialRepo struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) FindByLocationID(ctx context.Context, locationID string) (*model.CRMToken, error) {
	var tok model.CRMToken
	if err := r.db.WithContext(ctx).First(&tok, "location_id = ?", locationID).Error; err != nil {
		return nil, notFound(err)
	}
	return &tok, nil
}

func (r *credentialRepo) UpdateLocked(ctx context.Context, locationID string, fn func(tok *model.CRMToken) (bool, error)) (*model.CRMToken, error) {
	var out model.CRMToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&out, "location_id = ?", locationID).Error; err != nil {
			return notFound(err)
		}
		changed, err := fn(&out)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *credentialRepo) Save(ctx context.Context, tok *model.CRMToken) error {
	return r.db.WithContext(ctx).Save(tok).Error
}
