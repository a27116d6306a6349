package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Agencia is the tenant: one real-estate agency, mapped 1:1 to a CRM sub-account.
// Every query and every background job is scoped by LocationID.
type Agencia struct {
	LocationID string  `gorm:"type:varchar(255);primaryKey"`
	Nombre     *string `gorm:"type:varchar(255)"`
	// Active=false stops webhooks from matching and the sync loop from claiming rows.
	Active bool `gorm:"not null;default:true"`
	// FeaturedThreshold marks properties priced at or above it as featured in the CRM.
	FeaturedThreshold decimal.Decimal `gorm:"type:decimal(12,2);not null;default:500000"`
	// AssociationTypeID is the CRM association kind linking contacts to properties.
	// Remote association sync is skipped while it is empty.
	AssociationTypeID *string `gorm:"type:varchar(255)"`
	// Custom-field ids whose option lists mirror the zone catalog.
	PropertyZoneFieldID *string `gorm:"type:varchar(255)"`
	LeadZoneFieldID     *string `gorm:"type:varchar(255)"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (Agencia) TableName() string { return "agencias" }

// HasAssociationType reports whether remote association sync can run for this tenant.
func (a *Agencia) HasAssociationType() bool {
	return a.AssociationTypeID != nil && *a.AssociationTypeID != ""
}
