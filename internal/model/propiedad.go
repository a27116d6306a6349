package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Propiedad mirrors the CRM custom object "propiedades".
// CRMRecordID is nil until the record exists remotely (rows created locally
// wait for the sync loop to create them).
type Propiedad struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_propiedad_agencia_record,priority:1;index:idx_prop_agencia_estado_precio,priority:1"`
	CRMRecordID *string   `gorm:"column:crm_record_id;type:varchar(255);uniqueIndex:idx_propiedad_agencia_record,priority:2"`

	Precio       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;index:idx_prop_agencia_estado_precio,priority:3"`
	ZonaID       *uuid.UUID      `gorm:"type:uuid;index"`
	Habitaciones int             `gorm:"not null;default:0"`
	Metros       int             `gorm:"not null;default:0"`
	Estado       EstadoPropiedad `gorm:"type:varchar(20);not null;default:'activo';index:idx_prop_agencia_estado_precio,priority:2"`
	Imagenes     datatypes.JSONSlice[string]

	Animales      Preferencia `gorm:"type:varchar(3);not null;default:'no'"`
	Balcon        Preferencia `gorm:"type:varchar(3);not null;default:'no'"`
	Garaje        Preferencia `gorm:"type:varchar(3);not null;default:'no'"`
	PatioInterior Preferencia `gorm:"type:varchar(3);not null;default:'no'"`

	SyncStatus SyncStatus `gorm:"type:varchar(10);not null;default:'pending';index"`
	SyncError  *string    `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Agencia *Agencia `gorm:"foreignKey:LocationID;references:LocationID"`
	Zona    *Zona    `gorm:"foreignKey:ZonaID"`
}

func (Propiedad) TableName() string { return "propiedades" }

func (p *Propiedad) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// RemoteID returns the CRM record id, or "" when the property was never pushed.
func (p *Propiedad) RemoteID() string {
	if p.CRMRecordID == nil {
		return ""
	}
	return *p.CRMRecordID
}
