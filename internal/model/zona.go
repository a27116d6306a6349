package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provincia → Municipio → Zona is the geographic catalog. Nodes are created on
// demand and never deleted automatically. NombreKey holds the case-folded name
// used for uniqueness and lookups.
type Provincia struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Nombre    string    `gorm:"type:varchar(50);not null"`
	NombreKey string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	CreatedAt time.Time

	Municipios []Municipio `gorm:"foreignKey:ProvinciaID"`
}

func (Provincia) TableName() string { return "provincias" }

func (p *Provincia) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Municipio struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProvinciaID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_municipio_provincia_nombre,priority:1"`
	Nombre      string    `gorm:"type:varchar(100);not null"`
	NombreKey   string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_municipio_provincia_nombre,priority:2"`
	CreatedAt   time.Time

	Zonas []Zona `gorm:"foreignKey:MunicipioID"`
}

func (Municipio) TableName() string { return "municipios" }

func (m *Municipio) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Zona is the smallest geographic unit, the one properties and leads point at.
// Webhooks only look zones up by name; they never create them.
type Zona struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	MunicipioID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_zona_municipio_nombre,priority:1"`
	Nombre      string    `gorm:"type:varchar(100);not null"`
	NombreKey   string    `gorm:"type:varchar(100);not null;index;uniqueIndex:idx_zona_municipio_nombre,priority:2"`
	CreatedAt   time.Time
}

func (Zona) TableName() string { return "zonas" }

func (z *Zona) BeforeCreate(_ *gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}
