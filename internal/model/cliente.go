package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cliente is a buyer lead, mirrored from a CRM contact.
// An empty ZonasInteres set means "no geographic restriction" when searching
// properties for the lead, but also means the lead is never found when
// searching leads for a given property (that search is anchored on the zone).
type Cliente struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_cliente_agencia_contact,priority:1;index:idx_cli_agencia_presupuesto,priority:1"`
	CRMContactID *string   `gorm:"column:crm_contact_id;type:varchar(255);uniqueIndex:idx_cliente_agencia_contact,priority:2"`

	Nombre              string          `gorm:"type:varchar(255);not null;default:'Desconocido'"`
	Email               *string         `gorm:"type:varchar(255)"`
	Telefono            *string         `gorm:"type:varchar(50)"`
	PresupuestoMaximo   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0;index:idx_cli_agencia_presupuesto,priority:2"`
	HabitacionesMinimas int             `gorm:"not null;default:0"`
	MetrosMinimos       int             `gorm:"not null;default:0"`

	Animales      Preferencia `gorm:"type:varchar(3);not null;default:'no'"`
	Balcon        Preferencia `gorm:"type:varchar(3);not null;default:'ind'"`
	Garaje        Preferencia `gorm:"type:varchar(3);not null;default:'ind'"`
	PatioInterior Preferencia `gorm:"type:varchar(3);not null;default:'ind'"`

	SyncStatus SyncStatus `gorm:"type:varchar(10);not null;default:'pending';index"`
	SyncError  *string    `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	ZonasInteres []Zona   `gorm:"many2many:cliente_zonas;"`
	Agencia      *Agencia `gorm:"foreignKey:LocationID;references:LocationID"`
}

func (Cliente) TableName() string { return "clientes" }

func (c *Cliente) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// RemoteID returns the CRM contact id, or "" when the lead was never pushed.
func (c *Cliente) RemoteID() string {
	if c.CRMContactID == nil {
		return ""
	}
	return *c.CRMContactID
}

// ZonaIDs returns the ids of the zones of interest.
func (c *Cliente) ZonaIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.ZonasInteres))
	for _, z := range c.ZonasInteres {
		ids = append(ids, z.ID)
	}
	return ids
}

// Match is one edge of the lead ↔ property match relation.
// The relation is always rewritten as a whole for one side; see MatchRepository.
type Match struct {
	ClienteID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	PropiedadID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt   time.Time
}

func (Match) TableName() string { return "cliente_propiedades" }
