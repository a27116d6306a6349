package infra

import (
	"fmt"

	"github.com/creeyes/crmprueba/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the Postgres connection pool and brings the schema up to date.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates every table through AutoMigrate, then applies
// the indexes AutoMigrate cannot express. Safe to run on every boot; the
// repository tests run it against SQLite too, so patches stay portable SQL.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Agencia{},
		&model.CRMToken{},
		&model.Provincia{},
		&model.Municipio{},
		&model.Zona{},
		&model.Propiedad{},
		&model.Cliente{},
		&model.Match{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL (IF NOT EXISTS everywhere).
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Reverse lookup for "which leads want this zone".
		{"cliente_zonas by zona", `
CREATE INDEX IF NOT EXISTS idx_cliente_zonas_zona
    ON cliente_zonas (zona_id)`},
		// Partial indexes for the sync loop claim query.
		{"pending propiedades", `
CREATE INDEX IF NOT EXISTS idx_propiedades_sync_pendiente
    ON propiedades (location_id, updated_at)
    WHERE sync_status <> 'synced' OR crm_record_id IS NULL OR crm_record_id = ''`},
		{"pending clientes", `
CREATE INDEX IF NOT EXISTS idx_clientes_sync_pendiente
    ON clientes (location_id, updated_at)
    WHERE sync_status <> 'synced' OR crm_contact_id IS NULL OR crm_contact_id = ''`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
