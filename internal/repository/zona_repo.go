package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/model"

	"gorm.io/gorm"
)

// RegistroZona reports which levels of the hierarchy a registration created.
type RegistroZona struct {
	Zona            model.Zona
	ProvinciaCreada bool
	MunicipioCreado bool
	ZonaCreada      bool
}

// AlgoNuevo reports whether the registration inserted anything.
func (r RegistroZona) AlgoNuevo() bool {
	return r.ProvinciaCreada || r.MunicipioCreado || r.ZonaCreada
}

// ZonaRepository manages the Provincia → Municipio → Zona catalog.
// Names are matched case-insensitively through the folded NombreKey column.
type ZonaRepository interface {
	Tree(ctx context.Context) ([]model.Provincia, error)
	ListZonas(ctx context.Context) ([]model.Zona, error)
	// FindByName returns the first zone with that name in any municipality.
	FindByName(ctx context.Context, name string) (*model.Zona, error)
	// FindByNames returns every zone whose name is in names.
	FindByNames(ctx context.Context, names []string) ([]model.Zona, error)
	// Register gets or creates the three levels in one transaction.
	Register(ctx context.Context, provincia, municipio, zona string) (RegistroZona, error)
}

type zonaRepo struct{ db *gorm.DB }

func NewZonaRepository(db *gorm.DB) ZonaRepository {
	return &zonaRepo{db: db}
}

func (r *zonaRepo) Tree(ctx context.Context) ([]model.Provincia, error) {
	var list []model.Provincia
	err := r.db.WithContext(ctx).
		Preload("Municipios", func(db *gorm.DB) *gorm.DB { return db.Order("nombre asc") }).
		Preload("Municipios.Zonas", func(db *gorm.DB) *gorm.DB { return db.Order("nombre asc") }).
		Order("nombre asc").
		Find(&list).Error
	return list, err
}

func (r *zonaRepo) ListZonas(ctx context.Context) ([]model.Zona, error) {
	var list []model.Zona
	err := r.db.WithContext(ctx).Order("nombre asc").Find(&list).Error
	return list, err
}

func (r *zonaRepo) FindByName(ctx context.Context, name string) (*model.Zona, error) {
	var z model.Zona
	err := r.db.WithContext(ctx).
		Where("nombre_key = ?", fieldparse.FoldKey(name)).
		Order("created_at asc").
		First(&z).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &z, nil
}

func (r *zonaRepo) FindByNames(ctx context.Context, names []string) ([]model.Zona, error) {
	if len(names) == 0 {
		return []model.Zona{}, nil
	}
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, fieldparse.FoldKey(n))
	}
	var list []model.Zona
	err := r.db.WithContext(ctx).Where("nombre_key IN ?", keys).Find(&list).Error
	return list, err
}

func (r *zonaRepo) Register(ctx context.Context, provincia, municipio, zona string) (RegistroZona, error) {
	var out RegistroZona
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prov := model.Provincia{Nombre: strings.TrimSpace(provincia), NombreKey: fieldparse.FoldKey(provincia)}
		created, err := firstOrCreate(tx, &prov, "nombre_key = ?", prov.NombreKey)
		if err != nil {
			return err
		}
		out.ProvinciaCreada = created

		muni := model.Municipio{ProvinciaID: prov.ID, Nombre: strings.TrimSpace(municipio), NombreKey: fieldparse.FoldKey(municipio)}
		created, err = firstOrCreate(tx, &muni, "provincia_id = ? AND nombre_key = ?", prov.ID, muni.NombreKey)
		if err != nil {
			return err
		}
		out.MunicipioCreado = created

		z := model.Zona{MunicipioID: muni.ID, Nombre: strings.TrimSpace(zona), NombreKey: fieldparse.FoldKey(zona)}
		created, err = firstOrCreate(tx, &z, "municipio_id = ? AND nombre_key = ?", muni.ID, z.NombreKey)
		if err != nil {
			return err
		}
		out.ZonaCreada = created
		out.Zona = z
		return nil
	})
	return out, err
}

// firstOrCreate loads the row matching where into dest, or inserts dest.
func firstOrCreate(tx *gorm.DB, dest any, where string, args ...any) (bool, error) {
	err := tx.Where(where, args...).First(dest).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if err := tx.Create(dest).Error; err != nil {
		return false, err
	}
	return true, nil
}
