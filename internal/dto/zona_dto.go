package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RegistrarZonaRequest struct {
	Provincia string `json:"provincia" validate:"required,max=50"`
	Municipio string `json:"municipio" validate:"required,max=100"`
	Zona      string `json:"zona"      validate:"required,max=100"`
}

// ZonaCatalogEntry is one line of the YAML catalog imported by synctool.
type ZonaCatalogEntry struct {
	Provincia  string                  `yaml:"provincia"`
	Municipios []MunicipioCatalogEntry `yaml:"municipios"`
}

type MunicipioCatalogEntry struct {
	Nombre string   `yaml:"nombre"`
	Zonas  []string `yaml:"zonas"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ZonaArbolResponse struct {
	Zonas []ProvinciaNodo `json:"zonas"`
}

type ProvinciaNodo struct {
	Provincia  string          `json:"provincia"`
	Municipios []MunicipioNodo `json:"municipios"`
}

type MunicipioNodo struct {
	Nombre string   `json:"nombre"`
	Zonas  []string `json:"zonas"`
}

type RegistrarZonaResponse struct {
	Status    string `json:"status"` // created | unchanged
	Message   string `json:"message"`
	Provincia string `json:"provincia"`
	Municipio string `json:"municipio"`
	Zona      string `json:"zona"`
	ZonaID    string `json:"zona_id"`
}
