package model

// Preferencia encodes amenity flags.
//   - Properties use PrefSi / PrefNo (has / lacks the amenity).
//   - Leads use PrefSi / PrefNo for animals and PrefSi / PrefIndiferente for
//     balcony, garage and interior patio: a lead never rejects an amenity,
//     it either requires it or does not care.
type Preferencia string

const (
	PrefSi          Preferencia = "si"
	PrefNo          Preferencia = "no"
	PrefIndiferente Preferencia = "ind"
)

// EstadoPropiedad is the listing lifecycle. Only EstadoActivo participates in matching.
type EstadoPropiedad string

const (
	EstadoActivo    EstadoPropiedad = "activo"
	EstadoVendido   EstadoPropiedad = "vendido"
	EstadoNoOficial EstadoPropiedad = "noficial"
)

// SyncStatus drives the background worker: pending → syncing → synced | error.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
	SyncSynced  SyncStatus = "synced"
)
