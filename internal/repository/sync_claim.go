package repository

import (
	"time"

	"github.com/creeyes/crmprueba/internal/model"

	"gorm.io/gorm"
)

// ClaimOptions selects which rows the sync loop (or synctool) may pick up.
type ClaimOptions struct {
	Limit int
	// LocationID restricts the claim to one tenant when set.
	LocationID string
	// StaleBefore reclaims rows stuck in "syncing" since before this instant
	// (a crashed worker never flips them back). Zero disables it.
	StaleBefore time.Time
	// RetryErrors also selects rows in "error".
	RetryErrors bool
}

// pendingScope is the "needs a push to the CRM" filter:
//   - status pending, or
//   - no remote id yet and not currently being worked on (a failed create
//     is retried every cycle), or
//   - stuck in syncing (StaleBefore), or
//   - failed update of a record that already exists remotely (RetryErrors)
//
// restricted to active tenants.
func pendingScope(table, remoteCol string, opts ClaimOptions) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		cond := db.Session(&gorm.Session{NewDB: true}).
			Where(table+".sync_status = ?", model.SyncPending).
			Or("("+table+"."+remoteCol+" IS NULL OR "+table+"."+remoteCol+" = '') AND "+table+".sync_status <> ?",
				model.SyncSyncing)
		if !opts.StaleBefore.IsZero() {
			cond = cond.Or(table+".sync_status = ? AND "+table+".updated_at < ?", model.SyncSyncing, opts.StaleBefore)
		}
		if opts.RetryErrors {
			cond = cond.Or(table+".sync_status = ?", model.SyncError)
		}

		db = db.Where(cond).
			Where(table+".location_id IN (?)",
				db.Session(&gorm.Session{NewDB: true}).Model(&model.Agencia{}).Select("location_id").Where("active = ?", true))
		if opts.LocationID != "" {
			db = db.Where(table+".location_id = ?", opts.LocationID)
		}
		return db
	}
}
