package worker

// sync_loop.go
// Background goroutine that periodically pushes rows created or edited locally
// (sync_status pending, or never created remotely) to the CRM. Rows are claimed
// with FOR UPDATE SKIP LOCKED so several instances never push the same row.
// Uses the CRM circuit breaker to avoid hammering a downed API.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/repository"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultSyncInterval = 300 * time.Second
	defaultStartupDelay = 30 * time.Second
	defaultBatchSize    = 50
	defaultRecordPause  = 300 * time.Millisecond
)

// Entity narrows a cycle to one record type. The zero value syncs both.
type Entity string

const (
	EntityAll         Entity = ""
	EntityClientes    Entity = "clientes"
	EntityPropiedades Entity = "propiedades"
)

// BreakerStater reports the CRM circuit state. *infra.CRMClient satisfies it.
type BreakerStater interface {
	BreakerState() infra.CBState
}

// SyncLoopConfig holds all dependencies for the sync goroutine.
type SyncLoopConfig struct {
	Propiedades repository.PropiedadRepository
	Clientes    repository.ClienteRepository
	Records     service.RecordSyncService
	Breaker     BreakerStater

	Interval     time.Duration
	StartupDelay time.Duration
	BatchSize    int
	// StaleAfter reclaims rows left in syncing longer than this. Zero disables it.
	StaleAfter  time.Duration
	RecordPause time.Duration
	// LocationID and RetryErrors narrow or widen what a cycle claims (synctool flags).
	LocationID  string
	RetryErrors bool
	Entity      Entity
	Sleep       infra.SleepFunc
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Skipped bool `json:"skipped"`
	Claimed int  `json:"claimed"`
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	// Released rows were handed back unprocessed (breaker opened or shutdown).
	Released int `json:"released"`
}

type SyncLoop struct {
	cfg SyncLoopConfig
	now func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   bool
	mu        sync.Mutex
}

func NewSyncLoop(cfg SyncLoopConfig) *SyncLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSyncInterval
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.RecordPause <= 0 {
		cfg.RecordPause = defaultRecordPause
	}
	if cfg.Sleep == nil {
		cfg.Sleep = infra.SleepContext
	}
	return &SyncLoop{
		cfg:  cfg,
		now:  time.Now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the loop once; later calls are no-ops. It respects ctx and
// Stop for graceful shutdown.
func (l *SyncLoop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		l.mu.Lock()
		l.started = true
		l.mu.Unlock()

		ctx, cancel := context.WithCancel(ctx)
		go func() {
			<-l.stop
			cancel()
		}()
		go l.run(ctx)
	})
}

// Stop signals the loop and waits for the running cycle to finish.
func (l *SyncLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()
	if started {
		<-l.done
	}
}

func (l *SyncLoop) run(ctx context.Context) {
	defer close(l.done)
	log.Info().Dur("interval", l.cfg.Interval).Dur("startup_delay", l.cfg.StartupDelay).Msg("sync_loop: started")

	if err := l.cfg.Sleep(ctx, l.cfg.StartupDelay); err != nil {
		log.Info().Msg("sync_loop: shutting down")
		return
	}
	l.RunCycle(ctx)

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sync_loop: shutting down")
			return
		case <-ticker.C:
			l.RunCycle(ctx)
		}
	}
}

// RunCycle claims and pushes one batch per entity type. Panics are recovered
// and logged so the loop survives them.
func (l *SyncLoop) RunCycle(ctx context.Context) (report CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("sync_loop: cycle panicked")
		}
	}()

	// If the breaker is open, skip entirely
	if l.breakerOpen() {
		log.Debug().Msg("sync_loop: circuit breaker is open, skipping cycle")
		report.Skipped = true
		return report
	}

	opts := repository.ClaimOptions{
		Limit:       l.cfg.BatchSize,
		LocationID:  l.cfg.LocationID,
		RetryErrors: l.cfg.RetryErrors,
	}
	if l.cfg.StaleAfter > 0 {
		opts.StaleBefore = l.now().Add(-l.cfg.StaleAfter)
	}

	var leads, props int64
	var err error
	if l.cfg.Entity != EntityPropiedades {
		if leads, err = l.cfg.Clientes.CountPending(ctx, opts); err != nil {
			log.Error().Err(err).Msg("sync_loop: failed to count pending leads")
			return report
		}
	}
	if l.cfg.Entity != EntityClientes {
		if props, err = l.cfg.Propiedades.CountPending(ctx, opts); err != nil {
			log.Error().Err(err).Msg("sync_loop: failed to count pending properties")
			return report
		}
	}
	if leads == 0 && props == 0 {
		return report
	}
	log.Info().Int64("leads", leads).Int64("properties", props).Msg("sync_loop: processing pending records")

	if leads > 0 {
		l.batch(ctx, "cliente", opts, l.cfg.Clientes.ClaimPending, l.cfg.Clientes.ReleaseClaim, l.cfg.Records.SyncCliente, &report)
	}
	if props > 0 {
		l.batch(ctx, "propiedad", opts, l.cfg.Propiedades.ClaimPending, l.cfg.Propiedades.ReleaseClaim, l.cfg.Records.SyncPropiedad, &report)
	}

	log.Info().
		Int("claimed", report.Claimed).
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Int("released", report.Released).
		Msg("sync_loop: cycle finished")
	return report
}

type claimFunc func(ctx context.Context, opts repository.ClaimOptions) ([]uuid.UUID, error)
type releaseFunc func(ctx context.Context, ids []uuid.UUID) error
type syncFunc func(ctx context.Context, id uuid.UUID) error

func (l *SyncLoop) batch(ctx context.Context, kind string, opts repository.ClaimOptions, claim claimFunc, release releaseFunc, push syncFunc, report *CycleReport) {
	ids, err := claim(ctx, opts)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("sync_loop: claim failed")
		return
	}
	report.Claimed += len(ids)

	for i, id := range ids {
		// the breaker may have tripped mid-batch
		if l.breakerOpen() || ctx.Err() != nil {
			l.release(kind, release, ids[i:], report)
			return
		}
		if err := push(ctx, id); err != nil {
			report.Failed++
		} else {
			report.Synced++
		}
		if i < len(ids)-1 {
			_ = l.cfg.Sleep(ctx, l.cfg.RecordPause)
		}
	}
}

func (l *SyncLoop) release(kind string, release releaseFunc, ids []uuid.UUID, report *CycleReport) {
	log.Warn().Str("kind", kind).Int("count", len(ids)).Msg("sync_loop: stopping mid-batch, releasing claimed rows")
	// the cycle context may be cancelled already
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx, ids); err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("sync_loop: failed to release claimed rows")
		return
	}
	report.Released += len(ids)
}

func (l *SyncLoop) breakerOpen() bool {
	return l.cfg.Breaker != nil && l.cfg.Breaker.BreakerState() == infra.CBOpen
}
