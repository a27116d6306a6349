package router

import (
	"time"

	"github.com/creeyes/crmprueba/internal/config"
	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/handler"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/middleware"
	"github.com/creeyes/crmprueba/internal/repository"
	"github.com/creeyes/crmprueba/internal/service"
	"github.com/creeyes/crmprueba/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const webhookRatePerMinute = 600

// Components is the wired object graph. cmd/server serves it over HTTP and
// cmd/synctool drives the same services from the command line.
type Components struct {
	CRM  *infra.CRMClient
	Pool *worker.Pool
	// DLQ is nil when Redis is not configured.
	DLQ  *worker.RedisDLQ
	Loop *worker.SyncLoop

	Agencias    repository.AgenciaRepository
	Propiedades repository.PropiedadRepository
	Clientes    repository.ClienteRepository
	Zonas       repository.ZonaRepository
	Credentials repository.CredentialRepository

	Tokens    service.TokenGuard
	Records   service.RecordSyncService
	Webhooks  service.WebhookService
	Deletions service.DeletionService
	ZonaSvc   service.ZonaService
	Tenants   service.TenantService
}

// NewCRMClient builds the production client: retrying transport, pacer and a
// circuit breaker the sync loop consults before each cycle.
func NewCRMClient(cfg *config.Config) *infra.CRMClient {
	return infra.NewCRMClient(infra.CRMConfig{
		BaseURL:      cfg.CRMBaseURL,
		APIVersion:   cfg.CRMAPIVersion,
		ClientID:     cfg.CRMClientID,
		ClientSecret: cfg.CRMClientSecret,
		Breaker:      infra.NewCircuitBreaker(infra.DefaultCBConfig("crm")),
	})
}

// Build wires every dependency.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis, Worker ← CRM client
// rdb may be nil; failed association writes are then only logged.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, crm *infra.CRMClient) *Components {
	// ── Repositories ─────────────────────────────────────────────────────────
	agenciaRepo := repository.NewAgenciaRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	zonaRepo := repository.NewZonaRepository(db)
	propiedadRepo := repository.NewPropiedadRepository(db)
	clienteRepo := repository.NewClienteRepository(db)
	matchRepo := repository.NewMatchRepository(db)

	// ── Workers ──────────────────────────────────────────────────────────────
	pool := worker.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize)

	var dlq *worker.RedisDLQ
	var sink worker.DeadLetterSink
	if rdb != nil {
		dlq = worker.NewRedisDLQ(rdb)
		sink = dlq
	}
	syncer := worker.NewAssociationSyncer(crm, crm.Pacer(), sink)
	dispatcher := worker.NewAssociationDispatcher(pool, syncer)

	// ── Services ─────────────────────────────────────────────────────────────
	tokens := service.NewTokenGuard(credentialRepo, crm)
	matching := service.NewMatchingService(propiedadRepo, clienteRepo, matchRepo)
	parser := fieldparse.NewParser(fieldparse.ParseCurrencyStyle(cfg.CurrencyDefault))

	records := service.NewRecordSyncService(service.RecordSyncDeps{
		Propiedades:       propiedadRepo,
		Clientes:          clienteRepo,
		Matching:          matching,
		Tokens:            tokens,
		CRM:               crm,
		Dispatcher:        dispatcher,
		PropertyObjectKey: cfg.CRMPropertyObjectKey,
	})
	webhooks := service.NewWebhookService(service.WebhookDeps{
		Agencias:    agenciaRepo,
		Propiedades: propiedadRepo,
		Clientes:    clienteRepo,
		Zonas:       zonaRepo,
		Matching:    matching,
		Tokens:      tokens,
		Dispatcher:  dispatcher,
		Parser:      parser,
	})

	loop := worker.NewSyncLoop(worker.SyncLoopConfig{
		Propiedades:  propiedadRepo,
		Clientes:     clienteRepo,
		Records:      records,
		Breaker:      crm,
		Interval:     cfg.SyncInterval(),
		StartupDelay: cfg.SyncStartupDelay(),
		BatchSize:    cfg.SyncBatchSize,
		StaleAfter:   cfg.SyncStaleAfter(),
	})

	return &Components{
		CRM:         crm,
		Pool:        pool,
		DLQ:         dlq,
		Loop:        loop,
		Agencias:    agenciaRepo,
		Propiedades: propiedadRepo,
		Clientes:    clienteRepo,
		Zonas:       zonaRepo,
		Credentials: credentialRepo,
		Tokens:      tokens,
		Records:     records,
		Webhooks:    webhooks,
		Deletions:   service.NewDeletionService(propiedadRepo, clienteRepo, cfg.CRMPropertyObjectKey),
		ZonaSvc:     service.NewZonaService(zonaRepo, agenciaRepo, tokens, crm, pool),
		Tenants:     service.NewTenantService(agenciaRepo, tokens, crm),
	}
}

// New returns the configured Gin engine for c.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, c *Components) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())

	webhooksH := handler.NewWebhooksHandler(c.Webhooks, c.Deletions)
	zonasH := handler.NewZonasHandler(c.ZonaSvc)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb, c.CRM))

	api := r.Group("/api")
	{
		hooks := api.Group("/webhooks",
			middleware.RateLimiter(webhookRatePerMinute, time.Minute),
			middleware.WebhookSignature(cfg.WebhookSecret),
		)
		hooks.POST("/propiedad", webhooksH.Propiedad)
		hooks.POST("/cliente", webhooksH.Cliente)
		hooks.POST("/delete", webhooksH.Delete)

		api.GET("/zonas", zonasH.Arbol)
		api.POST("/zonas", zonasH.Registrar)
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
