package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/creeyes/crmprueba/internal/config"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/router"
	"github.com/creeyes/crmprueba/internal/worker"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ── Fixtures ─────────────────────────────────────────────────────────────────

// fileEnv opens the same SQLite file on every connect, since Env.Close closes
// the connection at the end of each command.
type fileEnv struct {
	path string
	cfg  *config.Config
}

func newFileEnv(t *testing.T) *fileEnv {
	t.Helper()
	return &fileEnv{
		path: filepath.Join(t.TempDir(), "synctool.db"),
		cfg: &config.Config{
			Env:                  "test",
			CRMBaseURL:           "http://127.0.0.1:1",
			CRMAPIVersion:        "2021-07-28",
			CRMPropertyObjectKey: "custom_objects.propiedades",
			WorkerPoolSize:       1,
			WorkerQueueSize:      4,
			SyncBatchSize:        50,
			CurrencyDefault:      "USD",
		},
	}
}

func (f *fileEnv) open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(f.path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	return db
}

func (f *fileEnv) connect(t *testing.T) func(context.Context) (*Env, error) {
	return func(context.Context) (*Env, error) {
		db := f.open(t)
		crm := router.NewCRMClient(f.cfg)
		return &Env{Cfg: f.cfg, DB: db, Comp: router.Build(f.cfg, db, nil, crm)}, nil
	}
}

func execute(t *testing.T, connect func(context.Context) (*Env, error), args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&RootOptions{Connect: connect})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func neverConnect(t *testing.T) func(context.Context) (*Env, error) {
	return func(context.Context) (*Env, error) {
		t.Fatal("connect must not be called")
		return nil, errors.New("unreachable")
	}
}

// ── Command tree ─────────────────────────────────────────────────────────────

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"sync", "zones", "tenants", "dlq"} {
		assert.True(t, names[want], "missing command %q", want)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("format"))
}

func TestSyncCommand_Flags(t *testing.T) {
	cmd := NewSyncCommand(&RootOptions{})
	for _, name := range []string{"type", "location-id", "batch-size", "retry-errors", "dry-run"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag --%s", name)
	}
	assert.Equal(t, "50", cmd.Flags().Lookup("batch-size").DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, neverConnect(t), "sync", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseEntity(t *testing.T) {
	cases := map[string]worker.Entity{
		"":            worker.EntityAll,
		"all":         worker.EntityAll,
		"clientes":    worker.EntityClientes,
		"leads":       worker.EntityClientes,
		"propiedades": worker.EntityPropiedades,
	}
	for in, want := range cases {
		got, err := parseEntity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseEntity("zonas")
	assert.Error(t, err)
}

func TestSync_InvalidTypeDoesNotConnect(t *testing.T) {
	_, err := execute(t, neverConnect(t), "sync", "--type", "zonas")
	assert.Error(t, err)
}

// ── Commands against a database ──────────────────────────────────────────────

const catalogYAML = `
- provincia: Málaga
  municipios:
    - nombre: Málaga
      zonas: [Centro, Teatinos]
    - nombre: Marbella
      zonas: [Nueva Andalucía]
`

func TestZonesImport(t *testing.T) {
	env := newFileEnv(t)
	file := filepath.Join(t.TempDir(), "zonas.yaml")
	require.NoError(t, os.WriteFile(file, []byte(catalogYAML), 0o600))

	out, err := execute(t, env.connect(t), "zones", "import", file, "--no-push", "--format", "json")
	require.NoError(t, err)
	var first importSummary
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, importSummary{Processed: 3, Created: 3}, first)

	out, err = execute(t, env.connect(t), "zones", "import", file, "--no-push", "--format", "json")
	require.NoError(t, err)
	var second importSummary
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Equal(t, importSummary{Processed: 3}, second)

	db := env.open(t)
	var zonas int64
	require.NoError(t, db.Model(&model.Zona{}).Count(&zonas).Error)
	assert.EqualValues(t, 3, zonas)
}

func TestZonesImport_BadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "zonas.yaml")
	require.NoError(t, os.WriteFile(file, []byte("provincia: [unterminated"), 0o600))

	_, err := execute(t, neverConnect(t), "zones", "import", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestTenantsAddAndList(t *testing.T) {
	env := newFileEnv(t)

	_, err := execute(t, env.connect(t), "tenants", "add", "loc-9",
		"--nombre", "Agencia Sur", "--featured-threshold", "250000",
		"--access-token", "tok-9", "--refresh-token", "ref-9")
	require.NoError(t, err)

	out, err := execute(t, env.connect(t), "tenants", "list", "--format", "json")
	require.NoError(t, err)
	var rows []tenantRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, tenantRow{
		LocationID:        "loc-9",
		Nombre:            "Agencia Sur",
		Active:            true,
		FeaturedThreshold: "250000.00",
	}, rows[0])

	db := env.open(t)
	var tok model.CRMToken
	require.NoError(t, db.First(&tok, "location_id = ?", "loc-9").Error)
	assert.Equal(t, "tok-9", tok.AccessToken)
	assert.Equal(t, 86400, tok.ExpiresIn)
}

func TestTenantsAdd_TokenPairRequired(t *testing.T) {
	_, err := execute(t, neverConnect(t), "tenants", "add", "loc-9", "--access-token", "tok-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--refresh-token")
}

func TestPendingDiscovery(t *testing.T) {
	assoc := "assoc-1"
	empty := ""
	agencias := []model.Agencia{
		{LocationID: "a", Active: true},
		{LocationID: "b", Active: true, AssociationTypeID: &assoc},
		{LocationID: "c", Active: false},
		{LocationID: "d", Active: true, AssociationTypeID: &empty},
	}
	assert.Equal(t, []string{"a", "d"}, pendingDiscovery(agencias, false))
	assert.Equal(t, []string{"a", "b", "d"}, pendingDiscovery(agencias, true))
}

func TestSyncDryRun_ListsPendingWithoutClaiming(t *testing.T) {
	env := newFileEnv(t)
	db := env.open(t)
	require.NoError(t, db.Create(&model.Agencia{
		LocationID:        "loc-1",
		Active:            true,
		FeaturedThreshold: decimal.NewFromInt(500000),
	}).Error)
	lead := &model.Cliente{LocationID: "loc-1", Nombre: "Ana"}
	require.NoError(t, db.Create(lead).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err := execute(t, env.connect(t), "sync", "--dry-run", "--type", "clientes", "--format", "json")
	require.NoError(t, err)
	var rows []pendingRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, lead.ID.String(), rows[0].ID)
	assert.Equal(t, "clientes", rows[0].Entity)
	assert.Equal(t, string(model.SyncPending), rows[0].Status)

	db = env.open(t)
	var after model.Cliente
	require.NoError(t, db.First(&after, "id = ?", lead.ID).Error)
	assert.Equal(t, model.SyncPending, after.SyncStatus)
}

func TestDLQShow_RequiresRedis(t *testing.T) {
	env := newFileEnv(t)
	_, err := execute(t, env.connect(t), "dlq", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
