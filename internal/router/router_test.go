package router

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creeyes/crmprueba/internal/config"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/middleware"
	"github.com/creeyes/crmprueba/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── CRM fake ─────────────────────────────────────────────────────────────────

// crmFake answers the association endpoints and records every edge created.
type crmFake struct {
	mu    sync.Mutex
	edges map[string]string // relation id -> "first->second"
}

func (f *crmFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/associations/relations/"):
		id := strings.TrimPrefix(r.URL.Path, "/associations/relations/")
		var rels []infra.Relation
		for relID, edge := range f.edges {
			first, second, _ := strings.Cut(edge, "->")
			if first == id || second == id {
				rels = append(rels, infra.Relation{ID: relID, FirstRecordID: first, SecondRecordID: second})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"relations": rels})
	case r.Method == http.MethodPost && r.URL.Path == "/associations/relations":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.edges[fmt.Sprintf("rel-%d", len(f.edges)+1)] = body["firstRecordId"] + "->" + body["secondRecordId"]
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *crmFake) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.edges))
	for _, e := range f.edges {
		out = append(out, e)
	}
	return out
}

// ── fixture ──────────────────────────────────────────────────────────────────

type testEnv struct {
	engine *gin.Engine
	comp   *Components
	crm    *crmFake
	db     *gorm.DB
}

func setupTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.RunMigrations(db))

	assoc := "assoc-1"
	require.NoError(t, db.Create(&model.Agencia{
		LocationID:        "loc-1",
		Active:            true,
		FeaturedThreshold: decimal.NewFromInt(500000),
		AssociationTypeID: &assoc,
	}).Error)
	require.NoError(t, db.Create(&model.CRMToken{
		LocationID:   "loc-1",
		AccessToken:  "tok-1",
		RefreshToken: "ref-1",
		ExpiresIn:    86400,
	}).Error)

	fake := &crmFake{edges: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Env:                  "test",
		CORSOrigins:          []string{"*"},
		CRMBaseURL:           srv.URL,
		CRMAPIVersion:        "2021-07-28",
		CRMPropertyObjectKey: "custom_objects.propiedades",
		WebhookSecret:        secret,
		WorkerPoolSize:       1,
		WorkerQueueSize:      16,
		SyncBatchSize:        50,
		CurrencyDefault:      "USD",
	}
	crm := NewCRMClient(cfg)
	crm.Pacer().Sleep = func(context.Context, time.Duration) error { return nil }

	comp := Build(cfg, db, nil, crm)
	return &testEnv{engine: New(cfg, db, nil, comp), comp: comp, crm: fake, db: db}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ── flows ────────────────────────────────────────────────────────────────────

func TestRouter_AlmedaFlow(t *testing.T) {
	env := setupTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/zonas", map[string]string{
		"provincia": "Málaga", "municipio": "Málaga", "zona": "Almeda",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/webhooks/cliente", map[string]any{
		"id":       "ct-1",
		"location": map[string]string{"id": "loc-1"},
		"customData": map[string]any{
			"full_name":    "Laura Pérez",
			"presupuesto":  "200.000 €",
			"habitaciones": "2",
			"metros":       70,
			"zona_interes": "almeda",
		},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "success", decode(t, w)["status"])

	w = env.do(t, http.MethodPost, "/api/webhooks/propiedad", map[string]any{
		"location": map[string]string{"id": "loc-1"},
		"customData": map[string]any{
			"contact_id":   "rec-1",
			"precio":       "$150,000",
			"habitaciones": 3,
			"metros":       "85",
			"estado":       "a_la_venta",
			"zona":         "Almeda",
		},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["matches_found"])

	var matches int64
	require.NoError(t, env.db.Model(&model.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(1), matches)

	// association syncs run on the pool; draining it flushes them
	require.NoError(t, env.comp.Pool.Shutdown(context.Background()))
	assert.Equal(t, []string{"ct-1->rec-1"}, env.crm.snapshot())
}

func TestRouter_DeleteAndValidation(t *testing.T) {
	env := setupTestEnv(t, "")
	t.Cleanup(func() { _ = env.comp.Pool.Shutdown(context.Background()) })

	w := env.do(t, http.MethodPost, "/api/webhooks/cliente", map[string]any{
		"id": "ct-1", "location": map[string]string{"id": "loc-1"}, "customData": map[string]any{},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/webhooks/delete", map[string]any{
		"type": "ContactDelete", "id": "ct-1", "locationId": "loc-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", decode(t, w)["status"])

	var clientes int64
	require.NoError(t, env.db.Model(&model.Cliente{}).Count(&clientes).Error)
	assert.Zero(t, clientes)

	w = env.do(t, http.MethodPost, "/api/webhooks/propiedad", map[string]any{"id": "rec-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/webhooks/propiedad", map[string]any{
		"id": "rec-1", "location": map[string]string{"id": "loc-unknown"},
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/zonas", map[string]string{"zona": "Centro"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_WebhookSignature(t *testing.T) {
	env := setupTestEnv(t, "s3cret")
	t.Cleanup(func() { _ = env.comp.Pool.Shutdown(context.Background()) })

	payload := map[string]any{"id": "ct-1", "location": map[string]string{"id": "loc-1"}}
	w := env.do(t, http.MethodPost, "/api/webhooks/cliente", payload, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	// do() encodes with json.Encoder, which appends a newline
	raw = append(raw, '\n')
	sig := hex.EncodeToString(middleware.Sign("s3cret", raw))
	w = env.do(t, http.MethodPost, "/api/webhooks/cliente", payload, map[string]string{middleware.SignatureHeader: sig})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// zone endpoints are not signed
	w = env.do(t, http.MethodGet, "/api/zonas", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Health(t *testing.T) {
	env := setupTestEnv(t, "")
	t.Cleanup(func() { _ = env.comp.Pool.Shutdown(context.Background()) })

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "disabled", body["redis"])
	assert.Equal(t, "closed", body["crm"])
}
