package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/creeyes/crmprueba/internal/fieldparse"
	"github.com/creeyes/crmprueba/internal/infra"
	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/google/uuid"
)

// ── In-memory store ──────────────────────────────────────────────────────────
// One shared state behind the repository interfaces. Matching goes through
// PropertyAcceptsLead / LeadAcceptsProperty.

type memDB struct {
	mu          sync.Mutex
	agencias    map[string]*model.Agencia
	propiedades map[uuid.UUID]*model.Propiedad
	clientes    map[uuid.UUID]*model.Cliente
	zonas       []model.Zona
	matches     map[[2]uuid.UUID]struct{} // {cliente, propiedad}
}

func newMemDB() *memDB {
	return &memDB{
		agencias:    map[string]*model.Agencia{},
		propiedades: map[uuid.UUID]*model.Propiedad{},
		clientes:    map[uuid.UUID]*model.Cliente{},
		matches:     map[[2]uuid.UUID]struct{}{},
	}
}

func (db *memDB) addAgencia(a model.Agencia) {
	db.agencias[a.LocationID] = &a
}

func (db *memDB) addZona(nombre string) model.Zona {
	z := model.Zona{ID: uuid.New(), MunicipioID: uuid.New(), Nombre: nombre, NombreKey: fieldparse.FoldKey(nombre)}
	db.zonas = append(db.zonas, z)
	return z
}

// ── Agencias ─────────────────────────────────────────────────────────────────

type memAgencias struct{ db *memDB }

func (r memAgencias) FindByLocationID(_ context.Context, id string) (*model.Agencia, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.agencias[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memAgencias) List(_ context.Context) ([]model.Agencia, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]model.Agencia, 0, len(r.db.agencias))
	for _, a := range r.db.agencias {
		out = append(out, *a)
	}
	return out, nil
}

func (r memAgencias) Upsert(_ context.Context, a *model.Agencia) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *a
	r.db.agencias[a.LocationID] = &cp
	return nil
}

func (r memAgencias) SetAssociationType(_ context.Context, id, assoc string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.agencias[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.AssociationTypeID = &assoc
	return nil
}

// ── Zonas ────────────────────────────────────────────────────────────────────

type memZonas struct{ db *memDB }

func (r memZonas) Tree(_ context.Context) ([]model.Provincia, error) { return nil, nil }

func (r memZonas) ListZonas(_ context.Context) ([]model.Zona, error) {
	return append([]model.Zona(nil), r.db.zonas...), nil
}

func (r memZonas) FindByName(_ context.Context, name string) (*model.Zona, error) {
	for _, z := range r.db.zonas {
		if z.NombreKey == fieldparse.FoldKey(name) {
			cp := z
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memZonas) FindByNames(ctx context.Context, names []string) ([]model.Zona, error) {
	out := []model.Zona{}
	for _, n := range names {
		if z, err := r.FindByName(ctx, n); err == nil {
			out = append(out, *z)
		}
	}
	return out, nil
}

func (r memZonas) Register(_ context.Context, _, _, zona string) (repository.RegistroZona, error) {
	for _, z := range r.db.zonas {
		if z.NombreKey == fieldparse.FoldKey(zona) {
			return repository.RegistroZona{Zona: z}, nil
		}
	}
	z := r.db.addZona(zona)
	return repository.RegistroZona{Zona: z, ZonaCreada: true}, nil
}

// ── Propiedades ──────────────────────────────────────────────────────────────

type memPropiedades struct{ db *memDB }

func (r memPropiedades) load(p *model.Propiedad) *model.Propiedad {
	cp := *p
	if a, ok := r.db.agencias[p.LocationID]; ok {
		ac := *a
		cp.Agencia = &ac
	}
	if p.ZonaID != nil {
		for _, z := range r.db.zonas {
			if z.ID == *p.ZonaID {
				zc := z
				cp.Zona = &zc
			}
		}
	}
	return &cp
}

func (r memPropiedades) FindByID(_ context.Context, id uuid.UUID) (*model.Propiedad, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.propiedades[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.load(p), nil
}

func (r memPropiedades) FindByRecordID(_ context.Context, loc, rec string) (*model.Propiedad, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.propiedades {
		if p.LocationID == loc && p.RemoteID() == rec {
			return r.load(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memPropiedades) UpsertByRecordID(_ context.Context, p *model.Propiedad) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.propiedades {
		if existing.LocationID == p.LocationID && existing.RemoteID() == p.RemoteID() {
			p.ID = id
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.db.propiedades[p.ID] = &cp
	return nil
}

func (r memPropiedades) Create(_ context.Context, p *model.Propiedad) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.db.propiedades[p.ID] = &cp
	return nil
}

func (r memPropiedades) DeleteByRecordID(_ context.Context, loc, rec string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, p := range r.db.propiedades {
		if p.LocationID == loc && p.RemoteID() == rec {
			delete(r.db.propiedades, id)
			for k := range r.db.matches {
				if k[1] == id {
					delete(r.db.matches, k)
				}
			}
			return true, nil
		}
	}
	return false, nil
}

func (r memPropiedades) MatchingForCliente(_ context.Context, c *model.Cliente) ([]model.Propiedad, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Propiedad{}
	for _, p := range r.db.propiedades {
		if LeadAcceptsProperty(c, p) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPropiedades) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Propiedad, error) {
	out := []model.Propiedad{}
	for _, id := range ids {
		if p, err := r.FindByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPropiedades) CountPending(_ context.Context, _ repository.ClaimOptions) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, p := range r.db.propiedades {
		if p.SyncStatus == model.SyncPending {
			n++
		}
	}
	return n, nil
}

func (r memPropiedades) ClaimPending(_ context.Context, opts repository.ClaimOptions) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := []uuid.UUID{}
	for id, p := range r.db.propiedades {
		if p.SyncStatus == model.SyncPending && len(ids) < opts.Limit {
			p.SyncStatus = model.SyncSyncing
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memPropiedades) ListPending(_ context.Context, _ repository.ClaimOptions) ([]model.Propiedad, error) {
	return nil, nil
}

func (r memPropiedades) ReleaseClaim(_ context.Context, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		if p, ok := r.db.propiedades[id]; ok && p.SyncStatus == model.SyncSyncing {
			p.SyncStatus = model.SyncPending
		}
	}
	return nil
}

func (r memPropiedades) MarkSynced(_ context.Context, id uuid.UUID, rec string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := r.db.propiedades[id]
	p.SyncStatus, p.SyncError, p.CRMRecordID = model.SyncSynced, nil, &rec
	return nil
}

func (r memPropiedades) MarkError(_ context.Context, id uuid.UUID, msg string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p := r.db.propiedades[id]
	p.SyncStatus, p.SyncError = model.SyncError, &msg
	return nil
}

// ── Clientes ─────────────────────────────────────────────────────────────────

type memClientes struct{ db *memDB }

func (r memClientes) load(c *model.Cliente) *model.Cliente {
	cp := *c
	cp.ZonasInteres = append([]model.Zona(nil), c.ZonasInteres...)
	if a, ok := r.db.agencias[c.LocationID]; ok {
		ac := *a
		cp.Agencia = &ac
	}
	return &cp
}

func (r memClientes) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.clientes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.load(c), nil
}

func (r memClientes) FindByContactID(_ context.Context, loc, contact string) (*model.Cliente, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.clientes {
		if c.LocationID == loc && c.RemoteID() == contact {
			return r.load(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memClientes) UpsertByContactID(_ context.Context, c *model.Cliente) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, existing := range r.db.clientes {
		if existing.LocationID == c.LocationID && existing.RemoteID() == c.RemoteID() {
			c.ID = id
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.db.clientes[c.ID] = &cp
	return nil
}

func (r memClientes) Create(_ context.Context, c *model.Cliente) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	r.db.clientes[c.ID] = &cp
	return nil
}

func (r memClientes) DeleteByContactID(_ context.Context, loc, contact string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, c := range r.db.clientes {
		if c.LocationID == loc && c.RemoteID() == contact {
			delete(r.db.clientes, id)
			for k := range r.db.matches {
				if k[0] == id {
					delete(r.db.matches, k)
				}
			}
			return true, nil
		}
	}
	return false, nil
}

func (r memClientes) MatchingForPropiedad(_ context.Context, p *model.Propiedad) ([]model.Cliente, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Cliente{}
	for _, c := range r.db.clientes {
		if PropertyAcceptsLead(p, c) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memClientes) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Cliente, error) {
	out := []model.Cliente{}
	for _, id := range ids {
		if c, err := r.FindByID(ctx, id); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memClientes) CountPending(_ context.Context, _ repository.ClaimOptions) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, c := range r.db.clientes {
		if c.SyncStatus == model.SyncPending {
			n++
		}
	}
	return n, nil
}

func (r memClientes) ClaimPending(_ context.Context, opts repository.ClaimOptions) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ids := []uuid.UUID{}
	for id, c := range r.db.clientes {
		if c.SyncStatus == model.SyncPending && len(ids) < opts.Limit {
			c.SyncStatus = model.SyncSyncing
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memClientes) ListPending(_ context.Context, _ repository.ClaimOptions) ([]model.Cliente, error) {
	return nil, nil
}

func (r memClientes) ReleaseClaim(_ context.Context, ids []uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, id := range ids {
		if c, ok := r.db.clientes[id]; ok && c.SyncStatus == model.SyncSyncing {
			c.SyncStatus = model.SyncPending
		}
	}
	return nil
}

func (r memClientes) MarkSynced(_ context.Context, id uuid.UUID, contact string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.clientes[id]
	c.SyncStatus, c.SyncError, c.CRMContactID = model.SyncSynced, nil, &contact
	return nil
}

func (r memClientes) MarkError(_ context.Context, id uuid.UUID, msg string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c := r.db.clientes[id]
	c.SyncStatus, c.SyncError = model.SyncError, &msg
	return nil
}

// ── Matches ──────────────────────────────────────────────────────────────────

type memMatches struct{ db *memDB }

func (r memMatches) ReplaceClientesForPropiedad(_ context.Context, prop uuid.UUID, ids []uuid.UUID) (repository.Delta, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.replace(func(k [2]uuid.UUID) bool { return k[1] == prop }, func(o uuid.UUID) [2]uuid.UUID { return [2]uuid.UUID{o, prop} }, func(k [2]uuid.UUID) uuid.UUID { return k[0] }, ids)
}

func (r memMatches) ReplacePropiedadesForCliente(_ context.Context, cli uuid.UUID, ids []uuid.UUID) (repository.Delta, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.replace(func(k [2]uuid.UUID) bool { return k[0] == cli }, func(o uuid.UUID) [2]uuid.UUID { return [2]uuid.UUID{cli, o} }, func(k [2]uuid.UUID) uuid.UUID { return k[1] }, ids)
}

func (r memMatches) replace(anchored func([2]uuid.UUID) bool, key func(uuid.UUID) [2]uuid.UUID, other func([2]uuid.UUID) uuid.UUID, ids []uuid.UUID) (repository.Delta, int, error) {
	var d repository.Delta
	want := map[uuid.UUID]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for k := range r.db.matches {
		if !anchored(k) {
			continue
		}
		if _, ok := want[other(k)]; !ok {
			delete(r.db.matches, k)
			d.Removed = append(d.Removed, other(k))
		}
	}
	for id := range want {
		if _, ok := r.db.matches[key(id)]; !ok {
			r.db.matches[key(id)] = struct{}{}
			d.Added = append(d.Added, id)
		}
	}
	return d, len(want), nil
}

func (r memMatches) ClienteIDsForPropiedad(_ context.Context, prop uuid.UUID) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []uuid.UUID{}
	for k := range r.db.matches {
		if k[1] == prop {
			out = append(out, k[0])
		}
	}
	return out, nil
}

func (r memMatches) PropiedadIDsForCliente(_ context.Context, cli uuid.UUID) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []uuid.UUID{}
	for k := range r.db.matches {
		if k[0] == cli {
			out = append(out, k[1])
		}
	}
	return out, nil
}

// ── Collaborators ────────────────────────────────────────────────────────────

// staticTokens hands out "tok-<location>" for the listed tenants.
type staticTokens map[string]bool

func (s staticTokens) GetValidToken(_ context.Context, loc string) (string, bool) {
	if !s[loc] {
		return "", false
	}
	return "tok-" + loc, true
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []AssociationJob
	err  error
}

func (d *recordingDispatcher) Dispatch(job AssociationJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) last() AssociationJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs[len(d.jobs)-1]
}

// fakeCRM records every call and answers with deterministic ids.
type fakeCRM struct {
	mu          sync.Mutex
	calls       []string
	err         error
	contacts    []infra.ContactInput
	records     []map[string]any
	objOptions  map[string][]infra.FieldOption
	leadOptions map[string][]string
	assocType   string
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{objOptions: map[string][]infra.FieldOption{}, leadOptions: map[string][]string{}}
}

func (f *fakeCRM) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeCRM) CreateContact(_ context.Context, _, _ string, in infra.ContactInput) (string, error) {
	if err := f.record("create_contact"); err != nil {
		return "", err
	}
	f.contacts = append(f.contacts, in)
	return "ct-new", nil
}

func (f *fakeCRM) UpdateContact(_ context.Context, _, _ string, in infra.ContactInput) error {
	f.contacts = append(f.contacts, in)
	return f.record("update_contact")
}

func (f *fakeCRM) CreateRecord(_ context.Context, _, _, _ string, props map[string]any) (string, error) {
	if err := f.record("create_record"); err != nil {
		return "", err
	}
	f.records = append(f.records, props)
	return "rec-new", nil
}

func (f *fakeCRM) UpdateRecord(_ context.Context, _, _, _, _ string, props map[string]any) error {
	f.records = append(f.records, props)
	return f.record("update_record")
}

func (f *fakeCRM) UpdateObjectFieldOptions(_ context.Context, _, loc, _ string, opts []infra.FieldOption) error {
	f.mu.Lock()
	f.objOptions[loc] = opts
	f.mu.Unlock()
	return f.record("object_options")
}

func (f *fakeCRM) UpdateContactFieldOptions(_ context.Context, _, loc, _ string, opts []string) error {
	f.mu.Lock()
	f.leadOptions[loc] = opts
	f.mu.Unlock()
	return f.record("contact_options")
}

func (f *fakeCRM) FindAssociationTypeID(_ context.Context, _, _, _ string) (string, error) {
	return f.assocType, f.record("find_association_type")
}

// inlineRunner runs submitted tasks synchronously.
type inlineRunner struct {
	names []string
}

func (r *inlineRunner) Submit(name string, task func(context.Context) error, onDone func(error)) error {
	r.names = append(r.names, name)
	err := task(context.Background())
	if onDone != nil {
		onDone(err)
	}
	return nil
}

var errBoom = errors.New("boom")

func strPtr(s string) *string { return &s }

func activeAgencia(loc string, assoc string) model.Agencia {
	a := model.Agencia{LocationID: loc, Active: true, FeaturedThreshold: defaultFeaturedThreshold, CreatedAt: time.Now()}
	if assoc != "" {
		a.AssociationTypeID = &assoc
	}
	return a
}
