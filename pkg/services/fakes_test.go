package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services/inference"
)

// Test encryption key (32 bytes, base64 encoded) - same as crypto/credentials_test.go
const testEncryptionKey = "dGVzdC1rZXktZm9yLXVuaXQtdGVzdHMtMzItYnl0ZXM="

func clone[T any](t T) T {
	data, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, apperrors.ErrNotFound)
}

// memConfigRepo is an in-memory repositories.GenConfigRepository.
type memConfigRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.GenConfig
	createErr error
	updateErr error
	markErr   error
}

var _ repositories.GenConfigRepository = (*memConfigRepo)(nil)

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{items: make(map[uuid.UUID]*models.GenConfig)}
}

func (m *memConfigRepo) Create(ctx context.Context, cfg *models.GenConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.items {
		if existing.ModuleName == cfg.ModuleName {
			return fmt.Errorf("module %s: %w", cfg.ModuleName, apperrors.ErrConflict)
		}
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = cfg.CreatedAt
	m.items[cfg.ID] = clone(cfg)
	return nil
}

func (m *memConfigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.GenConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.items[id]
	if !ok {
		return nil, notFound("config", id)
	}
	return clone(cfg), nil
}

func (m *memConfigRepo) List(ctx context.Context, filter repositories.GenConfigFilter) ([]*models.GenConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GenConfig
	for _, cfg := range m.items {
		if filter.ModuleName != "" && cfg.ModuleName != filter.ModuleName {
			continue
		}
		out = append(out, clone(cfg))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleName < out[j].ModuleName })
	return out, nil
}

func (m *memConfigRepo) Count(ctx context.Context, filter repositories.GenConfigFilter) (int64, error) {
	list, err := m.List(ctx, filter)
	return int64(len(list)), err
}

func (m *memConfigRepo) Update(ctx context.Context, cfg *models.GenConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.items[cfg.ID]; !ok {
		return notFound("config", cfg.ID)
	}
	cfg.UpdatedAt = time.Now()
	m.items[cfg.ID] = clone(cfg)
	return nil
}

func (m *memConfigRepo) MarkGenerated(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	cfg, ok := m.items[id]
	if !ok {
		return notFound("config", id)
	}
	cfg.IsGenerated = true
	cfg.GeneratedAt = &at
	return nil
}

func (m *memConfigRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound("config", id)
	}
	delete(m.items, id)
	return nil
}

// memTemplateRepo is an in-memory repositories.TemplateRepository.
type memTemplateRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.Template
}

var _ repositories.TemplateRepository = (*memTemplateRepo)(nil)

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{items: make(map[uuid.UUID]*models.Template)}
}

func (m *memTemplateRepo) Create(ctx context.Context, tpl *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.TemplateKey == tpl.TemplateKey {
			return fmt.Errorf("template %s: %w", tpl.TemplateKey, apperrors.ErrConflict)
		}
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	c := *tpl
	m.items[tpl.ID] = &c
	return nil
}

func (m *memTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.items[id]
	if !ok {
		return nil, notFound("template", id)
	}
	c := *tpl
	return &c, nil
}

func (m *memTemplateRepo) GetByKey(ctx context.Context, key string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tpl := range m.items {
		if tpl.TemplateKey == key {
			c := *tpl
			return &c, nil
		}
	}
	return nil, notFound("template", key)
}

func (m *memTemplateRepo) List(ctx context.Context, group string) ([]*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Template
	for _, tpl := range m.items {
		if group == "" || tpl.Type == group {
			c := *tpl
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateKey < out[j].TemplateKey })
	return out, nil
}

func (m *memTemplateRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.items)), nil
}

func (m *memTemplateRepo) Update(ctx context.Context, tpl *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[tpl.ID]; !ok {
		return notFound("template", tpl.ID)
	}
	c := *tpl
	m.items[tpl.ID] = &c
	return nil
}

func (m *memTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound("template", id)
	}
	delete(m.items, id)
	return nil
}

func (m *memTemplateRepo) setContent(t *testing.T, key, content string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tpl := range m.items {
		if tpl.TemplateKey == key {
			tpl.Content = content
			return
		}
	}
	t.Fatalf("template %s not seeded", key)
}

// memVersionRepo is an in-memory repositories.VersionRepository.
type memVersionRepo struct {
	mu    sync.Mutex
	items []*models.Version
	clock time.Time
}

var _ repositories.VersionRepository = (*memVersionRepo)(nil)

func newMemVersionRepo() *memVersionRepo {
	return &memVersionRepo{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memVersionRepo) Create(ctx context.Context, v *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.ID = uuid.New()
	m.clock = m.clock.Add(time.Second)
	v.CreatedAt = m.clock
	c := *v
	m.items = append(m.items, &c)
	return nil
}

func (m *memVersionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.items {
		if v.ID == id {
			c := *v
			return &c, nil
		}
	}
	return nil, notFound("version", id)
}

func (m *memVersionRepo) ListByConfig(ctx context.Context, configID uuid.UUID) ([]*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Version
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].ConfigID == configID {
			c := *m.items[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memVersionRepo) GetLatest(ctx context.Context, configID uuid.UUID) (*models.Version, error) {
	list, _ := m.ListByConfig(ctx, configID)
	if len(list) == 0 {
		return nil, notFound("version for config", configID)
	}
	return list[0], nil
}

// memDatasourceRepo is an in-memory repositories.DatasourceRepository.
type memDatasourceRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.Datasource
	passwords map[uuid.UUID]string
	createErr error
}

var _ repositories.DatasourceRepository = (*memDatasourceRepo)(nil)

func newMemDatasourceRepo() *memDatasourceRepo {
	return &memDatasourceRepo{
		items:     make(map[uuid.UUID]*models.Datasource),
		passwords: make(map[uuid.UUID]string),
	}
}

func (m *memDatasourceRepo) Create(ctx context.Context, ds *models.Datasource, encryptedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	ds.ID = uuid.New()
	c := *ds
	c.Password = ""
	m.items[ds.ID] = &c
	m.passwords[ds.ID] = encryptedPassword
	return nil
}

func (m *memDatasourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.items[id]
	if !ok {
		return nil, "", notFound("datasource", id)
	}
	c := *ds
	return &c, m.passwords[id], nil
}

func (m *memDatasourceRepo) List(ctx context.Context) ([]*models.Datasource, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Datasource
	var pw []string
	for id, ds := range m.items {
		c := *ds
		c.Password = "should-be-cleared"
		out = append(out, &c)
		pw = append(pw, m.passwords[id])
	}
	return out, pw, nil
}

func (m *memDatasourceRepo) Update(ctx context.Context, ds *models.Datasource, encryptedPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[ds.ID]; !ok {
		return notFound("datasource", ds.ID)
	}
	c := *ds
	c.Password = ""
	m.items[ds.ID] = &c
	m.passwords[ds.ID] = encryptedPassword
	return nil
}

func (m *memDatasourceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound("datasource", id)
	}
	delete(m.items, id)
	delete(m.passwords, id)
	return nil
}

// fakeConnections implements ConnectionTester and ConnectionSource.
type fakeConnections struct {
	mu      sync.Mutex
	result  *models.ConnectionTestResult
	testErr error
	getErr  error
	tested  []models.ConnectionParams
	closed  []uuid.UUID
	fetched []*models.Datasource
	pool    *fakePool
}

func (f *fakeConnections) TestConnection(ctx context.Context, params models.ConnectionParams) (*models.ConnectionTestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tested = append(f.tested, params)
	if f.testErr != nil {
		return nil, f.testErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.ConnectionTestResult{Success: true, Version: "8.0.36", Message: "connection successful"}, nil
}

func (f *fakeConnections) CloseConnection(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
}

func (f *fakeConnections) GetConnection(ctx context.Context, ds *models.Datasource) (datasource.PoolConnector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ds)
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.pool == nil {
		f.pool = &fakePool{}
	}
	return f.pool, nil
}

type fakePool struct{}

func (*fakePool) Ping(ctx context.Context) error { return nil }
func (*fakePool) Close() error                   { return nil }
func (*fakePool) GetType() string                { return "fake" }

// fakeDialect records the queries it receives.
type fakeDialect struct {
	page      *models.TablePage
	listErr   error
	detail    *models.TableDetail
	detailErr error
	lastQuery models.TableQuery
	lastTable string
}

func (d *fakeDialect) Info() datasource.DialectInfo {
	return datasource.DialectInfo{Type: "fake", DisplayName: "Fake"}
}

func (d *fakeDialect) Open(ctx context.Context, params models.ConnectionParams, opts datasource.PoolOptions) (datasource.PoolConnector, error) {
	return &fakePool{}, nil
}

func (d *fakeDialect) Probe(ctx context.Context, conn datasource.PoolConnector) (string, error) {
	return "fake 1.0", nil
}

func (d *fakeDialect) ListTables(ctx context.Context, conn datasource.PoolConnector, q models.TableQuery) (*models.TablePage, error) {
	d.lastQuery = q
	if d.listErr != nil {
		return nil, d.listErr
	}
	if d.page != nil {
		return d.page, nil
	}
	return &models.TablePage{Items: []models.TableSummary{}, Page: q.Page, Limit: q.Limit}, nil
}

func (d *fakeDialect) TableDetail(ctx context.Context, conn datasource.PoolConnector, table string) (*models.TableDetail, error) {
	d.lastTable = table
	if d.detailErr != nil {
		return nil, d.detailErr
	}
	return d.detail, nil
}

func (d *fakeDialect) lookup(dsType string) (datasource.Dialect, error) {
	if dsType != "fake" {
		return datasource.Lookup(dsType)
	}
	return d, nil
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }

// userTableDetail is the sys_user table used across service tests.
func userTableDetail() *models.TableDetail {
	return &models.TableDetail{
		Name:    "sys_user",
		Comment: "system users",
		Columns: []models.TableColumn{
			{Name: "id", DBType: "int", IsPrimary: true, IsAutoIncrement: true},
			{Name: "username", DBType: "varchar", Length: int64Ptr(50), Comment: "login name"},
			{Name: "password", DBType: "varchar", Length: int64Ptr(100)},
			{Name: "status", DBType: "tinyint", DefaultValue: strPtr("1")},
			{Name: "created_at", DBType: "datetime"},
		},
		Indexes: []models.IndexInfo{{Name: "PRIMARY", Columns: []string{"id"}, IsUnique: true, IsPrimary: true}},
	}
}

func testGeneratorConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		FrontendRoot:        "/out/web",
		BackendRoot:         "/out/api",
		SQLRoot:             "/out/sql",
		TempDir:             "/tmp",
		DefaultAuthor:       "admingen",
		DefaultTemplateType: "crud",
		DefaultAPIPrefix:    "/api",
		DefaultPackageName:  "example.com/admin",
	}
}

// genStack wires config, template and generator services over in-memory
// repositories with the builtin templates seeded.
type genStack struct {
	configRepo   *memConfigRepo
	templateRepo *memTemplateRepo
	configs      GenConfigService
	templates    TemplateService
	generator    GeneratorService
}

func newGenStack(t *testing.T) *genStack {
	t.Helper()
	logger := zap.NewNop()
	s := &genStack{
		configRepo:   newMemConfigRepo(),
		templateRepo: newMemTemplateRepo(),
	}
	s.configs = NewGenConfigService(s.configRepo, nil, testGeneratorConfig(), logger)
	s.templates = NewTemplateService(s.templateRepo, logger)
	s.generator = NewGeneratorService(s.configs, s.templates, nil, logger)

	_, err := s.templates.SeedBuiltin(context.Background())
	require.NoError(t, err)
	return s
}

// createUserConfig stores the config imported from userTableDetail.
func (s *genStack) createUserConfig(t *testing.T) *models.GenConfig {
	t.Helper()
	detail := userTableDetail()
	cfg, err := s.configs.Create(context.Background(), &models.GenConfig{
		ModuleName: "user",
		TableName:  detail.Name,
		Fields:     inference.InferFields(detail.Columns),
	})
	require.NoError(t, err)
	return cfg
}
