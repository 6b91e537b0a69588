package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
)

type stubTables struct {
	detail *models.TableDetail
	err    error
	asked  []string
}

func (s *stubTables) GetTableDetail(ctx context.Context, datasourceID uuid.UUID, table string) (*models.TableDetail, error) {
	s.asked = append(s.asked, table)
	if s.err != nil {
		return nil, s.err
	}
	return s.detail, nil
}

func newTestGenConfigService() (GenConfigService, *memConfigRepo, *stubTables) {
	repo := newMemConfigRepo()
	tables := &stubTables{detail: userTableDetail()}
	return NewGenConfigService(repo, tables, testGeneratorConfig(), zap.NewNop()), repo, tables
}

func TestGenConfigService_ImportTable_UserScenario(t *testing.T) {
	svc, _, tables := newTestGenConfigService()
	dsID := uuid.New()

	cfg, err := svc.ImportTable(context.Background(), ImportTableRequest{DatasourceID: dsID, TableName: "sys_user"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sys_user"}, tables.asked)
	assert.Equal(t, "user", cfg.ModuleName)
	assert.Equal(t, "sys_user", cfg.TableName)
	require.NotNil(t, cfg.DatasourceID)
	assert.Equal(t, dsID, *cfg.DatasourceID)
	assert.Equal(t, "/api/user", cfg.APIPrefix)
	assert.Equal(t, "example.com/admin", cfg.PackageName)
	assert.Equal(t, "crud", cfg.TemplateType)
	assert.Equal(t, "admingen", cfg.Author)
	assert.Equal(t, models.DefaultPageConfig("user"), cfg.PageConfig)

	require.Len(t, cfg.Fields, 5)
	byName := map[string]models.FieldDescriptor{}
	for _, f := range cfg.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, models.ComponentTextInput, byName["username"].Component)
	assert.Equal(t, models.QueryContains, byName["username"].QueryType)
	assert.Equal(t, []string{"required", "max:50"}, byName["username"].RuleStrings())
	assert.False(t, byName["password"].ShowInList)
	assert.Equal(t, models.ComponentSelect, byName["status"].Component)
	assert.NotEmpty(t, byName["status"].DictType)
	assert.False(t, byName["created_at"].ShowInForm)
}

func TestGenConfigService_ImportTable_Overrides(t *testing.T) {
	svc, _, _ := newTestGenConfigService()

	cfg, err := svc.ImportTable(context.Background(), ImportTableRequest{
		DatasourceID: uuid.New(),
		TableName:    "sys_user",
		ModuleName:   "member",
		APIPrefix:    "/v2/members",
		PackageName:  "example.com/crm",
		Author:       "dana",
	})
	require.NoError(t, err)
	assert.Equal(t, "member", cfg.ModuleName)
	assert.Equal(t, "/v2/members", cfg.APIPrefix)
	assert.Equal(t, "example.com/crm", cfg.PackageName)
	assert.Equal(t, "dana", cfg.Author)
}

func TestGenConfigService_ImportTable_IntrospectionErrorsPassThrough(t *testing.T) {
	svc, repo, tables := newTestGenConfigService()
	tables.err = fmt.Errorf("refused: %w", apperrors.ErrConnection)

	_, err := svc.ImportTable(context.Background(), ImportTableRequest{DatasourceID: uuid.New(), TableName: "sys_user"})
	require.ErrorIs(t, err, apperrors.ErrConnection)
	assert.Empty(t, repo.items)
}

func TestGenConfigService_ImportTable_RequiresTable(t *testing.T) {
	svc, _, tables := newTestGenConfigService()

	_, err := svc.ImportTable(context.Background(), ImportTableRequest{DatasourceID: uuid.New()})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, tables.asked)
}

func TestGenConfigService_ImportTable_Deterministic(t *testing.T) {
	first, _, _ := newTestGenConfigService()
	second, _, _ := newTestGenConfigService()
	req := ImportTableRequest{DatasourceID: uuid.New(), TableName: "sys_user"}

	a, err := first.ImportTable(context.Background(), req)
	require.NoError(t, err)
	b, err := second.ImportTable(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a.Fields, b.Fields)
	assert.Equal(t, a.PageConfig, b.PageConfig)
}

func TestGenConfigService_CRUD(t *testing.T) {
	svc, _, _ := newTestGenConfigService()
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.GenConfig{ModuleName: "order_item", TableName: "t_order_items"})
	require.NoError(t, err)
	assert.Equal(t, "/api/order-item", created.APIPrefix)
	assert.Equal(t, "order:item", created.PageConfig.Permission.Prefix)

	_, err = svc.Create(ctx, &models.GenConfig{ModuleName: "order_item", TableName: "x"})
	require.ErrorIs(t, err, apperrors.ErrConflict)

	created.APIPrefix = "/api/items"
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "/api/items", got.APIPrefix)

	list, total, err := svc.List(ctx, repositories.GenConfigFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), total)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGenConfigService_Create_Validates(t *testing.T) {
	svc, _, _ := newTestGenConfigService()

	_, err := svc.Create(context.Background(), &models.GenConfig{TableName: "t"})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "ModuleName")
}

func TestGenConfigService_RejectsUnsafeModuleNames(t *testing.T) {
	svc, _, _ := newTestGenConfigService()
	ctx := context.Background()

	for _, name := range []string{"__", "a/b", "1abc", "../etc", "user-admin"} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, &models.GenConfig{ModuleName: name, TableName: "t"})
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), "ModuleName")
		})
	}

	created, err := svc.Create(ctx, &models.GenConfig{ModuleName: "order_item", TableName: "t_order_items"})
	require.NoError(t, err)
	created.ModuleName = "__"
	_, err = svc.Update(ctx, created)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGenConfigService_MarkGenerated(t *testing.T) {
	svc, _, _ := newTestGenConfigService()
	ctx := context.Background()
	created, err := svc.Create(ctx, &models.GenConfig{ModuleName: "user", TableName: "sys_user"})
	require.NoError(t, err)
	assert.False(t, created.IsGenerated)

	require.NoError(t, svc.MarkGenerated(ctx, created.ID))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.IsGenerated)
	assert.NotNil(t, got.GeneratedAt)
}
