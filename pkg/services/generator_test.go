package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

func relativePaths(files []models.GeneratedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelativePath
	}
	return out
}

func TestGenerator_Preview_Paths(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)

	preview, err := s.generator.Preview(context.Background(), cfg.ID)
	require.NoError(t, err)
	require.NoError(t, preview.Err())

	assert.Equal(t, []string{
		"src/api/user.ts",
		"src/types/user.ts",
		"src/views/user/index.vue",
		"src/views/user/components/UserForm.vue",
	}, relativePaths(preview.Frontend))
	assert.Equal(t, []string{
		"internal/model/user.go",
		"internal/repository/user_repository.go",
		"internal/service/user_service.go",
		"internal/handler/user_handler.go",
	}, relativePaths(preview.Backend))
	assert.Equal(t, []string{"sql/user_menu.sql"}, relativePaths(preview.SQL))

	for _, f := range preview.Backend {
		assert.Equal(t, models.GroupBackend, f.Group)
		assert.NotEmpty(t, f.Content, f.TemplateKey)
	}
	assert.Equal(t, "UserForm.vue", preview.Frontend[3].FileName)
}

func TestGenerator_Preview_RendersConfig(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)

	preview, err := s.generator.Preview(context.Background(), cfg.ID)
	require.NoError(t, err)

	model := preview.Backend[0].Content
	assert.Contains(t, model, "type User struct")
	assert.Contains(t, model, "\"time\"")
	assert.Contains(t, model, `db:"username"`)

	menu := preview.SQL[0].Content
	assert.Contains(t, menu, "'user:list'")
	assert.Contains(t, menu, "'user:delete'")
}

func TestGenerator_Preview_Deterministic(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)
	ctx := context.Background()

	first, err := s.generator.Preview(ctx, cfg.ID)
	require.NoError(t, err)
	second, err := s.generator.Preview(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerator_Preview_BrokenTemplateIsolatesGroup(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)
	s.templateRepo.setContent(t, "sql/menu", "{{.NoSuchField}}")

	preview, err := s.generator.Preview(context.Background(), cfg.ID)
	require.NoError(t, err)

	require.ErrorIs(t, preview.GroupErr(models.GroupSQL), apperrors.ErrTemplateRender)
	assert.Empty(t, preview.SQL)
	assert.Contains(t, preview.Errors, models.GroupSQL)
	assert.Len(t, preview.Frontend, 4)
	assert.Len(t, preview.Backend, 4)
	assert.NoError(t, preview.GroupErr(models.GroupFrontend))
	require.ErrorIs(t, preview.Err(), apperrors.ErrTemplateRender)
}

func TestGenerator_Preview_InactiveTemplate(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)
	ctx := context.Background()

	tpl, err := s.templates.GetByKey(ctx, "backend/handler")
	require.NoError(t, err)
	tpl.IsActive = false
	_, err = s.templates.Update(ctx, tpl)
	require.NoError(t, err)

	preview, err := s.generator.Preview(ctx, cfg.ID)
	require.NoError(t, err)
	require.ErrorIs(t, preview.GroupErr(models.GroupBackend), apperrors.ErrTemplateNotFound)
	assert.Len(t, preview.Frontend, 4)
}

func TestGenerator_Preview_UnknownConfig(t *testing.T) {
	s := newGenStack(t)

	_, err := s.generator.Preview(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGenerator_Render_UnknownGroup(t *testing.T) {
	s := newGenStack(t)
	cfg := s.createUserConfig(t)

	_, err := s.generator.Render(context.Background(), "mobile", PrepareVariables(cfg))
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTextCompiler_MissingKeyFails(t *testing.T) {
	r, err := TextCompiler{}.Compile("t", "hello {{.name}}")
	require.NoError(t, err)

	out, err := r.Render(map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = r.Render(map[string]any{})
	require.Error(t, err)
}

func TestTextCompiler_Funcs(t *testing.T) {
	r, err := TextCompiler{}.Compile("t", `{{pascal .}} {{kebab .}} {{plural "category"}} {{goname "user_id"}}`)
	require.NoError(t, err)

	out, err := r.Render("order_item")
	require.NoError(t, err)
	assert.Equal(t, "OrderItem order-item categories UserID", out)
}

func TestPrepareVariables(t *testing.T) {
	detail := userTableDetail()
	s := newGenStack(t)
	cfg := s.createUserConfig(t)

	v := PrepareVariables(cfg)
	assert.Equal(t, "User", v.TypeName)
	assert.Equal(t, "user", v.FileName)
	assert.Equal(t, "user", v.PermissionPrefix)
	assert.Equal(t, "ID", v.PrimaryKey.GoName)
	assert.Equal(t, "int64", v.PrimaryKey.GoType)
	assert.Len(t, v.Fields, len(detail.Columns))
	assert.Equal(t, []string{"time"}, v.GoImports)

	byName := map[string]FieldVariable{}
	for _, f := range v.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, "time.Time", byName["created_at"].GoType)
	assert.Equal(t, "string", byName["created_at"].TSType)
	assert.Equal(t, "createdAt", byName["created_at"].PropName)

	for _, f := range v.ListFields {
		assert.NotEqual(t, "password", f.Name)
	}
}

func TestPrepareVariables_DefaultPrimaryKey(t *testing.T) {
	v := PrepareVariables(&models.GenConfig{
		ModuleName: "audit_entry",
		Fields:     []models.FieldDescriptor{{Name: "message", Type: models.FieldTypeString}},
	})
	assert.Equal(t, "id", v.PrimaryKey.Name)
	assert.Equal(t, "number", v.PrimaryKey.TSType)
	assert.Equal(t, "audit:entry", v.PermissionPrefix)
	assert.Empty(t, v.GoImports)
}
