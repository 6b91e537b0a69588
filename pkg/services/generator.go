package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// Renderer renders one compiled template.
type Renderer interface {
	Render(vars any) (string, error)
}

// Compiler turns template source into a Renderer. The generator depends on
// this capability only, not on a template syntax.
type Compiler interface {
	Compile(name, source string) (Renderer, error)
}

// TemplateFuncs are available to every template compiled by TextCompiler.
var TemplateFuncs = template.FuncMap{
	"pascal": PascalCase,
	"camel":  CamelCase,
	"kebab":  KebabCase,
	"snake":  SnakeCase,
	"goname": GoName,
	"plural": inflection.Plural,
	"lower":  strings.ToLower,
	"upper":  strings.ToUpper,
	"join":   strings.Join,
}

// TextCompiler compiles text/template sources with missingkey=error.
type TextCompiler struct{}

var _ Compiler = TextCompiler{}

func (TextCompiler) Compile(name, source string) (Renderer, error) {
	t, err := template.New(name).Option("missingkey=error").Funcs(TemplateFuncs).Parse(source)
	if err != nil {
		return nil, err
	}
	return textRenderer{t: t}, nil
}

type textRenderer struct {
	t *template.Template
}

func (r textRenderer) Render(vars any) (string, error) {
	var b strings.Builder
	if err := r.t.Execute(&b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FieldVariable is a field descriptor with the casings and language types
// templates need.
type FieldVariable struct {
	models.FieldDescriptor
	PropName string
	GoName   string
	GoType   string
	TSType   string
}

// TemplateVariables is the render context of one config.
type TemplateVariables struct {
	ModuleName string
	TypeName   string // PascalCase
	FileName   string // kebab-case
	PropName   string // camelCase
	SnakeName  string

	TableName        string
	APIPrefix        string
	PackageName      string
	Author           string
	TemplateType     string
	PermissionPrefix string
	PageConfig       models.PageConfig

	PrimaryKey   FieldVariable
	Fields       []FieldVariable
	ListFields   []FieldVariable
	FormFields   []FieldVariable
	SearchFields []FieldVariable
	GoImports    []string
}

// artifact is one generated file kind: the template that renders it and
// where the output goes.
type artifact struct {
	key  string
	path func(v *TemplateVariables) string
}

// artifacts lists each group's files in render order.
var artifacts = map[string][]artifact{
	models.GroupFrontend: {
		{"frontend/api", func(v *TemplateVariables) string { return path.Join("src/api", v.FileName+".ts") }},
		{"frontend/types", func(v *TemplateVariables) string { return path.Join("src/types", v.FileName+".ts") }},
		{"frontend/index", func(v *TemplateVariables) string { return path.Join("src/views", v.FileName, "index.vue") }},
		{"frontend/form", func(v *TemplateVariables) string {
			return path.Join("src/views", v.FileName, "components", v.TypeName+"Form.vue")
		}},
	},
	models.GroupBackend: {
		{"backend/model", func(v *TemplateVariables) string { return path.Join("internal/model", v.SnakeName+".go") }},
		{"backend/repository", func(v *TemplateVariables) string {
			return path.Join("internal/repository", v.SnakeName+"_repository.go")
		}},
		{"backend/service", func(v *TemplateVariables) string {
			return path.Join("internal/service", v.SnakeName+"_service.go")
		}},
		{"backend/handler", func(v *TemplateVariables) string {
			return path.Join("internal/handler", v.SnakeName+"_handler.go")
		}},
	},
	models.GroupSQL: {
		{"sql/menu", func(v *TemplateVariables) string { return path.Join("sql", v.SnakeName+"_menu.sql") }},
	},
}

// PreviewResult holds every group's files. A failed group has no files and
// an entry in Errors; the other groups are still filled in.
type PreviewResult struct {
	Frontend []models.GeneratedFile `json:"frontend"`
	Backend  []models.GeneratedFile `json:"backend"`
	SQL      []models.GeneratedFile `json:"sql"`
	Errors   map[string]string      `json:"errors,omitempty"`

	errs map[string]error
}

// Files returns the files of one group.
func (p *PreviewResult) Files(group string) []models.GeneratedFile {
	switch group {
	case models.GroupFrontend:
		return p.Frontend
	case models.GroupBackend:
		return p.Backend
	case models.GroupSQL:
		return p.SQL
	}
	return nil
}

// GroupErr returns the error of one group, or nil.
func (p *PreviewResult) GroupErr(group string) error {
	return p.errs[group]
}

// Err joins the group errors in group order. Nil when every group rendered.
func (p *PreviewResult) Err() error {
	var errs []error
	for _, g := range models.Groups {
		if err := p.errs[g]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g, err))
		}
	}
	return errors.Join(errs...)
}

// FileSnapshot copies the files for a version snapshot.
func (p *PreviewResult) FileSnapshot() models.FileSnapshot {
	return models.FileSnapshot{Frontend: p.Frontend, Backend: p.Backend, SQL: p.SQL}
}

func (p *PreviewResult) set(group string, files []models.GeneratedFile, err error) {
	if err != nil {
		if p.errs == nil {
			p.errs = make(map[string]error)
			p.Errors = make(map[string]string)
		}
		p.errs[group] = err
		p.Errors[group] = err.Error()
		files = []models.GeneratedFile{}
	}
	switch group {
	case models.GroupFrontend:
		p.Frontend = files
	case models.GroupBackend:
		p.Backend = files
	case models.GroupSQL:
		p.SQL = files
	}
}

// ConfigReader loads a config. Satisfied by GenConfigService.
type ConfigReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.GenConfig, error)
}

// TemplateReader loads active templates by key. Satisfied by TemplateService.
type TemplateReader interface {
	GetByKey(ctx context.Context, key string) (*models.Template, error)
}

// GeneratorService renders configs into generated files. Output depends
// only on the config and templates, so repeated previews are identical.
type GeneratorService interface {
	// Render produces the files of one group in fixed order.
	Render(ctx context.Context, group string, vars *TemplateVariables) ([]models.GeneratedFile, error)

	// Preview renders every group of a stored config.
	Preview(ctx context.Context, configID uuid.UUID) (*PreviewResult, error)

	// PreviewConfig renders every group of an unsaved config.
	PreviewConfig(ctx context.Context, cfg *models.GenConfig) *PreviewResult
}

type generatorService struct {
	configs   ConfigReader
	templates TemplateReader
	compiler  Compiler
	logger    *zap.Logger
}

var _ GeneratorService = (*generatorService)(nil)

// NewGeneratorService creates a generator. A nil compiler uses TextCompiler.
func NewGeneratorService(configs ConfigReader, templates TemplateReader, compiler Compiler, logger *zap.Logger) GeneratorService {
	if compiler == nil {
		compiler = TextCompiler{}
	}
	return &generatorService{
		configs:   configs,
		templates: templates,
		compiler:  compiler,
		logger:    logger.Named("generator"),
	}
}

func (s *generatorService) Render(ctx context.Context, group string, vars *TemplateVariables) ([]models.GeneratedFile, error) {
	specs, ok := artifacts[group]
	if !ok {
		return nil, fmt.Errorf("unknown group %q: %w", group, apperrors.ErrInvalidInput)
	}

	files := make([]models.GeneratedFile, 0, len(specs))
	for _, a := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tpl, err := s.templates.GetByKey(ctx, a.key)
		if err != nil {
			return nil, err
		}
		renderer, err := s.compiler.Compile(a.key, tpl.Content)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w: %w", a.key, apperrors.ErrTemplateRender, err)
		}
		content, err := renderer.Render(vars)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w: %w", a.key, apperrors.ErrTemplateRender, err)
		}
		rel := a.path(vars)
		files = append(files, models.GeneratedFile{
			FileName:     path.Base(rel),
			RelativePath: rel,
			Content:      content,
			Group:        group,
			TemplateKey:  a.key,
		})
	}
	return files, nil
}

func (s *generatorService) Preview(ctx context.Context, configID uuid.UUID) (*PreviewResult, error) {
	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	return s.PreviewConfig(ctx, cfg), nil
}

func (s *generatorService) PreviewConfig(ctx context.Context, cfg *models.GenConfig) *PreviewResult {
	vars := PrepareVariables(cfg)
	result := &PreviewResult{}
	for _, group := range models.Groups {
		files, err := s.Render(ctx, group, vars)
		if err != nil {
			s.logger.Warn("Group render failed",
				zap.String("config_id", cfg.ID.String()),
				zap.String("group", group),
				zap.Error(err),
			)
		}
		result.set(group, files, err)
	}
	return result
}

var floatTypes = map[string]bool{
	"float": true, "double": true, "real": true, "decimal": true, "numeric": true,
	"money": true, "smallmoney": true, "float4": true, "float8": true, "double precision": true,
}

// PrepareVariables derives the render context from a config.
func PrepareVariables(cfg *models.GenConfig) *TemplateVariables {
	v := &TemplateVariables{
		ModuleName:       cfg.ModuleName,
		TypeName:         PascalCase(cfg.ModuleName),
		FileName:         KebabCase(cfg.ModuleName),
		PropName:         CamelCase(cfg.ModuleName),
		SnakeName:        SnakeCase(cfg.ModuleName),
		TableName:        cfg.TableName,
		APIPrefix:        cfg.APIPrefix,
		PackageName:      cfg.PackageName,
		Author:           cfg.Author,
		TemplateType:     cfg.TemplateType,
		PermissionPrefix: cfg.PageConfig.Permission.Prefix,
		PageConfig:       cfg.PageConfig,
		Fields:           make([]FieldVariable, 0, len(cfg.Fields)),
	}
	if v.PermissionPrefix == "" {
		v.PermissionPrefix = permissionPrefix(cfg.ModuleName)
	}

	imports := map[string]bool{}
	var pk *FieldVariable
	for _, f := range cfg.Fields {
		fv := fieldVariable(f)
		v.Fields = append(v.Fields, fv)
		if f.IsPrimaryKey && pk == nil {
			pk = &fv
		}
		if f.ShowInList {
			v.ListFields = append(v.ListFields, fv)
		}
		if f.ShowInForm {
			v.FormFields = append(v.FormFields, fv)
		}
		if f.ShowInSearch {
			v.SearchFields = append(v.SearchFields, fv)
		}
		switch fv.GoType {
		case "time.Time":
			imports["time"] = true
		case "json.RawMessage":
			imports["encoding/json"] = true
		}
	}

	if pk != nil {
		v.PrimaryKey = *pk
	} else {
		v.PrimaryKey = FieldVariable{
			FieldDescriptor: models.FieldDescriptor{Name: "id", Label: "id", Type: models.FieldTypeNumber, IsPrimaryKey: true},
			PropName:        "id",
			GoName:          "ID",
			GoType:          "int64",
			TSType:          "number",
		}
	}

	for imp := range imports {
		v.GoImports = append(v.GoImports, imp)
	}
	sort.Strings(v.GoImports)
	return v
}

func fieldVariable(f models.FieldDescriptor) FieldVariable {
	return FieldVariable{
		FieldDescriptor: f,
		PropName:        CamelCase(f.Name),
		GoName:          GoName(f.Name),
		GoType:          goType(f),
		TSType:          tsType(f),
	}
}

func goType(f models.FieldDescriptor) string {
	switch f.Type {
	case models.FieldTypeNumber:
		if floatTypes[strings.ToLower(f.DBType)] {
			return "float64"
		}
		return "int64"
	case models.FieldTypeDate:
		return "time.Time"
	case models.FieldTypeBoolean:
		return "bool"
	case models.FieldTypeObject:
		return "json.RawMessage"
	}
	return "string"
}

func tsType(f models.FieldDescriptor) string {
	switch f.Type {
	case models.FieldTypeNumber:
		return "number"
	case models.FieldTypeBoolean:
		return "boolean"
	case models.FieldTypeObject:
		return "Record<string, unknown>"
	}
	return "string"
}
