package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-admingen/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-admingen/pkg/config"
	"github.com/ekaya-inc/ekaya-admingen/pkg/crypto"
	"github.com/ekaya-inc/ekaya-admingen/pkg/database"
	"github.com/ekaya-inc/ekaya-admingen/pkg/fsutil"
	"github.com/ekaya-inc/ekaya-admingen/pkg/handlers"
	"github.com/ekaya-inc/ekaya-admingen/pkg/logging"
	"github.com/ekaya-inc/ekaya-admingen/pkg/middleware"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services"
	"github.com/ekaya-inc/ekaya-admingen/pkg/services/workqueue"
)

const shutdownTimeout = 30 * time.Second

// app holds the long-lived resources of a running server.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	redis  *redis.Client
	conns  *datasource.ConnectionManager
	queue  *workqueue.Queue

	datasources   services.DatasourceService
	introspection services.IntrospectionService
	configs       services.GenConfigService
	templates     services.TemplateService
	generator     services.GeneratorService
	deploy        services.DeployService
	versions      services.VersionService
	download      services.DownloadService
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("task_store", cfg.Deploy.TaskStore),
		zap.Int("max_concurrent_deploys", cfg.Deploy.MaxConcurrent))
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return database.MigrateURL(cfg.Database.ConnectionString(), logger)
}

func runSeedTemplates(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := services.NewTemplateService(repositories.NewTemplateRepository(db), logger).SeedBuiltin(ctx)
	if err != nil {
		return err
	}
	logger.Info("Seeded builtin templates", zap.Int("count", n))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := database.MigrateURL(cfg.Database.ConnectionString(), logger); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.templates.SeedBuiltin(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed templates: %w", err)
	}
	if n > 0 {
		logger.Info("Seeded builtin templates", zap.Int("count", n))
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-admingen",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := a.queue.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Deploy jobs did not finish before shutdown", zap.Error(err))
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, err
	}
	a.db = db

	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create credential encryptor: %w", err)
	}

	taskTTL := time.Duration(cfg.Deploy.TaskTTLHours) * time.Hour
	var store services.TaskStore = services.NewMemoryTaskStore(taskTTL)
	if cfg.Deploy.TaskStore == config.TaskStoreRedis {
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			a.close()
			return nil, err
		}
		if client == nil {
			a.close()
			return nil, errors.New("deploy.task_store is redis but redis.host is empty")
		}
		a.redis = client
		store = services.NewRedisTaskStore(client, taskTTL)
	}

	a.conns = datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   cfg.Datasource.ConnectionTTLMinutes,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
		ProbeTimeout: time.Duration(cfg.Datasource.ProbeTimeoutSeconds) * time.Second,
	}, logger)
	a.queue = workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewThrottledStrategy(cfg.Deploy.MaxConcurrent)),
		workqueue.WithOnUpdate(services.ObserveDeployQueue),
	)
	fs := fsutil.NewOS()

	a.datasources = services.NewDatasourceService(repositories.NewDatasourceRepository(db), encryptor, a.conns, logger)
	a.introspection = services.NewIntrospectionService(a.datasources, a.conns, nil, logger)
	a.configs = services.NewGenConfigService(repositories.NewGenConfigRepository(db), a.introspection, cfg.Generator, logger)
	a.templates = services.NewTemplateService(repositories.NewTemplateRepository(db), logger)
	a.generator = services.NewGeneratorService(a.configs, a.templates, nil, logger)
	a.deploy = services.NewDeployService(a.generator, a.configs, store, a.queue, fs, cfg.Generator, logger)
	a.versions = services.NewVersionService(repositories.NewVersionRepository(db), a.configs, a.generator, a.deploy, logger)
	a.download = services.NewDownloadService(a.configs, a.generator, fs, cfg.Generator.TempDir, logger)

	var dialects []string
	for _, d := range datasource.RegisteredDialects() {
		dialects = append(dialects, d.Type)
	}
	logger.Info("Datasource dialects registered", zap.Strings("dialects", dialects))
	return a, nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	handlers.NewHealthHandler(a.cfg, a.conns, a.queue, a.logger).RegisterRoutes(mux)
	handlers.NewGenerateHandler(a.generator, a.deploy, a.download, a.logger).RegisterRoutes(mux)
	handlers.NewVersionsHandler(a.versions, a.logger).RegisterRoutes(mux)
	return middleware.RequestLogger(a.logger.Named("http"))(mux)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	if a.conns != nil {
		if err := a.conns.Close(); err != nil {
			a.logger.Warn("Failed to close datasource connections", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
