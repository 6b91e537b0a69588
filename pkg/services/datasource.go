package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-admingen/pkg/crypto"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
	"github.com/ekaya-inc/ekaya-admingen/pkg/repositories"
)

// ConnectionTester opens throwaway connections and drops cached ones.
// Satisfied by *datasource.ConnectionManager.
type ConnectionTester interface {
	TestConnection(ctx context.Context, params models.ConnectionParams) (*models.ConnectionTestResult, error)
	CloseConnection(id uuid.UUID)
}

// DatasourceService defines the interface for datasource operations.
type DatasourceService interface {
	// Create tests the connection and persists the datasource, active, with an
	// encrypted password.
	Create(ctx context.Context, ds *models.Datasource) (*models.Datasource, error)

	// Get retrieves a datasource by ID with its password decrypted.
	Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error)

	// List retrieves all datasources. Passwords are omitted.
	List(ctx context.Context) ([]*models.Datasource, error)

	// Update tests the new connection settings and persists them.
	// An empty password keeps the stored one.
	Update(ctx context.Context, ds *models.Datasource) (*models.Datasource, error)

	// Delete removes a datasource and drops its cached connection.
	Delete(ctx context.Context, id uuid.UUID) error

	// TestConnection tests connectivity without saving anything.
	TestConnection(ctx context.Context, params models.ConnectionParams) (*models.ConnectionTestResult, error)
}

type datasourceService struct {
	repo      repositories.DatasourceRepository
	encryptor *crypto.CredentialEncryptor
	conns     ConnectionTester
	logger    *zap.Logger
}

var _ DatasourceService = (*datasourceService)(nil)

// NewDatasourceService creates a new datasource service with dependencies.
func NewDatasourceService(
	repo repositories.DatasourceRepository,
	encryptor *crypto.CredentialEncryptor,
	conns ConnectionTester,
	logger *zap.Logger,
) DatasourceService {
	return &datasourceService{
		repo:      repo,
		encryptor: encryptor,
		conns:     conns,
		logger:    logger.Named("datasource"),
	}
}

func (s *datasourceService) Create(ctx context.Context, ds *models.Datasource) (*models.Datasource, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasource is required: %w", apperrors.ErrInvalidInput)
	}
	if err := validateStruct(ds); err != nil {
		return nil, err
	}
	if err := s.verify(ctx, ds.ConnectionParams()); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.Encrypt(ds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}
	ds.IsActive = true
	if err := s.repo.Create(ctx, ds, encrypted); err != nil {
		return nil, fmt.Errorf("create datasource: %w", err)
	}

	s.logger.Info("Created datasource",
		zap.String("id", ds.ID.String()),
		zap.String("name", ds.Name),
		zap.String("type", ds.DatasourceType),
	)
	return ds, nil
}

func (s *datasourceService) Get(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	ds, encrypted, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get datasource %s: %w", id, err)
	}
	password, err := s.decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", id, err)
	}
	ds.Password = password
	return ds, nil
}

func (s *datasourceService) List(ctx context.Context) ([]*models.Datasource, error) {
	list, _, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}
	for _, ds := range list {
		ds.Password = ""
	}
	return list, nil
}

func (s *datasourceService) Update(ctx context.Context, ds *models.Datasource) (*models.Datasource, error) {
	if ds == nil {
		return nil, fmt.Errorf("datasource is required: %w", apperrors.ErrInvalidInput)
	}
	if err := validateStruct(ds); err != nil {
		return nil, err
	}

	_, storedEncrypted, err := s.repo.GetByID(ctx, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("get datasource %s: %w", ds.ID, err)
	}
	if ds.Password == "" {
		if ds.Password, err = s.decrypt(storedEncrypted); err != nil {
			return nil, fmt.Errorf("datasource %s: %w", ds.ID, err)
		}
	}

	if err := s.verify(ctx, ds.ConnectionParams()); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptor.Encrypt(ds.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt password: %w", err)
	}
	if err := s.repo.Update(ctx, ds, encrypted); err != nil {
		return nil, fmt.Errorf("update datasource %s: %w", ds.ID, err)
	}

	// The cached pool still uses the old settings.
	s.conns.CloseConnection(ds.ID)

	s.logger.Info("Updated datasource",
		zap.String("id", ds.ID.String()),
		zap.String("name", ds.Name),
	)
	return ds, nil
}

func (s *datasourceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete datasource %s: %w", id, err)
	}
	s.conns.CloseConnection(id)

	s.logger.Info("Deleted datasource", zap.String("id", id.String()))
	return nil
}

func (s *datasourceService) TestConnection(ctx context.Context, params models.ConnectionParams) (*models.ConnectionTestResult, error) {
	if err := validateStruct(params); err != nil {
		return nil, err
	}
	return s.conns.TestConnection(ctx, params)
}

// verify refuses to persist settings that cannot connect.
func (s *datasourceService) verify(ctx context.Context, params models.ConnectionParams) error {
	result, err := s.conns.TestConnection(ctx, params)
	if err != nil {
		return err
	}
	if !result.Success {
		s.logger.Warn("Datasource connection test failed",
			zap.String("type", params.Type),
			zap.String("host", params.Host),
			zap.String("message", result.Message),
		)
		return fmt.Errorf("%s: %w", result.Message, apperrors.ErrConnection)
	}
	return nil
}

func (s *datasourceService) decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}
	password, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password: %w", err)
	}
	return password, nil
}
