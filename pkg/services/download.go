package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-admingen/pkg/fsutil"
	"github.com/ekaya-inc/ekaya-admingen/pkg/models"
)

// Archive is a zip of one config's generated files on the service's
// filesystem. The caller removes it with DownloadService.Cleanup.
type Archive struct {
	Path     string
	FileName string
}

// DownloadService packages generated files as a zip laid out as
// frontend/, backend/ and sql/.
type DownloadService interface {
	BuildArchive(ctx context.Context, configID uuid.UUID) (*Archive, error)
	Open(a *Archive) (io.ReadCloser, error)
	Cleanup(a *Archive)
}

type downloadService struct {
	configs   ConfigReader
	generator ConfigPreviewer
	fs        *fsutil.FS
	tempDir   string
	logger    *zap.Logger
}

var _ DownloadService = (*downloadService)(nil)

// NewDownloadService creates a download service staging under tempDir
// (os.TempDir() if empty).
func NewDownloadService(configs ConfigReader, generator ConfigPreviewer, fs *fsutil.FS, tempDir string, logger *zap.Logger) DownloadService {
	return &downloadService{
		configs:   configs,
		generator: generator,
		fs:        fs,
		tempDir:   tempDir,
		logger:    logger.Named("download"),
	}
}

func (s *downloadService) BuildArchive(ctx context.Context, configID uuid.UUID) (*Archive, error) {
	cfg, err := s.configs.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	preview := s.generator.PreviewConfig(ctx, cfg)
	if err := preview.Err(); err != nil {
		return nil, fmt.Errorf("render config %s: %w", configID, err)
	}

	staging, err := s.fs.TempDir(s.tempDir, "admingen-"+SnakeCase(cfg.ModuleName)+"-")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.fs.RemoveAll(staging); err != nil {
			s.logger.Warn("Failed to remove staging directory", zap.String("dir", staging), zap.Error(err))
		}
	}()

	count := 0
	for _, group := range models.Groups {
		for _, f := range preview.Files(group) {
			dest := filepath.Join(staging, group, filepath.FromSlash(f.RelativePath))
			if err := s.fs.WriteFile(dest, []byte(f.Content)); err != nil {
				return nil, err
			}
			count++
		}
	}

	archivePath, err := s.fs.CreateZipArchive(staging)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Built download archive",
		zap.String("config_id", configID.String()),
		zap.String("path", archivePath),
		zap.Int("files", count),
	)
	return &Archive{
		Path:     archivePath,
		FileName: KebabCase(cfg.ModuleName) + ".zip",
	}, nil
}

func (s *downloadService) Open(a *Archive) (io.ReadCloser, error) {
	return s.fs.Open(a.Path)
}

func (s *downloadService) Cleanup(a *Archive) {
	if err := s.fs.Remove(a.Path); err != nil {
		s.logger.Warn("Failed to remove archive", zap.String("path", a.Path), zap.Error(err))
	}
}
