// Package fsutil is the filesystem used by deployment and download packaging.
// All operations run against an afero.Fs so tests can use an in-memory tree.
package fsutil

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FS wraps an afero filesystem. Every error it returns wraps apperrors.ErrFilesystem.
type FS struct {
	fs afero.Fs
}

// New returns an FS over the given afero filesystem.
func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS returns an FS over the host filesystem.
func NewOS() *FS {
	return New(afero.NewOsFs())
}

// Afero exposes the underlying filesystem.
func (f *FS) Afero() afero.Fs {
	return f.fs
}

// EnsureDir creates dir and any missing parents.
func (f *FS) EnsureDir(dir string) error {
	if err := f.fs.MkdirAll(dir, dirPerm); err != nil {
		return fsErr("create directory", dir, err)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories first.
func (f *FS) WriteFile(path string, data []byte) error {
	if err := f.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, path, data, filePerm); err != nil {
		return fsErr("write file", path, err)
	}
	return nil
}

// ReadFile returns the contents of path.
func (f *FS) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fsErr("read file", path, err)
	}
	return data, nil
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) (bool, error) {
	ok, err := afero.Exists(f.fs, path)
	if err != nil {
		return false, fsErr("stat", path, err)
	}
	return ok, nil
}

// Remove deletes a single file. Missing files are not an error.
func (f *FS) Remove(path string) error {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fsErr("remove", path, err)
	}
	return nil
}

// RemoveAll deletes path and everything below it.
func (f *FS) RemoveAll(path string) error {
	if err := f.fs.RemoveAll(path); err != nil {
		return fsErr("remove", path, err)
	}
	return nil
}

// TempDir creates a new uniquely named directory under dir (os.TempDir() if empty).
func (f *FS) TempDir(dir, pattern string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := f.EnsureDir(dir); err != nil {
		return "", err
	}
	name, err := afero.TempDir(f.fs, dir, pattern)
	if err != nil {
		return "", fsErr("create temp directory", dir, err)
	}
	return name, nil
}

// Open opens path for reading.
func (f *FS) Open(path string) (afero.File, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fsErr("open", path, err)
	}
	return file, nil
}

// CreateZipArchive packs sourceDir into a sibling "<sourceDir>.zip" using
// deflate at maximum compression, and returns the archive path. Entry names
// are relative to sourceDir with forward slashes.
func (f *FS) CreateZipArchive(sourceDir string) (string, error) {
	info, err := f.fs.Stat(sourceDir)
	if err != nil {
		return "", fsErr("stat", sourceDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source path %s is not a directory: %w", sourceDir, apperrors.ErrFilesystem)
	}

	archivePath := filepath.Clean(sourceDir) + ".zip"
	out, err := f.fs.Create(archivePath)
	if err != nil {
		return "", fsErr("create archive", archivePath, err)
	}

	if err := f.writeZip(out, sourceDir); err != nil {
		out.Close()
		_ = f.fs.Remove(archivePath)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = f.fs.Remove(archivePath)
		return "", fsErr("close archive", archivePath, err)
	}
	return archivePath, nil
}

func (f *FS) writeZip(w io.Writer, sourceDir string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	err := afero.Walk(f.fs, sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
			_, err := zw.CreateHeader(header)
			return err
		}
		header.Method = zip.Deflate

		entry, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		src, err := f.fs.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(entry, src)
		return err
	})
	if err != nil {
		return fsErr("archive", sourceDir, err)
	}
	if err := zw.Close(); err != nil {
		return fsErr("finish archive", sourceDir, err)
	}
	return nil
}

func fsErr(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, apperrors.ErrFilesystem, err)
}
