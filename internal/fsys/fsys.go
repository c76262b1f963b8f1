// Package fsys is the file-system collaborator used by the runner and the
// composite operations. It works on the OS or on an in-memory file system.
package fsys

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

// FileSystem wraps an afero file system with the path helpers the engine
// operations need.
type FileSystem struct {
	fs      afero.Fs
	tempDir string
}

// New creates a FileSystem over fs. Temporary paths are created under tempDir,
// or under the OS temp directory when tempDir is empty.
func New(fs afero.Fs, tempDir string) *FileSystem {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FileSystem{fs: fs, tempDir: tempDir}
}

// NewOS returns a FileSystem backed by the operating system.
func NewOS(tempDir string) *FileSystem {
	return New(afero.NewOsFs(), tempDir)
}

// NewMemory returns an in-memory FileSystem.
func NewMemory() *FileSystem {
	return New(afero.NewMemMapFs(), "/tmp")
}

// Afero exposes the underlying file system.
func (f *FileSystem) Afero() afero.Fs { return f.fs }

// TempDir returns the directory holding temporary paths.
func (f *FileSystem) TempDir() string { return f.tempDir }

// ChildPath joins a file name onto a directory.
func (f *FileSystem) ChildPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// NewToken returns a fresh unique token for naming temporaries.
func NewToken() string {
	return ksuid.New().String()
}

// TempPath returns a fresh path under the temp directory. Nothing is created.
func (f *FileSystem) TempPath(prefix, suffix string) string {
	return filepath.Join(f.tempDir, prefix+NewToken()+suffix)
}

// MkdirAll creates dir and its parents.
func (f *FileSystem) MkdirAll(dir string) error {
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to path, creating its parent directory.
func (f *FileSystem) WriteFile(path string, data []byte) error {
	if err := f.MkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the content of path.
func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// ReadHead returns at most n bytes from the start of path.
func (f *FileSystem) ReadHead(path string, n int) ([]byte, error) {
	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf[:read], nil
}

// Exists reports whether path exists.
func (f *FileSystem) Exists(path string) (bool, error) {
	return afero.Exists(f.fs, path)
}

// Remove deletes path. A missing path is not an error.
func (f *FileSystem) Remove(path string) error {
	if err := f.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
