package dictionary

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ReadFile loads a domain from a .kdic file.
func ReadFile(fs afero.Fs, path string) (*Domain, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary file %s: %w", path, err)
	}
	defer f.Close()

	dom, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dictionary file %s: %w", path, err)
	}
	return dom, nil
}

// WriteFile persists dom to path, creating the parent directory.
func WriteFile(fs afero.Fs, path string, dom *Domain) error {
	var buf bytes.Buffer
	if err := Write(&buf, dom); err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write dictionary file %s: %w", path, err)
	}
	return nil
}
