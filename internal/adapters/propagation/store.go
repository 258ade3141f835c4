package propagation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dungeondelvers/delvectl/internal/usecase"
)

const defaultFileMode os.FileMode = 0o644

// FileStore reads downstream config files and replaces them atomically
// through a temp file in the same directory followed by a rename
type FileStore struct {
	fs afero.Fs
}

// NewFileStore creates a file store on top of fs
func NewFileStore(fs afero.Fs) *FileStore {
	return &FileStore{fs: fs}
}

// Read implements usecase.ConfigFileStore. A missing file is not an error.
func (s *FileStore) Read(path string) ([]byte, bool, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}

// WriteAtomic implements usecase.ConfigFileStore
func (s *FileStore) WriteAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	mode := defaultFileMode
	if info, statErr := s.fs.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = s.fs.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	if err = s.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

var _ usecase.ConfigFileStore = (*FileStore)(nil)
