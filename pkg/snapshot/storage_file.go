package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage keeps captures in a local directory.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (fs *FileStorage) Save(ctx context.Context, name string, data io.Reader) error {
	path := filepath.Join(fs.dir, name)

	// Write to a temp file first so readers never observe a partial capture.
	tmp, err := os.CreateTemp(fs.dir, name+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize snapshot file: %w", err)
	}
	return nil
}

func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(fs.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	return file, nil
}

func (fs *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (fs *FileStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(fs.dir, name))
}
