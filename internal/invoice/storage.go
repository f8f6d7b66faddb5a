package invoice

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for uploaded blob storage
type Storage interface {
	// Save writes data under name and returns the stored name
	Save(name string, data []byte) (string, error)

	// Get retrieves a stored blob by name
	Get(name string) ([]byte, error)

	// Delete removes a stored blob
	Delete(name string) error
}

// LocalStorage keeps blobs as flat files in a single directory. One
// instance is used for uploads; generated reports get their own directory.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates the directory if needed and returns a store
// rooted at it.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Dir returns the directory blobs are stored under.
func (l *LocalStorage) Dir() string {
	return l.dir
}

// Save writes data under name and returns the stored name. Any path
// components in name are stripped so callers cannot escape the directory.
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", name, err)
	}
	return name, nil
}

// Get retrieves a stored blob by name
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", name, err)
	}
	return data, nil
}

// Delete removes a stored blob
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(filepath.Join(l.dir, filepath.Base(name))); err != nil {
		return fmt.Errorf("deleting blob %s: %w", name, err)
	}
	return nil
}
