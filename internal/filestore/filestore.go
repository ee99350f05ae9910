package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName is returned for names that would leave the store directory.
var ErrInvalidName = errors.New("invalid file name")

// Store keeps uploaded statement files on local disk.
type Store struct {
	basePath string
	maxSize  int64
}

// New creates a file store rooted at basePath. Files larger than maxSize bytes
// are rejected; zero means no limit.
func New(basePath string, maxSize int64) (*Store, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create filestore directory: %w", err)
	}
	return &Store{basePath: basePath, maxSize: maxSize}, nil
}

// Save stores an upload under a new random name that keeps the original
// extension, and returns that name.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	// Random name, original extension
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	fullPath := filepath.Join(s.basePath, name)

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	// Copy at most one byte past the limit so oversize uploads are detected
	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}
	// Too large: drop the partial file
	if s.maxSize > 0 && n > s.maxSize {
		os.Remove(fullPath)
		return "", fmt.Errorf("write file: larger than %d bytes", s.maxSize)
	}
	return name, nil
}

// ReadFile returns the content of a stored file.
func (s *Store) ReadFile(name string) ([]byte, error) {
	fullPath, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Store) Delete(name string) error {
	if name == "" {
		return nil
	}
	fullPath, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.Join(s.basePath, name), nil
}
