// Package storage is the object-storage boundary: a file goes in, a
// publicly resolvable URL comes out. The rest of the system only ever
// holds the URL string.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type ObjectStore interface {
	Put(ctx context.Context, prefix, filename string, r io.Reader) (string, error)
}

// DiskStore writes uploads under a base directory and serves them from
// baseURL/uploads/. Swappable for a cloud-backed implementation without
// touching callers.
type DiskStore struct {
	baseDir string
	baseURL string
}

func NewDiskStore(baseDir, baseURL string) *DiskStore {
	return &DiskStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *DiskStore) Put(ctx context.Context, prefix, filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	name := uuid.New().String() + ext

	dir := filepath.Join(s.baseDir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return fmt.Sprintf("%s/uploads/%s/%s", s.baseURL, prefix, name), nil
}
