package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scout-agent/internal/application/port/output"
)

var _ output.BlobStore = (*FileBlobStore)(nil)

// FileBlobStore writes heavy artifacts as files under dir/<runID>/ and hands out
// references relative to dir.
type FileBlobStore struct {
	dir string
}

func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (b *FileBlobStore) Put(_ context.Context, runID string, data []byte, ext string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	runDir := filepath.Join(b.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run blob dir: %w", err)
	}

	name := uuid.NewString()
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	if err := os.WriteFile(filepath.Join(runDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return runID + "/" + name, nil
}

func (b *FileBlobStore) Path(ref string) string {
	return filepath.Join(b.dir, filepath.FromSlash(ref))
}

// Remove deletes the blobs behind refs. Missing files are ignored.
func (b *FileBlobStore) Remove(refs []string) error {
	var errs []error
	for _, ref := range refs {
		if err := os.Remove(b.Path(ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
