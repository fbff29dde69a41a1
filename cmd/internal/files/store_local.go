package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultUploadDir is used when no directory is configured.
const DefaultUploadDir = "uploads"

// LocalStore writes objects below a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates dir when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultUploadDir
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("files: create upload dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("files: resolve upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute upload directory.
func (s *LocalStore) Root() string { return s.root }

// Put writes r to a temp file and renames it into place, so readers never
// see a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("files: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("files: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("files: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("files: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("files: rename: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) {
		return "", errors.New("files: invalid key")
	}
	dst := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, dst)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", errors.New("files: key escapes upload dir")
	}
	return dst, nil
}
