package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalDir serves objects from a directory on disk, for development.
type LocalDir struct {
	root     string
	maxBytes int64
}

func NewLocalDir(root string, maxBytes int64) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("local source dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local source dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat local source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local source dir %s is not a directory", abs)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &LocalDir{root: abs, maxBytes: maxBytes}, nil
}

func (d *LocalDir) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := filepath.Join(d.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, d.root+string(filepath.Separator)) {
		return nil, notFound(key, 0)
	}

	f, err := os.Open(full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, notFound(key, 0)
	case errors.Is(err, fs.ErrPermission):
		return nil, forbidden(key, 0)
	case err != nil:
		return nil, transport(key, 0, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, transport(key, 0, err)
	}
	if info.IsDir() {
		return nil, notFound(key, 0)
	}
	return readLimited(key, f, info.Size(), d.maxBytes)
}

func (d *LocalDir) Ping(context.Context) error {
	_, err := os.Stat(d.root)
	return err
}
