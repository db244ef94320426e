package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskBackend writes pictures into a local directory.
type DiskBackend struct {
	dir string
}

// NewDiskBackend creates dir if needed and returns a backend rooted there.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskBackend{dir: dir}, nil
}

// Dir is the directory pictures are written to.
func (d *DiskBackend) Dir() string { return d.dir }

// Save implements Backend.
func (d *DiskBackend) Save(_ context.Context, name, _ string, r io.Reader) error {
	path := filepath.Join(d.dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Remove implements Backend. Missing files are not an error.
func (d *DiskBackend) Remove(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(d.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
