package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileBackend keeps each collection in <dir>/<name>.json.
//
// Writes never modify a file in place: the new content goes to a temp file
// in the same directory, is fsynced, and is renamed over the old file, so a
// crash leaves either the old or the new content, never a torn mix.
type FileBackend struct {
	dir string
}

var _ Backend = (*FileBackend)(nil)
var _ Archiver = (*FileBackend)(nil)

// NewFileBackend creates dir if needed and returns a backend rooted there.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating data directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the data directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".json")
}

func (b *FileBackend) Load(_ context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("store: reading %s: %w", name, err)
	}
	return data, nil
}

func (b *FileBackend) Save(_ context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return writeFileAtomic(b.path(name), data)
}

// Archive keeps corrupt content next to the collection as
// <name>.json.corrupt-<unixnano> for manual recovery.
func (b *FileBackend) Archive(_ context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	dst := b.path(name) + ".corrupt-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	return writeFileAtomic(dst, data)
}

func (b *FileBackend) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("store: writing %s: %w", path, err), os.Remove(tmp))
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Join(fmt.Errorf("store: syncing %s: %w", path, err), os.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("store: closing %s: %w", path, err), os.Remove(tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(fmt.Errorf("store: publishing %s: %w", path, err), os.Remove(tmp))
	}
	return nil
}
