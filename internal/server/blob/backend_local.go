package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shelf-sh/shelf/internal/digest"
	"github.com/shelf-sh/shelf/internal/utils"
)

// LocalBackend is a filesystem content-addressed store. Blobs are written
// to a temp file and renamed into place so a partially written blob is
// never visible under its digest.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) Put(ctx context.Context, d digest.Digest, r io.Reader, size int64) error {
	dst := l.path(d)
	if err := utils.EnsureParent(dst); err != nil {
		return fmt.Errorf("blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(l.root, ".put-*")
	if err != nil {
		return fmt.Errorf("blob temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("blob write %s: %w", d.Short(), err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("blob write %s: short write %d != %d", d.Short(), n, size)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("blob commit %s: %w", d.Short(), err)
	}
	return nil
}

func (l *LocalBackend) Open(ctx context.Context, d digest.Digest) (io.ReadCloser, error) {
	f, err := os.Open(l.path(d))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob open %s: %w", d.Short(), err)
	}
	return f, nil
}

func (l *LocalBackend) Exists(ctx context.Context, d digest.Digest) (bool, error) {
	_, err := os.Stat(l.path(d))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *LocalBackend) Delete(ctx context.Context, d digest.Digest) error {
	err := os.Remove(l.path(d))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob delete %s: %w", d.Short(), err)
	}
	return nil
}

func (l *LocalBackend) path(d digest.Digest) string {
	return filepath.Join(l.root, filepath.FromSlash(blobKey(d)))
}

var _ Backend = (*LocalBackend)(nil)
