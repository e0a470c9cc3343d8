package sync

import (
	"io"
	"os"
	"path/filepath"
)

// DirProvider serves put content straight from a local directory. Used by
// in-process syncs and tests; the HTTP path streams content per request
// instead.
type DirProvider struct {
	Root string
}

func (d DirProvider) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.Root, filepath.FromSlash(path)))
}

var _ ContentProvider = DirProvider{}
