// Package blob implements content-addressed storage: each unique byte
// sequence is stored once under its fingerprint and reference-counted
// across every tree entry in every project that points at it.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/shelf-sh/shelf/internal/digest"
)

var (
	// ErrNotFound means no blob is stored under the requested digest.
	ErrNotFound = errors.New("blob not found")
	// ErrIntegrity means the ledger and the byte store disagree: an entry
	// references a digest whose row or bytes are missing. This indicates
	// storage corruption and is surfaced, never silently repaired.
	ErrIntegrity = errors.New("blob reference integrity violation")
)

// Ref describes stored content.
type Ref struct {
	Digest digest.Digest
	Size   int64
}

// Service is the content-addressed blob store: a byte backend plus the
// SQLite reference ledger and a background garbage collector.
type Service struct {
	backend Backend
	index   *Index
	config  *Config

	// Per-digest striped locks serialize byte writes against the sweeper.
	// Reference counts do not need these; they are single-statement
	// updates serialized by SQLite.
	locks [256]sync.Mutex

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewService(cfg *Config, db *sqlx.DB) (*Service, error) {
	index, err := newIndex(db)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		backend: backend,
		index:   index,
		config:  cfg,
	}, nil
}

func newBackend(cfg *Config) (Backend, error) {
	switch cfg.Backend {
	case BackendS3:
		if cfg.S3 == nil {
			return nil, errors.New("blob: s3 backend selected without s3 config")
		}
		return NewS3BackendWithConfig(cfg.S3)
	case BackendLocal, "":
		return NewLocalBackend(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("blob: unknown backend %q", cfg.Backend)
	}
}

// Start launches the background sweeper.
func (s *Service) Start(ctx context.Context) error {
	slog.Debug("blob service start", "backend", s.config.Backend)
	interval := s.config.SweepInterval
	if interval == 0 {
		slog.Warn("blob gc disabled")
		return nil
	}
	if interval < 0 {
		interval = DefaultSweepInterval
	}

	gcCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweeper(gcCtx, interval)
	}()
	return nil
}

// Shutdown stops the sweeper and waits for an in-flight sweep.
func (s *Service) Shutdown(ctx context.Context) error {
	slog.Debug("blob service shutdown")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// Put spools r to a temp file while fingerprinting it, then stores the
// bytes if this digest is new. Re-putting existing content is a no-op
// that still returns the digest. The ledger row is ensured after the
// bytes land so a row always implies retrievable bytes.
func (s *Service) Put(ctx context.Context, r io.Reader) (*Ref, error) {
	spool, err := os.CreateTemp("", "shelf-spool-*")
	if err != nil {
		return nil, fmt.Errorf("blob spool: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	dw := digest.NewWriter(spool)
	if _, err := io.Copy(dw, r); err != nil {
		return nil, fmt.Errorf("blob spool: %w", err)
	}
	d, size := dw.Digest(), dw.Size()

	mu := s.lockFor(d)
	mu.Lock()
	defer mu.Unlock()

	exists, err := s.backend.Exists(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("blob stat %s: %w", d.Short(), err)
	}
	if !exists {
		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("blob spool seek: %w", err)
		}
		if err := s.backend.Put(ctx, d, spool, size); err != nil {
			return nil, err
		}
	}

	if err := s.index.Ensure(d, size); err != nil {
		return nil, err
	}

	return &Ref{Digest: d, Size: size}, nil
}

// Open returns a reader over the content stored under d. A ledger row
// without backend bytes is reported as ErrIntegrity, not ErrNotFound.
func (s *Service) Open(ctx context.Context, d digest.Digest) (io.ReadCloser, error) {
	if _, ok := s.index.Get(d); !ok {
		return nil, ErrNotFound
	}
	rc, err := s.backend.Open(ctx, d)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Error("blob bytes missing for ledger row", "digest", d.String())
			return nil, fmt.Errorf("open blob %s: %w", d.Short(), ErrIntegrity)
		}
		return nil, err
	}
	return rc, nil
}

// Stat returns the stored size for d.
func (s *Service) Stat(d digest.Digest) (*Ref, error) {
	info, ok := s.index.Get(d)
	if !ok {
		return nil, ErrNotFound
	}
	parsed, err := digest.Parse(info.Digest)
	if err != nil {
		return nil, err
	}
	return &Ref{Digest: parsed, Size: info.Size}, nil
}

// Retain and Release adjust the reference count outside an entry
// transaction (the tree index normally uses RetainTx/ReleaseTx).
func (s *Service) Retain(d digest.Digest) error {
	return s.index.Retain(d)
}

func (s *Service) Release(d digest.Digest) error {
	return s.index.Release(d)
}

// Index exposes the reference ledger.
func (s *Service) Index() *Index {
	return s.index
}

// Backend exposes the byte store.
func (s *Service) Backend() Backend {
	return s.backend
}

func (s *Service) lockFor(d digest.Digest) *sync.Mutex {
	return &s.locks[d[0]]
}
