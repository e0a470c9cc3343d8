package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"

	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/sdk"
	"github.com/shelf-sh/shelf/internal/utils"
)

const lockFileName = ".shelf.lock"

// ErrSyncInProgress means another syncer holds the directory lock.
var ErrSyncInProgress = errors.New("another sync is already running for this directory")

// ErrEmptyLocal guards the destructive case: syncing an empty directory
// deletes everything remote under the prefix. Force opts in.
var ErrEmptyLocal = errors.New("local directory is empty; this would delete all remote files (use --force)")

type SyncerConfig struct {
	Dir     string
	Project string
	Prefix  string

	// Force allows an empty local directory to wipe the remote tree.
	Force bool

	// Progress, when set, receives a line per applied operation.
	Progress func(format string, args ...any)
}

// Syncer pushes one local directory to a project: build the local
// manifest, plan against the remote one, upload changed files, then
// commit the deletes. Re-running after a partial failure converges.
type Syncer struct {
	api    *sdk.Client
	config *SyncerConfig
}

func NewSyncer(api *sdk.Client, config *SyncerConfig) *Syncer {
	return &Syncer{api: api, config: config}
}

func (s *Syncer) Run(ctx context.Context) (*plan.Outcome, error) {
	dir, err := utils.ResolvePath(s.config.Dir)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !locked {
		return nil, ErrSyncInProgress
	}
	defer lock.Unlock()

	started := time.Now()

	local, err := BuildManifest(ctx, dir, NewIgnoreList(dir))
	if err != nil {
		return nil, fmt.Errorf("scan local directory: %w", err)
	}
	if len(local) == 0 && !s.config.Force {
		return nil, ErrEmptyLocal
	}

	planResp, err := s.api.Sync.Plan(ctx, s.config.Project, s.config.Prefix, local)
	if err != nil {
		return nil, err
	}
	p := planResp.Plan

	outcome := &plan.Outcome{Skipped: len(local) - len(p.Puts)}
	if p.Empty() {
		s.progress("already in sync (%d files, %s)", len(local), time.Since(started).Round(time.Millisecond))
		return outcome, nil
	}

	s.progress("syncing %s: %d uploads (%s), %d deletes",
		s.config.Project, len(p.Puts), humanize.IBytes(uint64(p.TransferSize())), len(p.Deletes))

	if err := s.applyPuts(ctx, dir, p, outcome); err != nil {
		s.markNotAttempted(p, outcome)
		return outcome, err
	}
	if err := s.applyDeletes(ctx, p, outcome); err != nil {
		s.markNotAttempted(p, outcome)
		return outcome, err
	}

	s.progress("done in %s: %d uploaded, %d deleted, %d unchanged",
		time.Since(started).Round(time.Millisecond), outcome.Uploaded, outcome.Deleted, outcome.Skipped)
	return outcome, nil
}

func (s *Syncer) applyPuts(ctx context.Context, dir string, p *plan.Plan, outcome *plan.Outcome) error {
	total := p.Len()
	for i, op := range p.Puts {
		// plan paths are prefix-qualified; local files are not
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(s.relative(op.Path))))
		if err != nil {
			outcome.Record(op, plan.StatusFailed, err)
			return fmt.Errorf("upload %s: %w", op.Path, err)
		}

		_, err = s.api.Sync.Upload(ctx, s.config.Project, op.Path, f)
		f.Close()
		if err != nil {
			outcome.Record(op, plan.StatusFailed, err)
			return fmt.Errorf("upload %s: %w", op.Path, err)
		}

		outcome.Record(op, plan.StatusDone, nil)
		s.progress("(%d/%d) put %s %s", i+1, total, op.Path, humanize.IBytes(uint64(op.Size)))
	}
	return nil
}

func (s *Syncer) applyDeletes(ctx context.Context, p *plan.Plan, outcome *plan.Outcome) error {
	if len(p.Deletes) == 0 {
		return nil
	}

	deletes := make([]string, len(p.Deletes))
	for i, op := range p.Deletes {
		deletes[i] = op.Path
	}

	resp, err := s.api.Sync.Commit(ctx, s.config.Project, deletes)
	if err != nil {
		for i := range p.Deletes {
			outcome.Record(p.Deletes[i], plan.StatusFailed, err)
		}
		return fmt.Errorf("commit deletes: %w", err)
	}

	failed := make(map[string]string, len(resp.Errors))
	for _, e := range resp.Errors {
		failed[e.Path] = e.Error
	}

	done := p.Len() - len(p.Deletes)
	for i, op := range p.Deletes {
		if msg, ok := failed[op.Path]; ok {
			outcome.Record(op, plan.StatusFailed, errors.New(msg))
			slog.Warn("delete failed", "path", op.Path, "error", msg)
			continue
		}
		outcome.Record(op, plan.StatusDone, nil)
		s.progress("(%d/%d) delete %s", done+i+1, p.Len(), op.Path)
	}

	if len(resp.Errors) > 0 {
		return fmt.Errorf("commit deletes: %d of %d failed", len(resp.Errors), len(p.Deletes))
	}
	return nil
}

// markNotAttempted records every op the outcome has not seen yet.
func (s *Syncer) markNotAttempted(p *plan.Plan, outcome *plan.Outcome) {
	seen := make(map[string]bool, len(outcome.Results))
	for _, r := range outcome.Results {
		seen[r.Op.Path] = true
	}
	for _, op := range p.Ops() {
		if !seen[op.Path] {
			outcome.Record(op, plan.StatusNotAttempted, nil)
		}
	}
}

// relative strips the subtree prefix off a qualified plan path.
func (s *Syncer) relative(path string) string {
	prefix := plan.NormalizePath(s.config.Prefix)
	if prefix == "" {
		return path
	}
	return strings.TrimPrefix(path, prefix+"/")
}

func (s *Syncer) progress(format string, args ...any) {
	if s.config.Progress != nil {
		s.config.Progress(format, args...)
	}
}
