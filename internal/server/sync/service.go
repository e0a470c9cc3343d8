// Package sync applies sync plans against the blob store and tree index.
// Planning itself is pure (internal/plan); this package is the executor
// side: content lands in the blob store, bindings land in the tree, and
// partial failure is reported, never hidden.
package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shelf-sh/shelf/internal/plan"
	"github.com/shelf-sh/shelf/internal/server/blob"
	"github.com/shelf-sh/shelf/internal/server/registry"
	"github.com/shelf-sh/shelf/internal/server/tree"
	"github.com/shelf-sh/shelf/internal/utils"
)

// ContentProvider supplies bytes for planned puts. It is invoked only for
// paths the planner determined are new or changed; unchanged paths never
// cost a read. Paths are relative to the synced subtree root.
type ContentProvider interface {
	Open(path string) (io.ReadCloser, error)
}

// Service executes sync sessions for project subtrees.
type Service struct {
	blob     *blob.Service
	registry *registry.Registry
}

func NewService(blobSvc *blob.Service, reg *registry.Registry) *Service {
	return &Service{blob: blobSvc, registry: reg}
}

// Manifest returns the remote manifest for a project subtree, sorted by
// path.
func (s *Service) Manifest(ctx context.Context, project, prefix string) (plan.Manifest, error) {
	idx, err := s.registry.Tree(project)
	if err != nil {
		return nil, err
	}
	return idx.Manifest(NormalizePrefix(prefix))
}

// Plan diffs a local manifest against the current remote subtree. Local
// paths are relative to the subtree root and are qualified under prefix
// before diffing.
func (s *Service) Plan(ctx context.Context, project, prefix string, local plan.Manifest) (*plan.Plan, error) {
	prefix = NormalizePrefix(prefix)
	remote, err := s.Manifest(ctx, project, prefix)
	if err != nil {
		return nil, err
	}
	return plan.Diff(remote, QualifyManifest(prefix, local)), nil
}

// Put stores one file's content and binds it into the project tree. This
// is the unit operation behind both Execute and the streamed upload API.
func (s *Service) Put(ctx context.Context, project, path string, r io.Reader) (*tree.Entry, error) {
	path = plan.NormalizePath(path)
	if path == "" {
		return nil, fmt.Errorf("put: empty path")
	}

	idx, err := s.registry.Tree(project)
	if err != nil {
		return nil, err
	}

	ref, err := s.blob.Put(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", project, path, err)
	}

	entry, err := idx.Upsert(path, ref, utils.DetectContentType(path))
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", project, path, err)
	}

	slog.Debug("sync put", "project", project, "path", path, "digest", entry.Digest[:12], "size", entry.Size)
	return entry, nil
}

// Delete removes one path binding. The blob reference is released inside
// the tree transaction; byte deletion is the garbage collector's job.
func (s *Service) Delete(ctx context.Context, project, path string) error {
	path = plan.NormalizePath(path)
	idx, err := s.registry.Tree(project)
	if err != nil {
		return err
	}
	if err := idx.Remove(path); err != nil {
		return fmt.Errorf("delete %s/%s: %w", project, path, err)
	}
	slog.Debug("sync delete", "project", project, "path", path)
	return nil
}

// Execute applies a plan operation-at-a-time: all puts, then all deletes,
// so a replaced path never transiently vanishes for concurrent readers.
// The first failure aborts the remainder; the outcome accounts for every
// operation. Re-running a sync after partial application is safe and
// produces a smaller corrective plan.
func (s *Service) Execute(ctx context.Context, project string, p *plan.Plan, content ContentProvider) *plan.Outcome {
	outcome := &plan.Outcome{}
	ops := p.Ops()

	aborted := -1
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			outcome.Record(op, plan.StatusFailed, err)
			aborted = i + 1
			break
		}

		var err error
		switch op.Type {
		case plan.OpPut:
			err = s.executePut(ctx, project, op, content)
		case plan.OpDelete:
			err = s.Delete(ctx, project, op.Path)
		default:
			err = fmt.Errorf("unknown op type %q", op.Type)
		}

		if err != nil {
			slog.Warn("sync op failed", "project", project, "op", op.Type, "path", op.Path, "error", err)
			outcome.Record(op, plan.StatusFailed, err)
			aborted = i + 1
			break
		}
		outcome.Record(op, plan.StatusDone, nil)
	}

	if aborted >= 0 {
		for _, op := range ops[aborted:] {
			outcome.Record(op, plan.StatusNotAttempted, nil)
		}
	}
	return outcome
}

func (s *Service) executePut(ctx context.Context, project string, op plan.Op, content ContentProvider) error {
	if content == nil {
		return fmt.Errorf("put %s: no content provider", op.Path)
	}
	rc, err := content.Open(op.Path)
	if err != nil {
		return fmt.Errorf("read content for %s: %w", op.Path, err)
	}
	defer rc.Close()

	entry, err := s.Put(ctx, project, op.Path, rc)
	if err != nil {
		return err
	}
	// the provider's bytes, not the planned fingerprint, are what got
	// stored; a mismatch means the file changed mid-sync and the next
	// re-plan will reconcile it
	if !op.Digest.IsZero() && entry.Digest != op.Digest.String() {
		slog.Warn("content changed during sync", "project", project, "path", op.Path)
	}
	return nil
}

// Sync is the one-call entry point: plan the subtree, execute the plan,
// and report counts of uploaded, skipped, and deleted paths. An empty
// local manifest deletes the entire remote subtree; callers exposing this
// to users must gate it behind explicit confirmation.
func (s *Service) Sync(ctx context.Context, project, prefix string, local plan.Manifest, content ContentProvider) (*plan.Outcome, error) {
	prefix = NormalizePrefix(prefix)
	p, err := s.Plan(ctx, project, prefix, local)
	if err != nil {
		return nil, err
	}

	outcome := s.Execute(ctx, project, p, prefixProvider{inner: content, prefix: prefix})
	outcome.Skipped = len(local) - len(p.Puts)
	slog.Info("sync", "project", project, "prefix", prefix, "outcome", outcome.Summary())
	return outcome, nil
}

// NormalizePrefix canonicalizes a subtree prefix: clean segments with a
// trailing slash, or empty for the project root.
func NormalizePrefix(prefix string) string {
	prefix = plan.NormalizePath(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// QualifyManifest rewrites root-relative local paths under prefix.
func QualifyManifest(prefix string, local plan.Manifest) plan.Manifest {
	if prefix == "" {
		return local
	}
	out := make(plan.Manifest, len(local))
	for i, e := range local {
		e.Path = prefix + e.Path
		out[i] = e
	}
	return out
}

// prefixProvider maps absolute plan paths back to the provider's
// root-relative paths.
type prefixProvider struct {
	inner  ContentProvider
	prefix string
}

func (p prefixProvider) Open(path string) (io.ReadCloser, error) {
	if p.inner == nil {
		return nil, fmt.Errorf("no content provider")
	}
	return p.inner.Open(strings.TrimPrefix(path, p.prefix))
}
