package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/shelf-sh/shelf/internal/digest"
	"github.com/shelf-sh/shelf/internal/plan"
)

// BuildManifest walks a local directory and fingerprints every file not
// filtered by the ignore list. Hashing runs on a bounded worker group;
// the result comes back sorted.
func BuildManifest(ctx context.Context, root string, ignore *IgnoreList) (plan.Manifest, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %s: %w", path, walkErr)
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = plan.NormalizePath(relPath)

		if d.IsDir() {
			if relPath != "" && ignore != nil && ignore.ShouldIgnore(relPath+"/") {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore != nil && ignore.ShouldIgnore(relPath) {
			return nil
		}

		paths = append(paths, relPath)
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries := make(plan.Manifest, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, relPath := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			entry, err := fingerprint(root, relPath)
			if err != nil {
				return err
			}
			entries[i] = *entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan.SortManifest(entries)
	return entries, nil
}

func fingerprint(root, relPath string) (*plan.Entry, error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", relPath, err)
	}
	defer f.Close()

	d, size, err := digest.SumReader(f)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", relPath, err)
	}

	return &plan.Entry{Path: relPath, Digest: d, Size: size}, nil
}
