package blob

import (
	"context"
	"log/slog"
	"time"

	"github.com/shelf-sh/shelf/internal/digest"
)

// The sweeper runs in two phases per tick. Mark stamps rows that sit at
// zero refs without a release timestamp; collect deletes rows (and then
// bytes) whose stamp is older than one full interval. A blob therefore
// survives at least one interval after its last reference went away,
// which closes the race with a release immediately followed by a retain
// of the same content.
func (s *Service) runSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("blob gc start", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("blob gc stop")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx, interval); err != nil {
				slog.Error("blob gc sweep", "error", err)
			}
		}
	}
}

// Sweep performs one mark+collect pass. grace is the minimum time a blob
// must have been unreferenced before its bytes are deleted.
func (s *Service) Sweep(ctx context.Context, grace time.Duration) error {
	now := time.Now()
	cutoff := now.Add(-grace)

	candidates, err := s.index.sweepCandidates(cutoff)
	if err != nil {
		return err
	}

	collected := 0
	for _, hex := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d, err := digest.Parse(hex)
		if err != nil {
			slog.Error("blob gc bad digest in ledger", "digest", hex, "error", err)
			continue
		}

		// serialize against a concurrent put of the same content
		mu := s.lockFor(d)
		mu.Lock()
		dropped, err := s.index.dropIfUnreferenced(hex, cutoff)
		if err == nil && dropped {
			err = s.backend.Delete(ctx, d)
		}
		mu.Unlock()

		if err != nil {
			slog.Error("blob gc collect", "digest", d.Short(), "error", err)
			continue
		}
		if dropped {
			collected++
		}
	}

	// mark after collect so fresh orphans get a full grace period
	if err := s.index.markOrphans(now); err != nil {
		return err
	}

	if collected > 0 {
		slog.Info("blob gc", "collected", collected, "candidates", len(candidates))
	}
	return nil
}
