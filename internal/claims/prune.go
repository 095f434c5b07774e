package claims

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner deletes cached patients refreshed before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunePatients drops cached eligibility older than ttl once immediately and
// then every interval until ctx is done. A zero ttl or interval disables it.
func PrunePatients(ctx context.Context, p Pruner, ttl, interval time.Duration, log zerolog.Logger) {
	if ttl <= 0 || interval <= 0 {
		log.Debug().Msg("patient cache pruning disabled")
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := p.Prune(ctx, time.Now().Add(-ttl))
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn().Err(err).Msg("patient cache prune failed")
		case n > 0:
			log.Info().Int64("pruned", n).Dur("ttl", ttl).Msg("stale patients pruned")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
