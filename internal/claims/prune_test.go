package claims

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (c *countingPruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cutoffs = append(c.cutoffs, cutoff)
	return 1, c.err
}

func (c *countingPruner) calls() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.cutoffs...)
}

func TestPrunePatients_RunsUntilCancelled(t *testing.T) {
	p := &countingPruner{err: errors.New("transient")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	start := time.Now()
	go func() {
		PrunePatients(ctx, p, 24*time.Hour, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for len(p.calls()) < 3 {
		select {
		case <-deadline:
			t.Fatalf("pruned %d times, want at least 3", len(p.calls()))
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	cutoff := p.calls()[0]
	if want := start.Add(-24 * time.Hour); cutoff.Before(want.Add(-time.Second)) || cutoff.After(want.Add(time.Second)) {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}
}

func TestPrunePatients_Disabled(t *testing.T) {
	p := &countingPruner{}
	PrunePatients(context.Background(), p, 0, time.Millisecond, zerolog.Nop())
	PrunePatients(context.Background(), p, time.Hour, 0, zerolog.Nop())
	if n := len(p.calls()); n != 0 {
		t.Errorf("pruned %d times with pruning disabled", n)
	}
}
