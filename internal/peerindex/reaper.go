package peerindex

import (
	"context"
	"time"

	"github.com/lanpeer/lanpeer/internal/lognode"
)

// Reaper periodically evicts stale peer views from an Index (C7).
type Reaper struct {
	index  *Index
	period time.Duration
	ttl    time.Duration
	log    lognode.Logger
}

// NewReaper builds a Reaper that calls index.Cleanup every period with
// the given ttl. period defaults to 10s and ttl to DefaultTTL when
// zero, matching the reference implementation's values.
func NewReaper(index *Index, period, ttl time.Duration, log lognode.Logger) *Reaper {
	if period <= 0 {
		period = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Reaper{index: index, period: period, ttl: ttl, log: log}
}

// Run blocks, ticking Cleanup until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := r.index.Len()
			r.index.Cleanup(time.Now(), r.ttl)
			if evicted := before - r.index.Len(); evicted > 0 && r.log != nil {
				r.log.Info("reaper evicted stale peers")
			}
		}
	}
}
