package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweety-ai/sweety-chat/internal/health"
)

// StoreHealthChecker monitors a storage component through periodic probes.
type StoreHealthChecker struct {
	name         string
	probeFn      func(ctx context.Context) error
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewStoreHealthChecker probes st with HealthPing when available and falls
// back to counting users.
func NewStoreHealthChecker(st Store, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	probe := func(ctx context.Context) error {
		_, err := st.Users().Count(ctx)
		return err
	}
	if p, ok := st.(health.HealthPinger); ok {
		probe = p.HealthPing
	}
	return newChecker("store", probe, log, probeTimeout)
}

// NewTranscriptHealthChecker probes a transcript backend that lives outside
// the main store. Backends without HealthPing are read with a zero limit.
func NewTranscriptHealthChecker(tr Transcripts, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	probe := func(ctx context.Context) error {
		_, err := tr.RecentMessages(ctx, "__health_check__", 1)
		return err
	}
	if p, ok := tr.(health.HealthPinger); ok {
		probe = p.HealthPing
	}
	return newChecker("transcripts", probe, log, probeTimeout)
}

func newChecker(name string, probe func(context.Context) error, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	hc := &StoreHealthChecker{
		name:         name,
		probeFn:      probe,
		log:          log,
		probeTimeout: probeTimeout,
	}
	hc.healthy.Store(0) // start unhealthy until first successful probe
	return hc
}

// Name returns the checker name.
func (hc *StoreHealthChecker) Name() string { return hc.name }

// IsHealthy returns the cached health status (non-blocking).
func (hc *StoreHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

// Start begins periodic health checking.
func (hc *StoreHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		to := hc.probeTimeout
		if to <= 0 {
			to = 2 * time.Second
		}
		checkCtx, cancel := context.WithTimeout(ctx, to)
		defer cancel()

		if err := hc.probeFn(checkCtx); err != nil {
			hc.log.Error().Stack().
				Str("checker", hc.name).
				Err(err).
				Msg("store health check failed")
			hc.healthy.Store(0)
			return
		}
		hc.healthy.Store(1)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
