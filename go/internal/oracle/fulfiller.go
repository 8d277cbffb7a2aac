package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// RandomSource supplies random words for fulfillment, typically backed by an
// external randomness beacon.
type RandomSource interface {
	Random(ctx context.Context) (uint64, error)
}

// Fulfiller is the oracle operator loop. It polls the bridge for pending
// requests and answers each with a word from the random source, acting as
// the bridge's trusted oracle identity.
type Fulfiller struct {
	bridge   *Bridge
	source   RandomSource
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

func NewFulfiller(bridge *Bridge, source RandomSource, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Fulfiller {
	return &Fulfiller{
		bridge:   bridge,
		source:   source,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "oracle_fulfiller").Logger(),
	}
}

// Start launches the polling loop. Returns an error if already running.
func (f *Fulfiller) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return fmt.Errorf("oracle fulfiller already running")
	}
	f.running = true
	f.stop = make(chan struct{})

	f.wg.Add(1)
	go f.run(ctx)

	f.logger.Info().Dur("interval", f.interval).Msg("oracle fulfiller started")
	return nil
}

// Stop halts the polling loop and waits for it to drain.
func (f *Fulfiller) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return fmt.Errorf("oracle fulfiller not running")
	}
	f.running = false
	close(f.stop)
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info().Msg("oracle fulfiller stopped")
	return nil
}

func (f *Fulfiller) run(ctx context.Context) {
	defer f.wg.Done()
	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.Chan():
			f.fulfillPending(ctx)
		}
	}
}

func (f *Fulfiller) fulfillPending(ctx context.Context) {
	for _, req := range f.bridge.PendingRequests() {
		random, err := f.source.Random(ctx)
		if err != nil {
			f.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("failed to draw randomness")
			return
		}
		if err := f.bridge.Fulfill(ctx, f.bridge.oracle, req.ID, random); err != nil {
			f.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("failed to fulfill request")
			continue
		}
		f.logger.Info().
			Str("request_id", req.ID.String()).
			Str("purpose", string(req.Purpose)).
			Uint64("entity_id", req.EntityID).
			Msg("request fulfilled")
	}
}
