package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// BlockSource reports the current block height. All timing in the league is
// measured in blocks, never in wall-clock time.
type BlockSource interface {
	CurrentBlock() uint64
}

// Counter is a manually advanced block source. Tests drive it directly; the
// node binary advances it from a Ticker.
type Counter struct {
	mu     sync.RWMutex
	height uint64
}

// NewCounter returns a Counter starting at the given height.
func NewCounter(start uint64) *Counter {
	return &Counter{height: start}
}

func (c *Counter) CurrentBlock() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Advance moves the chain forward by n blocks and returns the new height.
func (c *Counter) Advance(n uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
	return c.height
}

// Ticker advances a Counter at a fixed interval. In production it runs on a
// real clock; tests can inject a clockwork.FakeClock.
type Ticker struct {
	counter  *Counter
	clock    clockwork.Clock
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTicker creates a Ticker over counter firing every interval.
func NewTicker(counter *Counter, clock clockwork.Clock, interval time.Duration) *Ticker {
	return &Ticker{
		counter:  counter,
		clock:    clock,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins producing blocks until the context is cancelled or Stop is
// called.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("block ticker already running")
	}
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(ctx)

	log.Info().
		Dur("interval", t.interval).
		Uint64("height", t.counter.CurrentBlock()).
		Msg("block ticker started")
	return nil
}

// Stop halts block production and waits for the run loop to exit.
func (t *Ticker) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return fmt.Errorf("block ticker not running")
	}
	t.running = false
	t.mu.Unlock()

	close(t.stopChan)
	t.wg.Wait()

	log.Info().Uint64("height", t.counter.CurrentBlock()).Msg("block ticker stopped")
	return nil
}

func (t *Ticker) run(ctx context.Context) {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		case <-ticker.Chan():
			t.counter.Advance(1)
		}
	}
}
