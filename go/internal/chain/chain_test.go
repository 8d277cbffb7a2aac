package chain

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestCounterAdvance(t *testing.T) {
	c := NewCounter(100)
	require.Equal(t, uint64(100), c.CurrentBlock())

	require.Equal(t, uint64(101), c.Advance(1))
	require.Equal(t, uint64(111), c.Advance(10))
	require.Equal(t, uint64(111), c.CurrentBlock())
}

func TestTickerProducesBlocks(t *testing.T) {
	counter := NewCounter(0)
	clock := clockwork.NewFakeClock()
	ticker := NewTicker(counter, clock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, ticker.Start(ctx))
	require.Error(t, ticker.Start(ctx), "second start must fail")

	clock.BlockUntilContext(ctx, 1)
	clock.Advance(3 * time.Second)

	require.Eventually(t, func() bool {
		return counter.CurrentBlock() >= 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ticker.Stop())
	require.Error(t, ticker.Stop(), "second stop must fail")
}
