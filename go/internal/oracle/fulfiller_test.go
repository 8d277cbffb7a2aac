package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

type stubSource struct {
	values []uint64
	err    error
	calls  int
}

func (s *stubSource) Random(ctx context.Context) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v, nil
}

func TestFulfillPendingAnswersAllRequests(t *testing.T) {
	b := newBridge(t)
	b.Fund(100)

	var got []uint64
	b.RegisterConsumer(models.PurposeMint, func(ctx context.Context, entityID, random uint64) error {
		got = append(got, random)
		return nil
	})

	_, err := b.RequestRandomness(context.Background(), models.PurposeMint, 1)
	require.NoError(t, err)
	_, err = b.RequestRandomness(context.Background(), models.PurposeMint, 2)
	require.NoError(t, err)

	source := &stubSource{values: []uint64{42, 43}}
	f := NewFulfiller(b, source, clockwork.NewFakeClock(), time.Second, zerolog.Nop())

	f.fulfillPending(context.Background())

	require.Len(t, got, 2)
	require.Zero(t, b.PendingCount())
}

func TestFulfillPendingStopsOnSourceError(t *testing.T) {
	b := newBridge(t)
	b.Fund(100)
	b.RegisterConsumer(models.PurposeMint, func(ctx context.Context, entityID, random uint64) error {
		t.Fatal("consumer must not run when the source fails")
		return nil
	})

	_, err := b.RequestRandomness(context.Background(), models.PurposeMint, 1)
	require.NoError(t, err)

	source := &stubSource{err: errors.New("beacon unreachable")}
	f := NewFulfiller(b, source, clockwork.NewFakeClock(), time.Second, zerolog.Nop())

	f.fulfillPending(context.Background())

	require.Equal(t, 1, b.PendingCount())
}

func TestFulfillerStartStop(t *testing.T) {
	b := newBridge(t)
	f := NewFulfiller(b, &stubSource{values: []uint64{1}}, clockwork.NewFakeClock(), time.Second, zerolog.Nop())

	require.Error(t, f.Stop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.Start(ctx))
	require.Error(t, f.Start(ctx))
	require.NoError(t, f.Stop())
}
