package leaguegame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/gamearchive"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/leagueteam"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
	"github.com/0xBumstead/FarmersLeague/go/internal/playerrate"
)

const (
	deployer   = models.Address("deployer")
	teamAddr   = models.Address("leagueteam_contract")
	gameAddr   = models.Address("leaguegame_contract")
	oracleAddr = models.Address("oracle")
	alice      = models.Address("alice")
	bob        = models.Address("bob")
	carol      = models.Address("carol")
)

type stubOwnership struct {
	owners map[uint64]models.Address
}

func (s *stubOwnership) OwnerOf(tokenID uint64) (models.Address, error) {
	owner, ok := s.owners[tokenID]
	if !ok {
		return models.ZeroAddress, models.ErrNotFound
	}
	return owner, nil
}

func (s *stubOwnership) EffectiveOwner(tokenID uint64) (models.Address, error) {
	return s.OwnerOf(tokenID)
}

type fixture struct {
	app      *App
	teams    *leagueteam.App
	engine   *playerrate.Engine
	bridge   *oracle.Bridge
	token    *kick.Token
	blocks   *chain.Counter
	archive  *gamearchive.MemoryRepository
	recorder *events.Recorder

	aliceTeam uint64
	bobTeam   uint64
}

// newFixture builds the full circuit: rosters, rating engine, oracle bridge,
// and two teams captained by players 1 (alice) and 10 (bob).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	token := kick.NewToken(deployer)
	for _, addr := range []models.Address{alice, bob, carol} {
		require.NoError(t, token.Transfer(deployer, addr, 1000*kick.Unit))
	}
	ownership := &stubOwnership{owners: map[uint64]models.Address{
		1: alice, 2: alice,
		10: bob, 11: bob,
		20: carol,
	}}
	blocks := chain.NewCounter(100)
	recorder := events.NewRecorder()
	bridge := oracle.NewBridge(deployer, oracleAddr, 1, zerolog.Nop())
	bridge.Fund(100)

	teams := leagueteam.NewApp(deployer, teamAddr, ownership, ownership, token, blocks, recorder, zerolog.Nop())
	engine := playerrate.NewEngine(deployer, ownership, teams, blocks, recorder, zerolog.Nop())
	require.NoError(t, engine.StoreLayout(deployer, 8, []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))

	archive := gamearchive.NewMemoryRepository()
	app := NewApp(deployer, gameAddr, teams, engine, engine, bridge, token, blocks, recorder, archive, zerolog.Nop())
	engine.BindGames(app)
	teams.BindMatches(app)

	f := &fixture{
		app: app, teams: teams, engine: engine, bridge: bridge, token: token,
		blocks: blocks, archive: archive, recorder: recorder,
	}

	token.Approve(alice, teamAddr, leagueteam.DefaultTeamCreationPrice)
	token.Approve(bob, teamAddr, leagueteam.DefaultTeamCreationPrice)
	var err error
	f.aliceTeam, err = teams.CreateTeam(ctx, alice, 1)
	require.NoError(t, err)
	f.bobTeam, err = teams.CreateTeam(ctx, bob, 10)
	require.NoError(t, err)
	return f
}

func (f *fixture) signUpBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.token.Approve(alice, gameAddr, 100*kick.Unit)
	f.token.Approve(bob, gameAddr, 100*kick.Unit)
	require.NoError(t, f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, 4*kick.Unit))
	require.NoError(t, f.app.SignUpTeam(ctx, bob, f.bobTeam, 8, 5*kick.Unit))
}

// openGame walks sign-up, challenge, request, and schedule fulfillment; the
// game lands at the current block + 3.
func (f *fixture) openGame(t *testing.T) uint64 {
	t.Helper()
	ctx := context.Background()
	f.signUpBoth(t)
	require.NoError(t, f.app.SetChallengeTime(ctx, deployer, 10))
	require.NoError(t, f.app.SetGameDelay(ctx, deployer, 0, 5))
	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))
	f.blocks.Advance(11)
	gameID, err := f.app.RequestGame(ctx, alice, f.aliceTeam, f.bobTeam)
	require.NoError(t, err)

	reqs := f.recorder.OfType(events.TypeGameRequested)
	payload := reqs[len(reqs)-1].Payload.(events.GameRequestedPayload)
	require.NoError(t, f.bridge.Fulfill(ctx, oracleAddr, payload.RequestID, 8)) // 8 % 5 = 3
	return gameID
}

func TestSignUpTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Stranger, unknown layout, cheap stake, missing allowance.
	err := f.app.SignUpTeam(ctx, carol, f.aliceTeam, 8, 4*kick.Unit)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	err = f.app.SignUpTeam(ctx, alice, f.aliceTeam, 14, 4*kick.Unit)
	require.ErrorIs(t, err, models.ErrStateConflict)

	err = f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, 3*kick.Unit)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	err = f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, 4*kick.Unit)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	f.token.Approve(alice, gameAddr, 4*kick.Unit)
	require.NoError(t, f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, 4*kick.Unit))
	require.Equal(t, models.TeamSignedUp, f.app.TeamStatus(f.aliceTeam))
	require.Equal(t, 4*kick.Unit, f.token.BalanceOf(gameAddr))

	// Signing up twice conflicts.
	f.token.Approve(alice, gameAddr, 4*kick.Unit)
	err = f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, 4*kick.Unit)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestCancelSignUpRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUpBoth(t)

	before := f.token.BalanceOf(alice)
	require.NoError(t, f.app.CancelSignUp(ctx, alice, f.aliceTeam))
	require.Equal(t, before+4*kick.Unit, f.token.BalanceOf(alice))
	require.Equal(t, models.TeamIdle, f.app.TeamStatus(f.aliceTeam))

	err := f.app.CancelSignUp(ctx, alice, f.aliceTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestCancelSignUpBlockedMidChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUpBoth(t)
	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))

	err := f.app.CancelSignUp(ctx, alice, f.aliceTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)
	err = f.app.CancelSignUp(ctx, bob, f.bobTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestChallengeTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)

	f.signUpBoth(t)
	err = f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.aliceTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)

	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))
	require.Equal(t, models.TeamChallenging, f.app.TeamStatus(f.aliceTeam))
	require.Equal(t, models.TeamChallenged, f.app.TeamStatus(f.bobTeam))

	challenge, ok := f.app.Challenge(f.aliceTeam)
	require.True(t, ok)
	require.Equal(t, uint64(100)+DefaultChallengeTime, challenge.DeadlineBlock)

	// Neither side can enter another challenge.
	err = f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestDeclineChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUpBoth(t)
	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))

	// Only the challenged captain may decline.
	err := f.app.DeclineChallenge(ctx, alice, f.bobTeam, f.aliceTeam)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	require.NoError(t, f.app.DeclineChallenge(ctx, bob, f.bobTeam, f.aliceTeam))
	require.Equal(t, models.TeamSignedUp, f.app.TeamStatus(f.aliceTeam))
	require.Equal(t, models.TeamSignedUp, f.app.TeamStatus(f.bobTeam))
	_, ok := f.app.Challenge(f.aliceTeam)
	require.False(t, ok)

	// The decline fee is collectable by the owner.
	amount, err := f.app.WithdrawFees(ctx, deployer)
	require.NoError(t, err)
	require.Equal(t, DefaultDeclinePrice, amount)

	// Both teams are free to challenge again.
	require.NoError(t, f.app.ChallengeTeam(ctx, bob, f.bobTeam, f.aliceTeam))
}

func TestRequestGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUpBoth(t)
	require.NoError(t, f.app.SetChallengeTime(ctx, deployer, 10))
	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))

	// Too early: the decline window is still open.
	_, err := f.app.RequestGame(ctx, alice, f.aliceTeam, f.bobTeam)
	require.ErrorIs(t, err, models.ErrTimingWindow)

	f.blocks.Advance(11)

	// A stranger cannot force the game.
	_, err = f.app.RequestGame(ctx, carol, f.aliceTeam, f.bobTeam)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	gameID, err := f.app.RequestGame(ctx, bob, f.aliceTeam, f.bobTeam)
	require.NoError(t, err)

	game, err := f.app.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, f.aliceTeam, game.HomeTeamID)
	require.Equal(t, f.bobTeam, game.AwayTeamID)
	require.Equal(t, models.GameRequested, game.Status)
	require.Equal(t, 9*kick.Unit, game.StakePot)
	require.Equal(t, models.TeamInGame, f.app.TeamStatus(f.aliceTeam))
	require.Equal(t, models.TeamInGame, f.app.TeamStatus(f.bobTeam))
	_, ok := f.app.Challenge(f.aliceTeam)
	require.False(t, ok)
}

func TestScheduleFulfillment(t *testing.T) {
	f := newFixture(t)
	gameID := f.openGame(t)

	game, err := f.app.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameScheduled, game.Status)
	require.Equal(t, f.blocks.CurrentBlock()+3, game.ScheduledBlock)

	scheduled := f.recorder.OfType(events.TypeGameScheduled)
	require.Len(t, scheduled, 1)
}

func TestFinishGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := f.openGame(t)

	require.NoError(t, f.engine.SetPreRegistration(ctx, deployer, 10))
	require.NoError(t, f.engine.SetGameDuration(ctx, deployer, 20))

	// Bob's captain takes an away position partway into the window.
	require.NoError(t, f.engine.SignUpPlayer(ctx, bob, 10, f.bobTeam, gameID, 20))

	err := f.app.FinishGame(ctx, gameID)
	require.ErrorIs(t, err, models.ErrTimingWindow)

	f.blocks.Advance(25)

	// Ratings must land first.
	err = f.app.FinishGame(ctx, gameID)
	require.ErrorIs(t, err, models.ErrStateConflict)
	require.NoError(t, f.engine.SetPlayerRates(ctx, gameID))

	// The escrow holds only the stakes; the bonus is not yet covered.
	err = f.app.FinishGame(ctx, gameID)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	require.NoError(t, f.token.Transfer(deployer, gameAddr, 2*kick.Unit))
	before := f.token.BalanceOf(bob)
	require.NoError(t, f.app.FinishGame(ctx, gameID))

	// Away side had the only rated player: pot plus one winning bonus.
	require.Equal(t, before+9*kick.Unit+2*kick.Unit, f.token.BalanceOf(bob))

	game, err := f.app.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameFinished, game.Status)
	require.Equal(t, models.ResultAwayWin, game.Result)
	require.Equal(t, models.TeamIdle, f.app.TeamStatus(f.aliceTeam))
	require.Equal(t, models.TeamIdle, f.app.TeamStatus(f.bobTeam))

	record, err := f.archive.GetRecord(ctx, gameID)
	require.NoError(t, err)
	require.Equal(t, models.ResultAwayWin, record.Result)

	err = f.app.FinishGame(ctx, gameID)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestFinishGameDraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := f.openGame(t)

	require.NoError(t, f.engine.SetGameDuration(ctx, deployer, 20))
	f.blocks.Advance(25)
	require.NoError(t, f.engine.SetPlayerRates(ctx, gameID))

	aliceBefore := f.token.BalanceOf(alice)
	bobBefore := f.token.BalanceOf(bob)
	require.NoError(t, f.app.FinishGame(ctx, gameID))

	// Nobody played: both sides rate zero and stakes flow back.
	require.Equal(t, aliceBefore+4*kick.Unit, f.token.BalanceOf(alice))
	require.Equal(t, bobBefore+5*kick.Unit, f.token.BalanceOf(bob))

	game, err := f.app.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, models.ResultDraw, game.Result)
}

func TestConcurrentFinishAndRateCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gameID := f.openGame(t)

	require.NoError(t, f.engine.SetPreRegistration(ctx, deployer, 10))
	require.NoError(t, f.engine.SetGameDuration(ctx, deployer, 20))
	require.NoError(t, f.engine.SignUpPlayer(ctx, bob, 10, f.bobTeam, gameID, 20))
	f.blocks.Advance(25)
	require.NoError(t, f.token.Transfer(deployer, gameAddr, 2*kick.Unit))

	// Settlement reads the rating engine while rating writes read the
	// lifecycle; both directions must be safe to run at once.
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = f.engine.SetPlayerRates(ctx, gameID)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if err := f.app.FinishGame(ctx, gameID); err == nil {
					return
				}
			}
		}()
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent settlement and rating calls never returned")
	}

	if game, err := f.app.Game(gameID); err == nil && game.Status != models.GameFinished {
		require.NoError(t, f.app.FinishGame(ctx, gameID))
	}
	game, err := f.app.Game(gameID)
	require.NoError(t, err)
	require.Equal(t, models.GameFinished, game.Status)
	require.Equal(t, models.ResultAwayWin, game.Result)
}

func TestRemoveTeamBlockedMidLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUpBoth(t)

	// A signed-up team holds an escrowed stake; disbanding it would strand
	// the refund path.
	err := f.teams.RemoveTeam(ctx, alice, f.aliceTeam)
	require.ErrorIs(t, err, models.ErrStateConflict)

	require.NoError(t, f.app.ChallengeTeam(ctx, alice, f.aliceTeam, f.bobTeam))
	require.ErrorIs(t, f.teams.RemoveTeam(ctx, alice, f.aliceTeam), models.ErrStateConflict)
	require.ErrorIs(t, f.teams.RemoveTeam(ctx, bob, f.bobTeam), models.ErrStateConflict)

	// Back to idle, removal goes through.
	require.NoError(t, f.app.DeclineChallenge(ctx, bob, f.bobTeam, f.aliceTeam))
	require.NoError(t, f.app.CancelSignUp(ctx, alice, f.aliceTeam))
	require.NoError(t, f.teams.RemoveTeam(ctx, alice, f.aliceTeam))

	// Mid-game removal is blocked the same way until settlement.
	f2 := newFixture(t)
	f2.openGame(t)
	require.ErrorIs(t, f2.teams.RemoveTeam(ctx, alice, f2.aliceTeam), models.ErrStateConflict)
	require.ErrorIs(t, f2.teams.RemoveTeam(ctx, bob, f2.bobTeam), models.ErrStateConflict)
}

func TestConfigSettersOwnerGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.app.SetChallengeTime(ctx, alice, 1), models.ErrNotAuthorized)
	require.ErrorIs(t, f.app.SetGameDelay(ctx, alice, 1, 2), models.ErrNotAuthorized)
	require.ErrorIs(t, f.app.SetPrices(ctx, alice, 1, 2, 3), models.ErrNotAuthorized)

	require.NoError(t, f.app.SetPrices(ctx, deployer, kick.Unit, kick.Unit, kick.Unit))
	f.token.Approve(alice, gameAddr, kick.Unit)
	require.NoError(t, f.app.SignUpTeam(ctx, alice, f.aliceTeam, 8, kick.Unit))
}
