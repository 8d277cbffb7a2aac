package leagueteam

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

const (
	deployer     = models.Address("deployer")
	contractAddr = models.Address("leagueteam_contract")
	alice        = models.Address("alice")
	bob          = models.Address("bob")
	carol        = models.Address("carol")
)

// stubOwnership plays both the raw registry and the resolver; loans entries
// override the effective owner without touching the registry side.
type stubOwnership struct {
	owners map[uint64]models.Address
	loans  map[uint64]models.Address
}

func (s *stubOwnership) OwnerOf(tokenID uint64) (models.Address, error) {
	owner, ok := s.owners[tokenID]
	if !ok {
		return models.ZeroAddress, models.ErrNotFound
	}
	return owner, nil
}

func (s *stubOwnership) EffectiveOwner(tokenID uint64) (models.Address, error) {
	if borrower, ok := s.loans[tokenID]; ok {
		return borrower, nil
	}
	return s.OwnerOf(tokenID)
}

type fixture struct {
	app       *App
	token     *kick.Token
	ownership *stubOwnership
	recorder  *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	token := kick.NewToken(deployer)
	for _, addr := range []models.Address{alice, bob, carol} {
		require.NoError(t, token.Transfer(deployer, addr, 100*kick.Unit))
	}
	ownership := &stubOwnership{
		// alice owns players 1-3, bob 10-11, carol 20.
		owners: map[uint64]models.Address{
			1: alice, 2: alice, 3: alice,
			10: bob, 11: bob,
			20: carol,
		},
		loans: map[uint64]models.Address{},
	}
	recorder := events.NewRecorder()
	app := NewApp(deployer, contractAddr, ownership, ownership, token, chain.NewCounter(1), recorder, zerolog.Nop())
	return &fixture{app: app, token: token, ownership: ownership, recorder: recorder}
}

// createTeam approves the current price and founds a team for alice around
// captain player 1.
func (f *fixture) createTeam(t *testing.T) uint64 {
	t.Helper()
	f.token.Approve(alice, contractAddr, DefaultTeamCreationPrice)
	teamID, err := f.app.CreateTeam(context.Background(), alice, 1)
	require.NoError(t, err)
	return teamID
}

func TestCreateTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No allowance yet.
	_, err := f.app.CreateTeam(ctx, alice, 1)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	// Not the owner of the captain token.
	f.token.Approve(bob, contractAddr, DefaultTeamCreationPrice)
	_, err = f.app.CreateTeam(ctx, bob, 1)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	teamID := f.createTeam(t)
	require.Equal(t, uint64(1), teamID)
	require.Equal(t, DefaultTeamCreationPrice, f.token.BalanceOf(contractAddr))

	team, err := f.app.Team(teamID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), team.Captain())
	require.Equal(t, 1, team.MemberCount())

	// Captain already rostered.
	f.token.Approve(alice, contractAddr, DefaultTeamCreationPrice)
	_, err = f.app.CreateTeam(ctx, alice, 1)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestRosterCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)

	// Hand alice a pool of players to fill the roster with.
	for p := uint64(100); p < 124; p++ {
		f.ownership.owners[p] = alice
	}

	// Fill slots 1-21 (captain holds slot 0).
	for p := uint64(100); p < 121; p++ {
		require.NoError(t, f.app.ApplyForTeam(ctx, alice, p, teamID))
		require.NoError(t, f.app.ValidateApplication(ctx, alice, p, teamID))
	}

	// Player 123 queues while one slot is still open, then player 121 takes it.
	require.NoError(t, f.app.ApplyForTeam(ctx, alice, 123, teamID))
	require.NoError(t, f.app.ApplyForTeam(ctx, alice, 121, teamID))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 121, teamID))

	team, err := f.app.Team(teamID)
	require.NoError(t, err)
	require.Equal(t, 23, team.MemberCount())
	require.Equal(t, uint64(1), team.Captain())

	// A 24th application is refused outright.
	err = f.app.ApplyForTeam(ctx, alice, 122, teamID)
	require.ErrorIs(t, err, models.ErrCapacity)

	// The application queued before the roster filled fails the same way.
	err = f.app.ValidateApplication(ctx, alice, 123, teamID)
	require.ErrorIs(t, err, models.ErrCapacity)

	// Releasing a member reopens the slot for the queued applicant.
	require.NoError(t, f.app.ReleasePlayer(ctx, alice, teamID, 105))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 123, teamID))
}

func TestCreationPriceChangeInvalidatesOldAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.token.Approve(alice, contractAddr, DefaultTeamCreationPrice)
	require.NoError(t, f.app.SetTeamCreationPrice(ctx, deployer, DefaultTeamCreationPrice*2))

	// Allowance sized to the old price no longer covers the stake.
	_, err := f.app.CreateTeam(ctx, alice, 1)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	f.token.Approve(alice, contractAddr, DefaultTeamCreationPrice*2)
	_, err = f.app.CreateTeam(ctx, alice, 1)
	require.NoError(t, err)
}

func TestApplicationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)

	err := f.app.ApplyForTeam(ctx, alice, 10, teamID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))
	err = f.app.ApplyForTeam(ctx, bob, 10, teamID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	// Only the captain's controller validates.
	err = f.app.ValidateApplication(ctx, bob, 10, teamID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	require.NoError(t, f.app.ValidateApplication(ctx, alice, 10, teamID))
	require.True(t, f.app.IsMember(teamID, 10))

	validated := f.recorder.OfType(events.TypeAppValidated)
	require.Len(t, validated, 1)
	payload := validated[0].Payload.(events.ApplicationValidatedPayload)
	require.Equal(t, 1, payload.Position)

	// Application is consumed.
	err = f.app.ValidateApplication(ctx, alice, 10, teamID)
	require.ErrorIs(t, err, models.ErrNotFound)

	// A rostered player cannot apply again.
	err = f.app.ApplyForTeam(ctx, bob, 10, teamID)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestCancelAndClearApplications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)

	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 11, teamID))
	require.NoError(t, f.app.ApplyForTeam(ctx, carol, 20, teamID))

	err := f.app.CancelApplication(ctx, carol, 10)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
	require.NoError(t, f.app.CancelApplication(ctx, bob, 10))

	err = f.app.ClearApplications(ctx, bob, teamID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
	require.NoError(t, f.app.ClearApplications(ctx, alice, teamID))

	team, err := f.app.Team(teamID)
	require.NoError(t, err)
	require.Empty(t, team.Applications)

	// Cleared applicants may apply again.
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 11, teamID))
}

func TestCaptainOnLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))

	// While the captain is loaned out, the borrower validates and the raw
	// owner is locked out.
	f.ownership.loans[1] = carol

	err := f.app.ValidateApplication(ctx, alice, 10, teamID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)
	require.ErrorContains(t, err, "loan")

	require.NoError(t, f.app.ValidateApplication(ctx, carol, 10, teamID))
}

func TestReleasePlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 10, teamID))

	err := f.app.ReleasePlayer(ctx, bob, teamID, 10)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	err = f.app.ReleasePlayer(ctx, alice, teamID, 1)
	require.ErrorIs(t, err, models.ErrStateConflict)

	require.NoError(t, f.app.ReleasePlayer(ctx, alice, teamID, 10))
	require.False(t, f.app.IsMember(teamID, 10))

	// The vacated slot is reused by the next validation.
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 11, teamID))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 11, teamID))
	team, err := f.app.Team(teamID)
	require.NoError(t, err)
	require.Equal(t, 1, team.SlotOf(11))
}

func TestPayReleaseClause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 10, teamID))

	// Captain has no release clause.
	f.token.Approve(alice, contractAddr, DefaultReleasePrice)
	err := f.app.PayReleaseClause(ctx, alice, 1)
	require.ErrorIs(t, err, models.ErrStateConflict)

	// No allowance yet.
	err = f.app.PayReleaseClause(ctx, bob, 10)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	f.token.Approve(bob, contractAddr, DefaultReleasePrice)
	require.NoError(t, f.app.PayReleaseClause(ctx, bob, 10))
	require.False(t, f.app.IsMember(teamID, 10))

	fee := DefaultReleasePrice * 250 / 10_000
	team, err := f.app.Team(teamID)
	require.NoError(t, err)
	require.Equal(t, DefaultReleasePrice-fee, team.Treasury)

	amount, err := f.app.WithdrawFees(ctx, deployer)
	require.NoError(t, err)
	require.Equal(t, fee, amount)

	got, err := f.app.WithdrawTreasury(ctx, alice, teamID)
	require.NoError(t, err)
	require.Equal(t, DefaultReleasePrice-fee, got)
}

func TestRemoveTeamRefundsStakeAndTreasury(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teamID := f.createTeam(t)
	require.NoError(t, f.app.ApplyForTeam(ctx, bob, 10, teamID))
	require.NoError(t, f.app.ValidateApplication(ctx, alice, 10, teamID))
	f.token.Approve(bob, contractAddr, DefaultReleasePrice)
	require.NoError(t, f.app.PayReleaseClause(ctx, bob, 10))

	err := f.app.RemoveTeam(ctx, bob, teamID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	before := f.token.BalanceOf(alice)
	require.NoError(t, f.app.RemoveTeam(ctx, alice, teamID))

	fee := DefaultReleasePrice * 250 / 10_000
	require.Equal(t, before+DefaultTeamCreationPrice+DefaultReleasePrice-fee, f.token.BalanceOf(alice))

	_, err = f.app.Team(teamID)
	require.ErrorIs(t, err, models.ErrNotFound)

	// The captain is free again.
	_, rostered := f.app.TeamOf(1)
	require.False(t, rostered)
}

func TestSettersOwnerGated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.app.SetTeamCreationPrice(ctx, alice, kick.Unit), models.ErrNotAuthorized)
	require.ErrorIs(t, f.app.SetReleasePrice(ctx, alice, kick.Unit), models.ErrNotAuthorized)
	require.NoError(t, f.app.SetTeamCreationPrice(ctx, deployer, kick.Unit))
	require.NoError(t, f.app.SetReleasePrice(ctx, deployer, kick.Unit))

	updates := f.recorder.OfType(events.TypeConfigUpdate)
	require.Len(t, updates, 2)
}
