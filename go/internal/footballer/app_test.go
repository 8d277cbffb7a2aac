package footballer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
)

const (
	deployer     = models.Address("deployer")
	contractAddr = models.Address("footballer_contract")
	oracleAddr   = models.Address("oracle")
	alice        = models.Address("alice")
	bob          = models.Address("bob")
)

type fixture struct {
	app      *App
	token    *kick.Token
	bridge   *oracle.Bridge
	recorder *events.Recorder
	blocks   *chain.Counter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	token := kick.NewToken(deployer)
	require.NoError(t, token.Transfer(deployer, alice, 10*kick.Unit))
	require.NoError(t, token.Transfer(deployer, bob, 10*kick.Unit))

	bridge := oracle.NewBridge(deployer, oracleAddr, 1, zerolog.Nop())
	bridge.Fund(100)

	recorder := events.NewRecorder()
	blocks := chain.NewCounter(100)
	app := NewApp(Config{Owner: deployer, Addr: contractAddr}, token, bridge, blocks, recorder, zerolog.Nop())
	return &fixture{app: app, token: token, bridge: bridge, recorder: recorder, blocks: blocks}
}

func (f *fixture) mint(t *testing.T, minter models.Address, random uint64) uint64 {
	t.Helper()
	tokenID, requestID, err := f.app.RequestPlayer(context.Background(), minter, DefaultMintFee)
	require.NoError(t, err)
	require.NoError(t, f.bridge.Fulfill(context.Background(), oracleAddr, requestID, random))
	return tokenID
}

func TestRequestPlayerCollectsFee(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.app.RequestPlayer(context.Background(), alice, DefaultMintFee-1)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	tokenID, requestID, err := f.app.RequestPlayer(context.Background(), alice, DefaultMintFee)
	require.NoError(t, err)
	require.Equal(t, uint64(1), tokenID)
	require.Equal(t, DefaultMintFee, f.token.BalanceOf(contractAddr))

	owner, err := f.app.OwnerOf(tokenID)
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	tok, err := f.app.Token(tokenID)
	require.NoError(t, err)
	require.False(t, tok.SeedFulfilled)

	reqs := f.recorder.OfType(events.TypeRequestedPlayer)
	require.Len(t, reqs, 1)
	payload := reqs[0].Payload.(events.RequestedPlayerPayload)
	require.Equal(t, requestID, payload.RequestID)
}

func TestFailedMintLeavesNoTrace(t *testing.T) {
	f := newFixture(t)

	// A minter with no balance: the fee collection fails before the bridge
	// is touched, so no oracle fee burns and no request dangles.
	carol := models.Address("carol")
	reserve := f.bridge.Reserve()
	_, _, err := f.app.RequestPlayer(context.Background(), carol, DefaultMintFee)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Equal(t, reserve, f.bridge.Reserve())
	require.Zero(t, f.bridge.PendingCount())
	require.Zero(t, f.app.TotalMinted())
	require.Zero(t, f.token.BalanceOf(contractAddr))

	// An unfunded bridge: the already-collected fee comes back to the minter.
	token := kick.NewToken(deployer)
	require.NoError(t, token.Transfer(deployer, alice, 10*kick.Unit))
	dryBridge := oracle.NewBridge(deployer, oracleAddr, 1, zerolog.Nop())
	app := NewApp(Config{Owner: deployer, Addr: contractAddr}, token, dryBridge, f.blocks, events.NewRecorder(), zerolog.Nop())

	_, _, err = app.RequestPlayer(context.Background(), alice, DefaultMintFee)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Equal(t, 10*kick.Unit, token.BalanceOf(alice))
	require.Zero(t, token.BalanceOf(contractAddr))
	require.Zero(t, app.TotalMinted())
}

func TestGeneratePlayerNeedsFulfilledSeed(t *testing.T) {
	f := newFixture(t)
	tokenID, _, err := f.app.RequestPlayer(context.Background(), alice, DefaultMintFee)
	require.NoError(t, err)

	_, err = f.app.GeneratePlayer(context.Background(), alice, tokenID)
	require.ErrorIs(t, err, models.ErrStateConflict)
}

func TestGeneratePlayerExactlyOnce(t *testing.T) {
	f := newFixture(t)
	tokenID := f.mint(t, alice, 777)

	_, err := f.app.GeneratePlayer(context.Background(), bob, tokenID)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	hash, err := f.app.GeneratePlayer(context.Background(), alice, tokenID)
	require.NoError(t, err)
	require.NotZero(t, hash)

	_, err = f.app.GeneratePlayer(context.Background(), alice, tokenID)
	require.ErrorIs(t, err, models.ErrStateConflict)

	_, err = f.app.GeneratePlayer(context.Background(), alice, 999)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransferOwnershipConsumesApproval(t *testing.T) {
	f := newFixture(t)
	tokenID := f.mint(t, alice, 1)

	err := f.app.TransferOwnership(bob, tokenID, bob)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	require.NoError(t, f.app.Approve(alice, bob, tokenID))
	require.NoError(t, f.app.TransferOwnership(bob, tokenID, bob))

	owner, err := f.app.OwnerOf(tokenID)
	require.NoError(t, err)
	require.Equal(t, bob, owner)
	require.Equal(t, models.ZeroAddress, f.app.Approved(tokenID))
}

func TestWithdrawOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.mint(t, alice, 1)

	_, err := f.app.Withdraw(context.Background(), alice)
	require.ErrorIs(t, err, models.ErrNotAuthorized)

	before := f.token.BalanceOf(deployer)
	amount, err := f.app.Withdraw(context.Background(), deployer)
	require.NoError(t, err)
	require.Equal(t, DefaultMintFee, amount)
	require.Equal(t, before+DefaultMintFee, f.token.BalanceOf(deployer))
}
