package kick

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

const (
	alice = models.Address("alice")
	bob   = models.Address("bob")
	carol = models.Address("carol")
)

func TestTransfer(t *testing.T) {
	tok := NewToken(alice)
	require.Equal(t, Premine, tok.BalanceOf(alice))

	require.NoError(t, tok.Transfer(alice, bob, 10*Unit))
	require.Equal(t, 10*Unit, tok.BalanceOf(bob))
	require.Equal(t, Premine-10*Unit, tok.BalanceOf(alice))

	err := tok.Transfer(bob, carol, 11*Unit)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Equal(t, 10*Unit, tok.BalanceOf(bob), "failed transfer must not move funds")
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	tok := NewToken(alice)

	err := tok.TransferFrom(bob, alice, carol, Unit)
	require.ErrorIs(t, err, models.ErrInsufficientFunds, "no allowance approved")

	tok.Approve(alice, bob, 5*Unit)
	require.Equal(t, 5*Unit, tok.Allowance(alice, bob))

	require.NoError(t, tok.TransferFrom(bob, alice, carol, 2*Unit))
	require.Equal(t, 2*Unit, tok.BalanceOf(carol))
	require.Equal(t, 3*Unit, tok.Allowance(alice, bob))

	err = tok.TransferFrom(bob, alice, carol, 4*Unit)
	require.ErrorIs(t, err, models.ErrInsufficientFunds, "allowance exhausted")
}

func TestTransferFromSelfNeedsNoAllowance(t *testing.T) {
	tok := NewToken(alice)
	require.NoError(t, tok.TransferFrom(alice, alice, bob, Unit))
	require.Equal(t, Unit, tok.BalanceOf(bob))
}

func TestSupplyConservation(t *testing.T) {
	tok := NewToken(alice)
	require.NoError(t, tok.Transfer(alice, bob, 7*Unit))
	tok.Approve(bob, carol, 7*Unit)
	require.NoError(t, tok.TransferFrom(carol, bob, carol, 3*Unit))

	total := tok.BalanceOf(alice) + tok.BalanceOf(bob) + tok.BalanceOf(carol)
	require.Equal(t, Premine, total)
}
