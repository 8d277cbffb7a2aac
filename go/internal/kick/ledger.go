package kick

import "github.com/0xBumstead/FarmersLeague/go/internal/models"

// Unit is one whole KICK in ledger units.
const Unit uint64 = 1_000_000_000

// Premine is the total supply credited to the deployer at genesis.
const Premine uint64 = 100_000_000 * Unit

// Ledger is the fungible balance custody the league contracts settle
// through. Transfers on behalf of another account require an allowance
// approved beforehand, ERC20-style.
type Ledger interface {
	BalanceOf(addr models.Address) uint64
	Allowance(owner, spender models.Address) uint64
	Approve(owner, spender models.Address, amount uint64)
	Transfer(from, to models.Address, amount uint64) error
	TransferFrom(spender, from, to models.Address, amount uint64) error
}
