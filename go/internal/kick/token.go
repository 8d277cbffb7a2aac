package kick

import (
	"fmt"
	"sync"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// Token is the in-process KICK ledger. Every mutation is atomic under one
// lock, matching the serialized-transaction model of the league: a transfer
// either moves the full amount or leaves both balances untouched.
type Token struct {
	mu         sync.RWMutex
	balances   map[models.Address]uint64
	allowances map[models.Address]map[models.Address]uint64
}

// NewToken creates the ledger with the full premine on the deployer account.
func NewToken(deployer models.Address) *Token {
	return &Token{
		balances:   map[models.Address]uint64{deployer: Premine},
		allowances: make(map[models.Address]map[models.Address]uint64),
	}
}

func (t *Token) BalanceOf(addr models.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[addr]
}

func (t *Token) Allowance(owner, spender models.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

func (t *Token) Approve(owner, spender models.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[models.Address]uint64)
	}
	t.allowances[owner][spender] = amount
}

// Transfer moves amount from one account to another.
func (t *Token) Transfer(from, to models.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount out of from on behalf of spender, consuming
// allowance. The allowance check runs before the balance moves so a failed
// transfer consumes nothing.
func (t *Token) TransferFrom(spender, from, to models.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if from != spender {
		allowed := t.allowances[from][spender]
		if allowed < amount {
			return fmt.Errorf("allowance %d below transfer of %d: %w", allowed, amount, models.ErrInsufficientFunds)
		}
		if err := t.move(from, to, amount); err != nil {
			return err
		}
		t.allowances[from][spender] = allowed - amount
		return nil
	}
	return t.move(from, to, amount)
}

func (t *Token) move(from, to models.Address, amount uint64) error {
	if t.balances[from] < amount {
		return fmt.Errorf("balance %d below transfer of %d: %w", t.balances[from], amount, models.ErrInsufficientFunds)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}
