package claimkick

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// ClaimAmount is what each player token may claim once, in nano-KICK.
const ClaimAmount = 100 * kick.Unit

// Registry is the slice of the token registry the claim desk needs.
type Registry interface {
	OwnerOf(tokenID uint64) (models.Address, error)
}

// App hands each player token its one-time KICK grant, paid from a reserve
// funded at deployment.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	registry  Registry
	ledger    kick.Ledger
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	claimed map[uint64]bool
}

func NewApp(owner, addr models.Address, registry Registry, ledger kick.Ledger, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *App {
	return &App{
		owner:     owner,
		addr:      addr,
		registry:  registry,
		ledger:    ledger,
		blocks:    blocks,
		publisher: publisher,
		logger:    logger.With().Str("component", "claimkick").Logger(),
		claimed:   make(map[uint64]bool),
	}
}

// Claim pays the grant for a token to its current owner. Once per token,
// owner only, and only while the reserve holds enough.
func (a *App) Claim(ctx context.Context, caller models.Address, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("claim token %d: %w", tokenID, err)
	}
	if caller != owner {
		return fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if a.claimed[tokenID] {
		return fmt.Errorf("token %d already claimed: %w", tokenID, models.ErrStateConflict)
	}
	if a.ledger.BalanceOf(a.addr) < ClaimAmount {
		return fmt.Errorf("claim reserve exhausted: %w", models.ErrInsufficientFunds)
	}

	a.claimed[tokenID] = true
	if err := a.ledger.Transfer(a.addr, caller, ClaimAmount); err != nil {
		a.claimed[tokenID] = false
		return fmt.Errorf("pay claim: %w", err)
	}

	a.logger.Info().
		Uint64("token_id", tokenID).
		Str("owner", string(caller)).
		Msg("token grant claimed")

	a.publish(ctx, events.TypeTokenClaimed, events.TokenClaimedPayload{TokenID: tokenID})
	return nil
}

// Claimed reports whether a token's grant was already taken.
func (a *App) Claimed(tokenID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.claimed[tokenID]
}

// Withdraw drains the remaining reserve to the contract owner.
func (a *App) Withdraw(ctx context.Context, caller models.Address) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return 0, fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	amount := a.ledger.BalanceOf(a.addr)
	if amount == 0 {
		return 0, nil
	}
	if err := a.ledger.Transfer(a.addr, a.owner, amount); err != nil {
		return 0, fmt.Errorf("withdraw claim reserve: %w", err)
	}
	return amount, nil
}

func (a *App) publish(ctx context.Context, eventType string, payload any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, events.NewEvent(eventType, a.blocks.CurrentBlock(), payload)); err != nil {
		a.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event")
	}
}
