package playertransfer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

const (
	basisPoints = 10_000
	feeBasis    = 250
)

// Registry is the slice of the token registry the transfer market needs.
// Sellers approve the market before listing so the sale can move the token.
type Registry interface {
	OwnerOf(tokenID uint64) (models.Address, error)
	Approved(tokenID uint64) models.Address
	TransferOwnership(spender models.Address, tokenID uint64, to models.Address) error
}

// App is the outright-sale marketplace. Unlike loans, a completed transfer
// moves the registry entry itself.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	registry  Registry
	ledger    kick.Ledger
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	listings map[uint64]uint64 // tokenID -> price
}

func NewApp(owner, addr models.Address, registry Registry, ledger kick.Ledger, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *App {
	return &App{
		owner:     owner,
		addr:      addr,
		registry:  registry,
		ledger:    ledger,
		blocks:    blocks,
		publisher: publisher,
		logger:    logger.With().Str("component", "playertransfer").Logger(),
		listings:  make(map[uint64]uint64),
	}
}

// ListPlayerForTransfer opens a sale listing. The seller must own the token
// and must already have approved this market in the registry, so the buy can
// complete without another interaction from the seller.
func (a *App) ListPlayerForTransfer(ctx context.Context, caller models.Address, price, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("list token %d: %w", tokenID, err)
	}
	if caller != owner {
		return fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if a.registry.Approved(tokenID) != a.addr {
		return fmt.Errorf("token %d not approved for the transfer market: %w", tokenID, models.ErrNotAuthorized)
	}
	if _, ok := a.listings[tokenID]; ok {
		return fmt.Errorf("token %d already listed: %w", tokenID, models.ErrStateConflict)
	}

	a.listings[tokenID] = price
	a.publish(ctx, events.TypeListedForTransfer, events.ListingPlayerForTransferPayload{
		TokenID: tokenID,
		Price:   price,
	})
	return nil
}

// UnlistPlayer withdraws a sale listing.
func (a *App) UnlistPlayer(ctx context.Context, caller models.Address, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("unlist token %d: %w", tokenID, err)
	}
	if caller != owner {
		return fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if _, ok := a.listings[tokenID]; !ok {
		return fmt.Errorf("token %d not listed: %w", tokenID, models.ErrNotFound)
	}

	delete(a.listings, tokenID)
	a.publish(ctx, events.TypeUnlistedPlayer, events.UnlistingPlayerPayload{TokenID: tokenID})
	return nil
}

// Transfer buys a listed token. The buyer pays the listed price, split 97.5%
// to the seller and 2.5% to the protocol, and the registry entry moves.
func (a *App) Transfer(ctx context.Context, buyer models.Address, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	price, ok := a.listings[tokenID]
	if !ok {
		return fmt.Errorf("token %d not listed for transfer: %w", tokenID, models.ErrNotFound)
	}
	seller, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("transfer token %d: %w", tokenID, err)
	}
	if buyer == seller {
		return fmt.Errorf("owner cannot buy own token %d: %w", tokenID, models.ErrStateConflict)
	}

	delete(a.listings, tokenID)

	fee := price * feeBasis / basisPoints
	if err := a.ledger.TransferFrom(buyer, buyer, a.addr, price); err != nil {
		a.listings[tokenID] = price
		return fmt.Errorf("collect transfer price: %w", err)
	}
	if err := a.ledger.Transfer(a.addr, seller, price-fee); err != nil {
		return fmt.Errorf("pay seller: %w", err)
	}
	if err := a.registry.TransferOwnership(a.addr, tokenID, buyer); err != nil {
		return fmt.Errorf("move token %d: %w", tokenID, err)
	}

	a.logger.Info().
		Uint64("token_id", tokenID).
		Str("buyer", string(buyer)).
		Uint64("price", price).
		Msg("player transferred")

	a.publish(ctx, events.TypeTransferPlayer, events.TransferPlayerPayload{
		TokenID: tokenID,
		Buyer:   string(buyer),
		Price:   price,
	})
	return nil
}

// Listing returns the asking price for a token; ok is false when not listed.
func (a *App) Listing(tokenID uint64) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	price, ok := a.listings[tokenID]
	return price, ok
}

// ListedTokens returns the ids of every open listing, ascending.
func (a *App) ListedTokens() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uint64, 0, len(a.listings))
	for id := range a.listings {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Withdraw sends collected protocol fees to the owner.
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
		return 0, fmt.Errorf("withdraw transfer fees: %w", err)
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
