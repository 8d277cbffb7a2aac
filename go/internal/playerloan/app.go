package playerloan

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

// DefaultMaximumDuration caps loan terms, in blocks.
const DefaultMaximumDuration = 1_300_000

const (
	basisPoints = 10_000
	feeBasis    = 250
)

// Registry is the slice of the token registry the loan market needs.
type Registry interface {
	OwnerOf(tokenID uint64) (models.Address, error)
}

// App is the loan marketplace. A listed token can be borrowed for a fixed
// term; while the term runs, the borrower is the token's effective owner for
// every roster and match operation, without the registry entry moving.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	maxTerm   uint64
	registry  Registry
	ledger    kick.Ledger
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	listings map[uint64]models.LoanListing
	loans    map[uint64]models.Loan
}

func NewApp(owner, addr models.Address, registry Registry, ledger kick.Ledger, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *App {
	return &App{
		owner:     owner,
		addr:      addr,
		maxTerm:   DefaultMaximumDuration,
		registry:  registry,
		ledger:    ledger,
		blocks:    blocks,
		publisher: publisher,
		logger:    logger.With().Str("component", "playerloan").Logger(),
		listings:  make(map[uint64]models.LoanListing),
		loans:     make(map[uint64]models.Loan),
	}
}

// ListPlayerForLoan opens a listing. Only the raw registry owner may list,
// the term must fit under the maximum, and a token cannot be listed twice or
// while a loan on it still runs.
func (a *App) ListPlayerForLoan(ctx context.Context, caller models.Address, duration, price, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("list token %d: %w", tokenID, err)
	}
	if caller != owner {
		return fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if duration == 0 || duration > a.maxTerm {
		return fmt.Errorf("loan duration %d outside (0, %d]: %w", duration, a.maxTerm, models.ErrTimingWindow)
	}
	if _, ok := a.listings[tokenID]; ok {
		return fmt.Errorf("token %d already listed: %w", tokenID, models.ErrStateConflict)
	}
	if a.loanActiveLocked(tokenID) {
		return fmt.Errorf("token %d currently on loan: %w", tokenID, models.ErrStateConflict)
	}

	a.listings[tokenID] = models.LoanListing{Duration: duration, Price: price}
	a.publish(ctx, events.TypeListedForLoan, events.ListingPlayerForLoanPayload{
		TokenID:  tokenID,
		Duration: duration,
		Price:    price,
	})
	return nil
}

// UnlistPlayer withdraws a listing, restoring the token to an unlisted state.
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

// Loan borrows a listed token. The borrower pays the listed price, split
// 97.5% to the lender and 2.5% to the protocol, and becomes the effective
// owner until the term expires.
func (a *App) Loan(ctx context.Context, borrower models.Address, tokenID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	listing, ok := a.listings[tokenID]
	if !ok {
		return fmt.Errorf("token %d not listed for loan: %w", tokenID, models.ErrNotFound)
	}
	owner, err := a.registry.OwnerOf(tokenID)
	if err != nil {
		return fmt.Errorf("loan token %d: %w", tokenID, err)
	}
	if borrower == owner {
		return fmt.Errorf("owner cannot borrow own token %d: %w", tokenID, models.ErrStateConflict)
	}

	term := a.blocks.CurrentBlock() + listing.Duration
	delete(a.listings, tokenID)
	a.loans[tokenID] = models.Loan{Borrower: borrower, Term: term}

	// Collect the whole price in one move so a funding failure rolls back
	// cleanly, then pay the lender share out of the contract balance.
	fee := listing.Price * feeBasis / basisPoints
	if err := a.ledger.TransferFrom(borrower, borrower, a.addr, listing.Price); err != nil {
		delete(a.loans, tokenID)
		a.listings[tokenID] = listing
		return fmt.Errorf("collect loan price: %w", err)
	}
	if err := a.ledger.Transfer(a.addr, owner, listing.Price-fee); err != nil {
		return fmt.Errorf("pay lender: %w", err)
	}

	a.logger.Info().
		Uint64("token_id", tokenID).
		Str("borrower", string(borrower)).
		Uint64("term", term).
		Msg("player loaned")

	a.publish(ctx, events.TypeLoanPlayer, events.LoanPlayerPayload{
		TokenID:  tokenID,
		Borrower: string(borrower),
		Term:     term,
	})
	return nil
}

// EffectiveOwner resolves who currently controls the token: the borrower
// while a loan term runs, the registry owner otherwise.
func (a *App) EffectiveOwner(tokenID uint64) (models.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if loan, ok := a.loans[tokenID]; ok && loan.Term >= a.blocks.CurrentBlock() {
		return loan.Borrower, nil
	}
	return a.registry.OwnerOf(tokenID)
}

// Listing returns the open listing for a token, zero-valued when absent.
func (a *App) Listing(tokenID uint64) models.LoanListing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listings[tokenID]
}

// ActiveLoan returns the running loan for a token, if any.
func (a *App) ActiveLoan(tokenID uint64) (models.Loan, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	loan, ok := a.loans[tokenID]
	if !ok || loan.Term < a.blocks.CurrentBlock() {
		return models.Loan{}, false
	}
	return loan, true
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

// SetMaximumDuration adjusts the loan term cap. Owner only.
func (a *App) SetMaximumDuration(ctx context.Context, caller models.Address, duration uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	a.maxTerm = duration
	a.publish(ctx, events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: "loanMaximumDuration",
		Values:    map[string]uint64{"duration": duration},
	})
	return nil
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
		return 0, fmt.Errorf("withdraw loan fees: %w", err)
	}
	return amount, nil
}

func (a *App) loanActiveLocked(tokenID uint64) bool {
	loan, ok := a.loans[tokenID]
	return ok && loan.Term >= a.blocks.CurrentBlock()
}

func (a *App) publish(ctx context.Context, eventType string, payload any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, events.NewEvent(eventType, a.blocks.CurrentBlock(), payload)); err != nil {
		a.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event")
	}
}
