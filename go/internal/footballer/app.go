package footballer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
)

// DefaultMintFee is what a mint request costs, in nano-KICK.
const DefaultMintFee = kick.Unit / 10

// App is the player-token registry. Tokens come to life in two steps: a paid
// mint request that opens a randomness correlation, and the oracle fulfillment
// that seeds the token. Attributes are fixed once, by the owner, afterwards.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	mintFee   uint64
	ledger    kick.Ledger
	bridge    *oracle.Bridge
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	tokens    map[uint64]*models.PlayerToken
	approvals map[uint64]models.Address
	nextID    uint64
}

type Config struct {
	Owner   models.Address
	Addr    models.Address
	MintFee uint64
}

func NewApp(cfg Config, ledger kick.Ledger, bridge *oracle.Bridge, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *App {
	if cfg.MintFee == 0 {
		cfg.MintFee = DefaultMintFee
	}
	a := &App{
		owner:     cfg.Owner,
		addr:      cfg.Addr,
		mintFee:   cfg.MintFee,
		ledger:    ledger,
		bridge:    bridge,
		blocks:    blocks,
		publisher: publisher,
		logger:    logger.With().Str("component", "footballer").Logger(),
		tokens:    make(map[uint64]*models.PlayerToken),
		approvals: make(map[uint64]models.Address),
		nextID:    1,
	}
	bridge.RegisterConsumer(models.PurposeMint, a.fulfillMint)
	return a
}

// RequestPlayer opens a mint. The attached value must cover the mint fee and
// is kept whole by the contract; the token exists immediately, awaiting its
// randomness.
func (a *App) RequestPlayer(ctx context.Context, minter models.Address, value uint64) (uint64, uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if value < a.mintFee {
		return 0, uuid.Nil, fmt.Errorf("mint value %d below fee %d: %w", value, a.mintFee, models.ErrInsufficientFunds)
	}

	// Collect the fee before touching the bridge so a broke minter cannot
	// burn an oracle fee or leave a dangling request behind.
	if err := a.ledger.TransferFrom(minter, minter, a.addr, value); err != nil {
		return 0, uuid.Nil, fmt.Errorf("collect mint fee: %w", err)
	}

	tokenID := a.nextID
	requestID, err := a.bridge.RequestRandomness(ctx, models.PurposeMint, tokenID)
	if err != nil {
		if rerr := a.ledger.Transfer(a.addr, minter, value); rerr != nil {
			a.logger.Error().Err(rerr).Str("minter", string(minter)).Msg("mint fee refund failed")
		}
		return 0, uuid.Nil, fmt.Errorf("request mint randomness: %w", err)
	}

	a.nextID++
	a.tokens[tokenID] = &models.PlayerToken{
		ID:    tokenID,
		Owner: minter,
	}

	a.logger.Info().
		Uint64("token_id", tokenID).
		Str("minter", string(minter)).
		Str("request_id", requestID.String()).
		Msg("player requested")

	a.publish(ctx, events.TypeRequestedPlayer, events.RequestedPlayerPayload{
		TokenID:   tokenID,
		RequestID: requestID,
		Minter:    string(minter),
	})
	return tokenID, requestID, nil
}

func (a *App) fulfillMint(ctx context.Context, tokenID uint64, random uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, ok := a.tokens[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	if tok.SeedFulfilled {
		return fmt.Errorf("token %d already seeded: %w", tokenID, models.ErrStateConflict)
	}
	tok.RandomSeed = random
	tok.SeedFulfilled = true

	a.logger.Info().
		Uint64("token_id", tokenID).
		Msg("mint randomness fulfilled")
	return nil
}

// GeneratePlayer fixes the token's attributes from its random seed. Only the
// owner may call it, only after the seed landed, and only once.
func (a *App) GeneratePlayer(ctx context.Context, caller models.Address, tokenID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, ok := a.tokens[tokenID]
	if !ok {
		return 0, fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	if caller != tok.Owner {
		return 0, fmt.Errorf("caller %s does not own token %d: %w", caller, tokenID, models.ErrNotAuthorized)
	}
	if !tok.SeedFulfilled {
		return 0, fmt.Errorf("token %d randomness pending: %w", tokenID, models.ErrStateConflict)
	}
	if tok.AttributesGenerated {
		return 0, fmt.Errorf("token %d attributes already generated: %w", tokenID, models.ErrStateConflict)
	}

	tok.AttributesHash = attributesHash(tok.RandomSeed, tokenID)
	tok.AttributesGenerated = true

	a.publish(ctx, events.TypePlayerGenerated, events.PlayerGeneratedPayload{
		TokenID:        tokenID,
		AttributesHash: tok.AttributesHash,
	})
	return tok.AttributesHash, nil
}

// Token returns a copy of the token's state.
func (a *App) Token(tokenID uint64) (models.PlayerToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.tokens[tokenID]
	if !ok {
		return models.PlayerToken{}, fmt.Errorf("token %d: %w", tokenID, models.ErrNotFound)
	}
	return *tok, nil
}

// Withdraw sends the collected mint fees to the contract owner.
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
		return 0, fmt.Errorf("withdraw mint fees: %w", err)
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

// attributesHash mixes the seed and token id into a stable attribute digest.
func attributesHash(seed, tokenID uint64) uint64 {
	x := seed ^ (tokenID * 0x9e3779b97f4a7c15)
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
