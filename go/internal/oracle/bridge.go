package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// ConsumerFunc receives a fulfilled randomness word for the entity the
// request was opened for. A request is dispatched at most once.
type ConsumerFunc func(ctx context.Context, entityID uint64, random uint64) error

// Bridge brokers randomness between requesting contracts and the trusted
// oracle identity. Requesters pre-fund a fee reserve; every request burns
// one fee from it.
type Bridge struct {
	mu        sync.Mutex
	owner     models.Address
	oracle    models.Address
	fee       uint64
	reserve   uint64
	pending   map[uuid.UUID]models.RandomnessRequest
	consumers map[models.RandomnessPurpose]ConsumerFunc
	logger    zerolog.Logger
}

func NewBridge(owner, oracleIdentity models.Address, fee uint64, logger zerolog.Logger) *Bridge {
	return &Bridge{
		owner:     owner,
		oracle:    oracleIdentity,
		fee:       fee,
		pending:   make(map[uuid.UUID]models.RandomnessRequest),
		consumers: make(map[models.RandomnessPurpose]ConsumerFunc),
		logger:    logger.With().Str("component", "oracle_bridge").Logger(),
	}
}

// RegisterConsumer binds the handler dispatched on fulfillment for a purpose.
// Registering twice for the same purpose replaces the handler.
func (b *Bridge) RegisterConsumer(purpose models.RandomnessPurpose, fn ConsumerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers[purpose] = fn
}

// Fund adds fee budget to the reserve.
func (b *Bridge) Fund(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reserve += amount
}

// Reserve returns the remaining fee budget.
func (b *Bridge) Reserve() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reserve
}

// Fee returns the per-request fee.
func (b *Bridge) Fee() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fee
}

// RequestRandomness opens a pending request for the entity, debiting one fee
// from the reserve. PendingCount callers can watch the queue drain.
func (b *Bridge) RequestRandomness(ctx context.Context, purpose models.RandomnessPurpose, entityID uint64) (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reserve < b.fee {
		return uuid.Nil, fmt.Errorf("oracle fee reserve %d below fee %d: %w", b.reserve, b.fee, models.ErrInsufficientFunds)
	}
	if _, ok := b.consumers[purpose]; !ok {
		return uuid.Nil, fmt.Errorf("no consumer registered for purpose %s: %w", purpose, models.ErrNotFound)
	}

	b.reserve -= b.fee
	req := models.RandomnessRequest{
		ID:       uuid.New(),
		Purpose:  purpose,
		EntityID: entityID,
	}
	b.pending[req.ID] = req

	b.logger.Info().
		Str("request_id", req.ID.String()).
		Str("purpose", string(purpose)).
		Uint64("entity_id", entityID).
		Msg("randomness requested")

	return req.ID, nil
}

// Fulfill delivers a randomness word for a pending request. Only the trusted
// oracle identity may call it, and each request fulfills exactly once: the
// pending entry is deleted before the consumer runs, so a consumer error
// does not leave the request claimable again.
func (b *Bridge) Fulfill(ctx context.Context, caller models.Address, requestID uuid.UUID, random uint64) error {
	b.mu.Lock()
	if caller != b.oracle {
		b.mu.Unlock()
		return fmt.Errorf("caller %s is not the oracle: %w", caller, models.ErrNotAuthorized)
	}
	req, ok := b.pending[requestID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("request %s unknown or already fulfilled: %w", requestID, models.ErrNotFound)
	}
	delete(b.pending, requestID)
	fn := b.consumers[req.Purpose]
	b.mu.Unlock()

	b.logger.Info().
		Str("request_id", requestID.String()).
		Str("purpose", string(req.Purpose)).
		Uint64("entity_id", req.EntityID).
		Msg("randomness fulfilled")

	if err := fn(ctx, req.EntityID, random); err != nil {
		return fmt.Errorf("dispatch %s randomness: %w", req.Purpose, err)
	}
	return nil
}

// PendingCount reports how many requests await fulfillment.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// PendingRequests snapshots the requests awaiting fulfillment, for the
// oracle operator to work through.
func (b *Bridge) PendingRequests() []models.RandomnessRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	reqs := make([]models.RandomnessRequest, 0, len(b.pending))
	for _, req := range b.pending {
		reqs = append(reqs, req)
	}
	return reqs
}

// WithdrawFees drains the reserve back to the owner. Returns the amount drained.
func (b *Bridge) WithdrawFees(caller models.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if caller != b.owner {
		return 0, fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	amount := b.reserve
	b.reserve = 0
	return amount, nil
}
