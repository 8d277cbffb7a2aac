package playerrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// Defaults, in blocks.
const (
	DefaultGameDuration         = 3_000
	DefaultDurationBetweenGames = 300_000
	DefaultPreRegistration      = 300_000
)

// Position space: 32 slots per game, the low half for the home team and the
// high half for the away team. A layout activates exactly 11 of a side's 16.
const (
	positionsPerSide = 16
	positionCount    = 2 * positionsPerSide
	activePositions  = 11
)

// OwnershipResolver answers who currently controls a player token.
type OwnershipResolver interface {
	EffectiveOwner(tokenID uint64) (models.Address, error)
}

// Roster answers roster membership questions.
type Roster interface {
	IsMember(teamID, playerID uint64) bool
}

// GameSource is the match-lifecycle surface the engine reads: game state for
// windows and sides, and the formation each team signed up with.
type GameSource interface {
	Game(gameID uint64) (models.Game, error)
	TeamLayout(teamID uint64) (uint8, bool)
}

// Engine records per-position player sign-ups during a match's
// pre-registration window and turns them into participation ratings once the
// match is over. Ratings share gameDuration as denominator, so earlier
// sign-ups score strictly higher numerators.
type Engine struct {
	mu        sync.Mutex
	owner     models.Address
	resolver  OwnershipResolver
	roster    Roster
	games     GameSource
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	gameDuration    uint64
	betweenGames    uint64
	preRegistration uint64

	layouts    map[uint8][]uint8
	positions  map[uint8]string
	gameBoards map[uint64]map[uint8]*models.PositionSignUp
	signedUp   map[uint64]bool
	lastGame   map[uint64]uint64
	lastRated  map[uint64]uint64
	computed   map[uint64]bool
}

func NewEngine(owner models.Address, resolver OwnershipResolver, roster Roster, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *Engine {
	return &Engine{
		owner:           owner,
		resolver:        resolver,
		roster:          roster,
		blocks:          blocks,
		publisher:       publisher,
		logger:          logger.With().Str("component", "playerrate").Logger(),
		gameDuration:    DefaultGameDuration,
		betweenGames:    DefaultDurationBetweenGames,
		preRegistration: DefaultPreRegistration,
		layouts:         make(map[uint8][]uint8),
		positions:       make(map[uint8]string),
		gameBoards:      make(map[uint64]map[uint8]*models.PositionSignUp),
		signedUp:        make(map[uint64]bool),
		lastGame:        make(map[uint64]uint64),
		lastRated:       make(map[uint64]uint64),
		computed:        make(map[uint64]bool),
	}
}

// BindGames wires the match lifecycle in after construction; the two modules
// reference each other so one side binds late.
func (e *Engine) BindGames(games GameSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.games = games
}

// gameSource reads the bound lifecycle. Calls into it happen outside e.mu:
// the lifecycle queries the engine under its own lock, so the engine holding
// e.mu across a lifecycle call would invert the lock order.
func (e *Engine) gameSource() (GameSource, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.games == nil {
		return nil, fmt.Errorf("match lifecycle not bound: %w", models.ErrStateConflict)
	}
	return e.games, nil
}

// StoreLayout registers a formation: exactly 11 active half-positions, each
// below 16. Owner only. A layout code is valid for sign-up once stored.
func (e *Engine) StoreLayout(caller models.Address, layout uint8, positions []uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	if len(positions) != activePositions {
		return fmt.Errorf("layout %d has %d positions, want %d: %w", layout, len(positions), activePositions, models.ErrStateConflict)
	}
	seen := make(map[uint8]bool, activePositions)
	for _, p := range positions {
		if p >= positionsPerSide {
			return fmt.Errorf("layout %d position %d out of half-space: %w", layout, p, models.ErrStateConflict)
		}
		if seen[p] {
			return fmt.Errorf("layout %d repeats position %d: %w", layout, p, models.ErrStateConflict)
		}
		seen[p] = true
	}
	e.layouts[layout] = append([]uint8(nil), positions...)
	return nil
}

// StorePosition names a position index (keeper, backs, and so on). Owner
// only. Purely descriptive; sign-up validity comes from layouts.
func (e *Engine) StorePosition(caller models.Address, position uint8, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	if name == "" {
		return fmt.Errorf("position %d name is empty: %w", position, models.ErrStateConflict)
	}
	e.positions[position] = name
	return nil
}

// PositionName looks up a stored position name.
func (e *Engine) PositionName(position uint8) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name, ok := e.positions[position]
	return name, ok
}

// ValidLayout reports whether a formation code has been stored.
func (e *Engine) ValidLayout(layout uint8) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.layouts[layout]
	return ok
}

// SignUpPlayer takes a position in a scheduled game for a rostered player.
// The position must sit in the player's team's half, be active in the team's
// formation, and be free; the call must land inside the pre-registration
// window; and the player must be neither signed up elsewhere nor cooling
// down from a previous game.
func (e *Engine) SignUpPlayer(ctx context.Context, caller models.Address, playerID, teamID, gameID uint64, position uint8) error {
	eff, err := e.resolver.EffectiveOwner(playerID)
	if err != nil {
		return fmt.Errorf("resolve player %d: %w", playerID, err)
	}
	if caller != eff {
		return fmt.Errorf("caller %s does not control player %d: %w", caller, playerID, models.ErrNotAuthorized)
	}
	if !e.roster.IsMember(teamID, playerID) {
		return fmt.Errorf("player %d not on team %d: %w", playerID, teamID, models.ErrNotAuthorized)
	}

	games, err := e.gameSource()
	if err != nil {
		return err
	}
	game, err := games.Game(gameID)
	if err != nil {
		return err
	}
	if game.Status != models.GameScheduled {
		return fmt.Errorf("game %d not scheduled: %w", gameID, models.ErrStateConflict)
	}
	if teamID != game.HomeTeamID && teamID != game.AwayTeamID {
		return fmt.Errorf("team %d not in game %d: %w", teamID, gameID, models.ErrStateConflict)
	}
	if position >= positionCount {
		return fmt.Errorf("position %d out of range: %w", position, models.ErrStateConflict)
	}

	home := teamID == game.HomeTeamID
	if home != (position < positionsPerSide) {
		return fmt.Errorf("position %d not in team %d's half: %w", position, teamID, models.ErrStateConflict)
	}
	layout, ok := games.TeamLayout(teamID)
	if !ok {
		return fmt.Errorf("team %d has no active formation: %w", teamID, models.ErrStateConflict)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.layoutActiveLocked(layout, position%positionsPerSide) {
		return fmt.Errorf("position %d inactive in formation %d: %w", position, layout, models.ErrStateConflict)
	}

	current := e.blocks.CurrentBlock()
	windowStart := uint64(0)
	if game.ScheduledBlock > e.preRegistration {
		windowStart = game.ScheduledBlock - e.preRegistration
	}
	if current < windowStart || current > game.ScheduledBlock {
		return fmt.Errorf("block %d outside sign-up window [%d, %d]: %w", current, windowStart, game.ScheduledBlock, models.ErrTimingWindow)
	}

	if e.signedUp[playerID] {
		return fmt.Errorf("player %d already signed up: %w", playerID, models.ErrStateConflict)
	}
	if last, ok := e.lastRated[playerID]; ok && current < last+e.betweenGames {
		return fmt.Errorf("player %d resting until block %d: %w", playerID, last+e.betweenGames, models.ErrTimingWindow)
	}

	board, ok := e.gameBoards[gameID]
	if !ok {
		board = make(map[uint8]*models.PositionSignUp)
		e.gameBoards[gameID] = board
	}
	if _, occupied := board[position]; occupied {
		return fmt.Errorf("position %d already taken in game %d: %w", position, gameID, models.ErrStateConflict)
	}

	board[position] = &models.PositionSignUp{PlayerID: playerID, BlockSigned: current}
	e.signedUp[playerID] = true

	e.logger.Info().
		Uint64("game_id", gameID).
		Uint64("player_id", playerID).
		Uint8("position", position).
		Msg("player signed up")

	e.publish(ctx, events.TypePlayerSignedUp, events.PlayerSignedUpPayload{
		GameID:   gameID,
		PlayerID: playerID,
		Position: position,
	})
	return nil
}

// SetPlayerRates computes every occupied position's rating once the match's
// nominal end has passed. Players come off the signed-up flag, their last
// game is recorded, and the cooldown clock starts.
func (e *Engine) SetPlayerRates(ctx context.Context, gameID uint64) error {
	games, err := e.gameSource()
	if err != nil {
		return err
	}
	game, err := games.Game(gameID)
	if err != nil {
		return err
	}
	if game.Status != models.GameScheduled && game.Status != models.GameFinished {
		return fmt.Errorf("game %d not scheduled: %w", gameID, models.ErrStateConflict)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.computed[gameID] {
		return fmt.Errorf("game %d rates already set: %w", gameID, models.ErrStateConflict)
	}
	current := e.blocks.CurrentBlock()
	end := game.ScheduledBlock + e.gameDuration
	if current < end {
		return fmt.Errorf("game %d runs until block %d: %w", gameID, end, models.ErrTimingWindow)
	}

	windowStart := uint64(0)
	if game.ScheduledBlock > e.preRegistration {
		windowStart = game.ScheduledBlock - e.preRegistration
	}
	for _, su := range e.gameBoards[gameID] {
		// preRegistration may have been shortened since the sign-up landed.
		var wait uint64
		if su.BlockSigned > windowStart {
			wait = su.BlockSigned - windowStart
		}
		if wait > e.gameDuration {
			wait = e.gameDuration
		}
		su.RateNumerator = e.gameDuration - wait
		su.RateDenominator = e.gameDuration
		e.signedUp[su.PlayerID] = false
		e.lastGame[su.PlayerID] = gameID
		e.lastRated[su.PlayerID] = current
	}
	e.computed[gameID] = true

	e.logger.Info().
		Uint64("game_id", gameID).
		Int("positions", len(e.gameBoards[gameID])).
		Msg("player rates set")
	return nil
}

// GamePlayer returns the sign-up occupying a position, zero-valued when open.
func (e *Engine) GamePlayer(gameID uint64, position uint8) models.PositionSignUp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if su, ok := e.gameBoards[gameID][position]; ok {
		return *su
	}
	return models.PositionSignUp{}
}

// IsPlayerSignedUp reports whether the player holds a position awaiting rates.
func (e *Engine) IsPlayerSignedUp(playerID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signedUp[playerID]
}

// PlayerLastGame returns the last game the player was rated in.
func (e *Engine) PlayerLastGame(playerID uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastGame[playerID]
}

// GameDuration returns the nominal match length in blocks.
func (e *Engine) GameDuration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameDuration
}

// RatingsComputed reports whether SetPlayerRates ran for the game.
func (e *Engine) RatingsComputed(gameID uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computed[gameID]
}

// SideRating sums a side's rating numerators and counts its rated positions.
func (e *Engine) SideRating(gameID uint64, home bool) (uint64, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var sum uint64
	var rated int
	for position, su := range e.gameBoards[gameID] {
		if home != (position < positionsPerSide) {
			continue
		}
		if su.RateDenominator == 0 {
			continue
		}
		sum += su.RateNumerator
		rated++
	}
	return sum, rated
}

// SetGameDuration adjusts the nominal match length. Owner only.
func (e *Engine) SetGameDuration(ctx context.Context, caller models.Address, duration uint64) error {
	return e.setDuration(ctx, caller, "gameDuration", duration, &e.gameDuration)
}

// SetDurationBetweenGames adjusts the per-player cooldown. Owner only.
func (e *Engine) SetDurationBetweenGames(ctx context.Context, caller models.Address, duration uint64) error {
	return e.setDuration(ctx, caller, "durationBetweenGames", duration, &e.betweenGames)
}

// SetPreRegistration adjusts the sign-up window. Owner only.
func (e *Engine) SetPreRegistration(ctx context.Context, caller models.Address, duration uint64) error {
	return e.setDuration(ctx, caller, "preRegistration", duration, &e.preRegistration)
}

func (e *Engine) setDuration(ctx context.Context, caller models.Address, name string, duration uint64, dst *uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	*dst = duration
	e.publish(ctx, events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: name,
		Values:    map[string]uint64{"duration": duration},
	})
	return nil
}

func (e *Engine) layoutActiveLocked(layout, halfPosition uint8) bool {
	for _, p := range e.layouts[layout] {
		if p == halfPosition {
			return true
		}
	}
	return false
}

func (e *Engine) publish(ctx context.Context, eventType string, payload any) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, events.NewEvent(eventType, e.blocks.CurrentBlock(), payload)); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event")
	}
}
