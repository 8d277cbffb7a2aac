package leagueteam

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

// Default prices, in nano-KICK.
const (
	DefaultTeamCreationPrice = 10 * kick.Unit
	DefaultReleasePrice      = 5 * kick.Unit
)

const (
	basisPoints   = 10_000
	protocolBasis = 250
)

// OwnershipResolver answers who currently controls a player token, loans
// included. Every authorization check in this package goes through it.
type OwnershipResolver interface {
	EffectiveOwner(tokenID uint64) (models.Address, error)
}

// Registry exposes raw registry ownership, used only to tell a lender locked
// out by a running loan apart from a plain stranger.
type Registry interface {
	OwnerOf(tokenID uint64) (models.Address, error)
}

// MatchStatus reports where a team sits in the match lifecycle. Bound late:
// the lifecycle depends on this package, so the reverse edge arrives after
// construction.
type MatchStatus interface {
	TeamStatus(teamID uint64) models.TeamStatus
}

// App manages team rosters: creation, the application queue, releases and
// the release clause, and team treasuries.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	resolver  OwnershipResolver
	registry  Registry
	ledger    kick.Ledger
	blocks    chain.BlockSource
	publisher events.Publisher
	logger    zerolog.Logger

	creationPrice uint64
	releasePrice  uint64
	fees          uint64

	matches MatchStatus

	teams        map[uint64]*models.Team
	playerTeam   map[uint64]uint64
	applications map[uint64]uint64 // playerID -> teamID applied to
	nextTeamID   uint64
}

func NewApp(owner, addr models.Address, resolver OwnershipResolver, registry Registry, ledger kick.Ledger, blocks chain.BlockSource, publisher events.Publisher, logger zerolog.Logger) *App {
	return &App{
		owner:         owner,
		addr:          addr,
		resolver:      resolver,
		registry:      registry,
		ledger:        ledger,
		blocks:        blocks,
		publisher:     publisher,
		logger:        logger.With().Str("component", "leagueteam").Logger(),
		creationPrice: DefaultTeamCreationPrice,
		releasePrice:  DefaultReleasePrice,
		teams:         make(map[uint64]*models.Team),
		playerTeam:    make(map[uint64]uint64),
		applications:  make(map[uint64]uint64),
		nextTeamID:    1,
	}
}

// BindMatches wires the match lifecycle in after construction.
func (a *App) BindMatches(matches MatchStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.matches = matches
}

// matchStatus reads the bound lifecycle. Calls into it happen outside a.mu:
// the lifecycle queries this package under its own lock, so holding a.mu
// across the call would invert the lock order.
func (a *App) matchStatus() MatchStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matches
}

// CreateTeam founds a team around a captain. The caller must control the
// captain token, the captain must be unrostered, and the creation stake is
// pulled through a prior allowance sized to the current price.
func (a *App) CreateTeam(ctx context.Context, caller models.Address, captainID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.requireController(caller, captainID); err != nil {
		return 0, err
	}
	if teamID, ok := a.playerTeam[captainID]; ok {
		return 0, fmt.Errorf("player %d already on team %d: %w", captainID, teamID, models.ErrStateConflict)
	}

	teamID := a.nextTeamID
	team := &models.Team{ID: teamID, CreationStakePaid: a.creationPrice}
	team.Members[0] = captainID

	if err := a.ledger.TransferFrom(a.addr, caller, a.addr, a.creationPrice); err != nil {
		return 0, fmt.Errorf("collect team creation stake: %w", err)
	}

	a.nextTeamID++
	a.teams[teamID] = team
	a.playerTeam[captainID] = teamID
	delete(a.applications, captainID)

	a.logger.Info().
		Uint64("team_id", teamID).
		Uint64("captain_id", captainID).
		Msg("team created")

	a.publish(ctx, events.TypeTeamCreation, events.TeamCreationPayload{
		TeamID:    teamID,
		CaptainID: captainID,
	})
	return teamID, nil
}

// ApplyForTeam queues a player's application. One pending application per
// player, and the roster must have room when the application is queued.
func (a *App) ApplyForTeam(ctx context.Context, caller models.Address, playerID, teamID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireController(caller, playerID); err != nil {
		return err
	}
	if onTeam, ok := a.playerTeam[playerID]; ok {
		return fmt.Errorf("player %d already on team %d: %w", playerID, onTeam, models.ErrStateConflict)
	}
	if pending, ok := a.applications[playerID]; ok {
		return fmt.Errorf("player %d already applied to team %d: %w", playerID, pending, models.ErrStateConflict)
	}
	if team.FirstOpenSlot() < 0 {
		return fmt.Errorf("team %d roster full: %w", teamID, models.ErrCapacity)
	}

	team.Applications = append(team.Applications, playerID)
	a.applications[playerID] = teamID

	a.publish(ctx, events.TypePlayerApplication, events.PlayerApplicationPayload{
		TeamID:   teamID,
		PlayerID: playerID,
	})
	return nil
}

// ValidateApplication accepts an applicant onto the roster. Only whoever
// controls the captain may validate, and capacity is re-checked here because
// the roster may have filled since the application was queued.
func (a *App) ValidateApplication(ctx context.Context, caller models.Address, playerID, teamID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireCaptain(caller, team); err != nil {
		return err
	}
	if a.applications[playerID] != teamID {
		return fmt.Errorf("player %d has no application to team %d: %w", playerID, teamID, models.ErrNotFound)
	}
	slot := team.FirstOpenSlot()
	if slot < 0 {
		return fmt.Errorf("team %d roster full: %w", teamID, models.ErrCapacity)
	}

	team.Members[slot] = playerID
	a.playerTeam[playerID] = teamID
	a.dropApplicationLocked(team, playerID)

	a.publish(ctx, events.TypeAppValidated, events.ApplicationValidatedPayload{
		TeamID:   teamID,
		PlayerID: playerID,
		Position: slot,
	})
	return nil
}

// CancelApplication lets the applicant's controller withdraw a pending
// application.
func (a *App) CancelApplication(ctx context.Context, caller models.Address, playerID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	teamID, ok := a.applications[playerID]
	if !ok {
		return fmt.Errorf("player %d has no pending application: %w", playerID, models.ErrNotFound)
	}
	if err := a.requireController(caller, playerID); err != nil {
		return err
	}

	a.dropApplicationLocked(a.teams[teamID], playerID)
	a.publish(ctx, events.TypeAppCanceled, events.ApplicationCanceledPayload{
		TeamID:   teamID,
		PlayerID: playerID,
	})
	return nil
}

// ClearApplications empties a team's application queue. Captain only.
func (a *App) ClearApplications(ctx context.Context, caller models.Address, teamID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireCaptain(caller, team); err != nil {
		return err
	}

	for _, playerID := range team.Applications {
		delete(a.applications, playerID)
	}
	team.Applications = nil

	a.publish(ctx, events.TypeAppsCleared, events.ApplicationsClearedPayload{TeamID: teamID})
	return nil
}

// ReleasePlayer vacates a roster slot. Captain only, and the captain's own
// slot can never be released this way.
func (a *App) ReleasePlayer(ctx context.Context, caller models.Address, teamID, playerID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireCaptain(caller, team); err != nil {
		return err
	}
	if playerID == team.Captain() {
		return fmt.Errorf("captain %d cannot be released: %w", playerID, models.ErrStateConflict)
	}
	slot := team.SlotOf(playerID)
	if slot < 0 {
		return fmt.Errorf("player %d not on team %d: %w", playerID, teamID, models.ErrNotFound)
	}

	team.Members[slot] = 0
	delete(a.playerTeam, playerID)

	a.publish(ctx, events.TypePlayerReleased, events.PlayerReleasedPayload{
		TeamID:   teamID,
		PlayerID: playerID,
	})
	return nil
}

// PayReleaseClause buys a rostered non-captain player out of their team. The
// caller must control the player and have approved the full release price,
// which splits 97.5% into the team treasury and 2.5% to the protocol.
func (a *App) PayReleaseClause(ctx context.Context, caller models.Address, playerID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	teamID, ok := a.playerTeam[playerID]
	if !ok {
		return fmt.Errorf("player %d not rostered: %w", playerID, models.ErrNotFound)
	}
	team := a.teams[teamID]
	if playerID == team.Captain() {
		return fmt.Errorf("captain %d has no release clause: %w", playerID, models.ErrStateConflict)
	}
	if err := a.requireController(caller, playerID); err != nil {
		return err
	}

	if err := a.ledger.TransferFrom(a.addr, caller, a.addr, a.releasePrice); err != nil {
		return fmt.Errorf("collect release clause: %w", err)
	}

	fee := a.releasePrice * protocolBasis / basisPoints
	team.Treasury += a.releasePrice - fee
	a.fees += fee

	slot := team.SlotOf(playerID)
	team.Members[slot] = 0
	delete(a.playerTeam, playerID)

	a.logger.Info().
		Uint64("team_id", teamID).
		Uint64("player_id", playerID).
		Msg("release clause paid")

	a.publish(ctx, events.TypePlayerReleased, events.PlayerReleasedPayload{
		TeamID:   teamID,
		PlayerID: playerID,
	})
	return nil
}

// RemoveTeam disbands a team, refunding the creation stake plus whatever sits
// in the treasury to the captain's controller. Captain only, and only while
// the team is idle: disbanding mid-lifecycle would strand the escrowed
// stakes of both sides.
func (a *App) RemoveTeam(ctx context.Context, caller models.Address, teamID uint64) error {
	if matches := a.matchStatus(); matches != nil {
		if status := matches.TeamStatus(teamID); status != models.TeamIdle {
			return fmt.Errorf("team %d is %s in the match lifecycle: %w", teamID, status, models.ErrStateConflict)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireCaptain(caller, team); err != nil {
		return err
	}

	refund := team.CreationStakePaid + team.Treasury
	if refund > 0 {
		if err := a.ledger.Transfer(a.addr, caller, refund); err != nil {
			return fmt.Errorf("refund team %d: %w", teamID, err)
		}
	}

	for _, playerID := range team.Applications {
		delete(a.applications, playerID)
	}
	for _, memberID := range team.Members {
		if memberID != 0 {
			delete(a.playerTeam, memberID)
		}
	}
	delete(a.teams, teamID)

	a.logger.Info().Uint64("team_id", teamID).Msg("team removed")
	a.publish(ctx, events.TypeTeamRemoval, events.TeamRemovalPayload{TeamID: teamID})
	return nil
}

// WithdrawTreasury drains a team's treasury to the captain's controller.
func (a *App) WithdrawTreasury(ctx context.Context, caller models.Address, teamID uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	team, ok := a.teams[teamID]
	if !ok {
		return 0, fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	if err := a.requireCaptain(caller, team); err != nil {
		return 0, err
	}
	amount := team.Treasury
	if amount == 0 {
		return 0, nil
	}
	team.Treasury = 0
	if err := a.ledger.Transfer(a.addr, caller, amount); err != nil {
		team.Treasury = amount
		return 0, fmt.Errorf("withdraw treasury: %w", err)
	}
	return amount, nil
}

// SetTeamCreationPrice changes the creation stake for subsequent teams only.
func (a *App) SetTeamCreationPrice(ctx context.Context, caller models.Address, price uint64) error {
	return a.setPrice(ctx, caller, "teamCreationPrice", price, &a.creationPrice)
}

// SetReleasePrice changes the release clause for subsequent buyouts only.
func (a *App) SetReleasePrice(ctx context.Context, caller models.Address, price uint64) error {
	return a.setPrice(ctx, caller, "releasePrice", price, &a.releasePrice)
}

func (a *App) setPrice(ctx context.Context, caller models.Address, name string, price uint64, dst *uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	*dst = price
	a.publish(ctx, events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: name,
		Values:    map[string]uint64{"price": price},
	})
	return nil
}

// WithdrawFees sends accrued protocol fees to the contract owner.
func (a *App) WithdrawFees(ctx context.Context, caller models.Address) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return 0, fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	amount := a.fees
	if amount == 0 {
		return 0, nil
	}
	a.fees = 0
	if err := a.ledger.Transfer(a.addr, a.owner, amount); err != nil {
		a.fees = amount
		return 0, fmt.Errorf("withdraw protocol fees: %w", err)
	}
	return amount, nil
}

// Team returns a copy of the team's state.
func (a *App) Team(teamID uint64) (models.Team, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	team, ok := a.teams[teamID]
	if !ok {
		return models.Team{}, fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	out := *team
	out.Applications = append([]uint64(nil), team.Applications...)
	return out, nil
}

// TeamOf returns the team a player is rostered on, if any.
func (a *App) TeamOf(playerID uint64) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	teamID, ok := a.playerTeam[playerID]
	return teamID, ok
}

// IsMember reports whether the player occupies a slot on the team.
func (a *App) IsMember(teamID, playerID uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playerTeam[playerID] == teamID && playerID != 0
}

// AuthorizeCaptain errors unless the caller controls the team's captain.
// Other modules use this for captain-gated operations of their own.
func (a *App) AuthorizeCaptain(caller models.Address, teamID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	team, ok := a.teams[teamID]
	if !ok {
		return fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	return a.requireCaptain(caller, team)
}

// CaptainController resolves the address currently controlling the team's
// captain. Settlement pays out to this address.
func (a *App) CaptainController(teamID uint64) (models.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	team, ok := a.teams[teamID]
	if !ok {
		return models.ZeroAddress, fmt.Errorf("team %d: %w", teamID, models.ErrNotFound)
	}
	return a.resolver.EffectiveOwner(team.Captain())
}

// requireController errors unless caller is the player's effective owner. A
// raw owner locked out by a running loan gets a distinct message.
func (a *App) requireController(caller models.Address, playerID uint64) error {
	eff, err := a.resolver.EffectiveOwner(playerID)
	if err != nil {
		return fmt.Errorf("resolve player %d: %w", playerID, err)
	}
	if caller == eff {
		return nil
	}
	if raw, rerr := a.registry.OwnerOf(playerID); rerr == nil && caller == raw {
		return fmt.Errorf("player %d controlled by borrower for the loan term: %w", playerID, models.ErrNotAuthorized)
	}
	return fmt.Errorf("caller %s does not control player %d: %w", caller, playerID, models.ErrNotAuthorized)
}

func (a *App) requireCaptain(caller models.Address, team *models.Team) error {
	if err := a.requireController(caller, team.Captain()); err != nil {
		return fmt.Errorf("team %d captain check: %w", team.ID, err)
	}
	return nil
}

func (a *App) dropApplicationLocked(team *models.Team, playerID uint64) {
	delete(a.applications, playerID)
	if team == nil {
		return
	}
	for i, id := range team.Applications {
		if id == playerID {
			team.Applications = append(team.Applications[:i], team.Applications[i+1:]...)
			break
		}
	}
}

func (a *App) publish(ctx context.Context, eventType string, payload any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, events.NewEvent(eventType, a.blocks.CurrentBlock(), payload)); err != nil {
		a.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event")
	}
}
