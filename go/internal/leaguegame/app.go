package leaguegame

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
)

// Defaults, prices in nano-KICK and windows in blocks.
const (
	DefaultSignUpPrice   = 4 * kick.Unit
	DefaultDeclinePrice  = 1 * kick.Unit
	DefaultWinningBonus  = 2 * kick.Unit
	DefaultChallengeTime = 86_400
	DefaultGameDelayMin  = 43_200
	DefaultGameDelayMax  = 604_800
)

// TeamDirectory is the roster-side surface the match lifecycle needs.
type TeamDirectory interface {
	AuthorizeCaptain(caller models.Address, teamID uint64) error
	CaptainController(teamID uint64) (models.Address, error)
}

// RatingSource is the rating-engine surface settlement depends on. Ratings
// share a common denominator, so sides compare by summed numerators.
type RatingSource interface {
	GameDuration() uint64
	RatingsComputed(gameID uint64) bool
	SideRating(gameID uint64, home bool) (sum uint64, ratedPositions int)
}

// LayoutValidator vets formation codes at sign-up time.
type LayoutValidator interface {
	ValidLayout(layout uint8) bool
}

// Archiver persists finished games. Archiving is best-effort; settlement
// never fails because of it.
type Archiver interface {
	SaveRecord(ctx context.Context, record models.GameRecord) error
}

// App drives the match lifecycle: sign-up, challenge, oracle-scheduled game,
// settlement. Team state lives here as a status machine keyed by team id;
// teams with no entry are idle.
type App struct {
	mu        sync.Mutex
	owner     models.Address
	addr      models.Address
	teams     TeamDirectory
	ratings   RatingSource
	layouts   LayoutValidator
	bridge    *oracle.Bridge
	ledger    kick.Ledger
	blocks    chain.BlockSource
	publisher events.Publisher
	archiver  Archiver
	logger    zerolog.Logger

	signUpPrice   uint64
	declinePrice  uint64
	winningBonus  uint64
	challengeTime uint64
	gameDelayMin  uint64
	gameDelayMax  uint64
	fees          uint64

	signUps    map[uint64]*models.SignUp
	challenges map[uint64]*models.Challenge // keyed by challenging team
	games      map[uint64]*models.Game
	nextGameID uint64
}

func NewApp(owner, addr models.Address, teams TeamDirectory, ratings RatingSource, layouts LayoutValidator, bridge *oracle.Bridge, ledger kick.Ledger, blocks chain.BlockSource, publisher events.Publisher, archiver Archiver, logger zerolog.Logger) *App {
	a := &App{
		owner:         owner,
		addr:          addr,
		teams:         teams,
		ratings:       ratings,
		layouts:       layouts,
		bridge:        bridge,
		ledger:        ledger,
		blocks:        blocks,
		publisher:     publisher,
		archiver:      archiver,
		logger:        logger.With().Str("component", "leaguegame").Logger(),
		signUpPrice:   DefaultSignUpPrice,
		declinePrice:  DefaultDeclinePrice,
		winningBonus:  DefaultWinningBonus,
		challengeTime: DefaultChallengeTime,
		gameDelayMin:  DefaultGameDelayMin,
		gameDelayMax:  DefaultGameDelayMax,
		signUps:       make(map[uint64]*models.SignUp),
		challenges:    make(map[uint64]*models.Challenge),
		games:         make(map[uint64]*models.Game),
		nextGameID:    1,
	}
	bridge.RegisterConsumer(models.PurposeScheduleMatch, a.fulfillSchedule)
	return a
}

// pendingEvent is an event staged under a.mu and published after it unlocks,
// keeping the broker round-trip out of the critical section.
type pendingEvent struct {
	eventType string
	payload   any
}

// flush publishes staged events. Registered as a defer before the lock is
// taken, so it runs after the deferred unlock.
func (a *App) flush(ctx context.Context, pending *[]pendingEvent) {
	for _, e := range *pending {
		a.publish(ctx, e.eventType, e.payload)
	}
}

// SignUpTeam enters an idle team into the match queue with a formation and a
// stake. The stake is pulled through a prior allowance and escrowed here.
func (a *App) SignUpTeam(ctx context.Context, caller models.Address, teamID uint64, layout uint8, stake uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.teams.AuthorizeCaptain(caller, teamID); err != nil {
		return err
	}
	if su, ok := a.signUps[teamID]; ok {
		return fmt.Errorf("team %d is %s: %w", teamID, su.Status, models.ErrStateConflict)
	}
	if !a.layouts.ValidLayout(layout) {
		return fmt.Errorf("layout %d invalid: %w", layout, models.ErrStateConflict)
	}
	if stake < a.signUpPrice {
		return fmt.Errorf("stake %d below sign-up price %d: %w", stake, a.signUpPrice, models.ErrInsufficientFunds)
	}
	if err := a.ledger.TransferFrom(a.addr, caller, a.addr, stake); err != nil {
		return fmt.Errorf("escrow stake: %w", err)
	}

	a.signUps[teamID] = &models.SignUp{Status: models.TeamSignedUp, Layout: layout, Stake: stake}

	pending = append(pending, pendingEvent{events.TypeTeamSignedUp, events.TeamSignedUpPayload{
		TeamID: teamID,
		Layout: layout,
		Stake:  stake,
	}})
	return nil
}

// CancelSignUp refunds the stake and returns the team to idle. The refund
// must be payable in full from the escrow balance or nothing happens.
func (a *App) CancelSignUp(ctx context.Context, caller models.Address, teamID uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.teams.AuthorizeCaptain(caller, teamID); err != nil {
		return err
	}
	su, ok := a.signUps[teamID]
	if !ok || su.Status != models.TeamSignedUp {
		return fmt.Errorf("team %d not in a cancelable sign-up: %w", teamID, models.ErrStateConflict)
	}
	if a.ledger.BalanceOf(a.addr) < su.Stake {
		return fmt.Errorf("escrow cannot cover refund of %d: %w", su.Stake, models.ErrInsufficientFunds)
	}

	delete(a.signUps, teamID)
	if err := a.ledger.Transfer(a.addr, caller, su.Stake); err != nil {
		a.signUps[teamID] = su
		return fmt.Errorf("refund stake: %w", err)
	}

	pending = append(pending, pendingEvent{events.TypeSignUpCanceled, events.SignUpCanceledPayload{TeamID: teamID}})
	return nil
}

// ChallengeTeam opens a challenge between two signed-up teams. The deadline
// gives the challenged side a decline window before a game can be forced.
func (a *App) ChallengeTeam(ctx context.Context, caller models.Address, challengerID, challengedID uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	if challengerID == challengedID {
		return fmt.Errorf("team %d cannot challenge itself: %w", challengerID, models.ErrStateConflict)
	}
	if err := a.teams.AuthorizeCaptain(caller, challengerID); err != nil {
		return err
	}
	for _, teamID := range []uint64{challengerID, challengedID} {
		su, ok := a.signUps[teamID]
		if !ok {
			return fmt.Errorf("team %d not signed up: %w", teamID, models.ErrStateConflict)
		}
		if su.Status != models.TeamSignedUp {
			return fmt.Errorf("team %d is %s: %w", teamID, su.Status, models.ErrStateConflict)
		}
	}

	deadline := a.blocks.CurrentBlock() + a.challengeTime
	a.challenges[challengerID] = &models.Challenge{
		ChallengerTeamID: challengerID,
		ChallengedTeamID: challengedID,
		DeadlineBlock:    deadline,
	}
	a.signUps[challengerID].Status = models.TeamChallenging
	a.signUps[challengedID].Status = models.TeamChallenged

	a.logger.Info().
		Uint64("challenger", challengerID).
		Uint64("challenged", challengedID).
		Uint64("deadline", deadline).
		Msg("challenge opened")

	pending = append(pending, pendingEvent{events.TypeTeamChallenged, events.TeamChallengedPayload{
		ChallengingTeamID: challengerID,
		ChallengedTeamID:  challengedID,
		DeadlineBlock:     deadline,
	}})
	return nil
}

// DeclineChallenge lets the challenged captain pay the decline fee to dissolve
// the challenge. Both teams drop back to signed-up.
func (a *App) DeclineChallenge(ctx context.Context, caller models.Address, challengedID, challengerID uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.teams.AuthorizeCaptain(caller, challengedID); err != nil {
		return err
	}
	challenge, ok := a.challenges[challengerID]
	if !ok || challenge.ChallengedTeamID != challengedID {
		return fmt.Errorf("no challenge %d -> %d: %w", challengerID, challengedID, models.ErrNotFound)
	}
	if err := a.ledger.TransferFrom(a.addr, caller, a.addr, a.declinePrice); err != nil {
		return fmt.Errorf("collect decline fee: %w", err)
	}

	a.fees += a.declinePrice
	delete(a.challenges, challengerID)
	a.signUps[challengerID].Status = models.TeamSignedUp
	a.signUps[challengedID].Status = models.TeamSignedUp

	pending = append(pending, pendingEvent{events.TypeChallengeDeclined, events.ChallengeDeclinedPayload{
		ChallengingTeamID: challengerID,
		ChallengedTeamID:  challengedID,
	}})
	return nil
}

// RequestGame turns an expired, undeclined challenge into a match and asks
// the oracle for a kickoff block. Either captain may force it.
func (a *App) RequestGame(ctx context.Context, caller models.Address, challengerID, challengedID uint64) (uint64, error) {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	challenge, ok := a.challenges[challengerID]
	if !ok || challenge.ChallengedTeamID != challengedID {
		return 0, fmt.Errorf("no challenge %d -> %d: %w", challengerID, challengedID, models.ErrNotFound)
	}
	if err := a.teams.AuthorizeCaptain(caller, challengerID); err != nil {
		if err2 := a.teams.AuthorizeCaptain(caller, challengedID); err2 != nil {
			return 0, err
		}
	}
	if a.blocks.CurrentBlock() <= challenge.DeadlineBlock {
		return 0, fmt.Errorf("challenge open until block %d: %w", challenge.DeadlineBlock, models.ErrTimingWindow)
	}

	gameID := a.nextGameID
	requestID, err := a.bridge.RequestRandomness(ctx, models.PurposeScheduleMatch, gameID)
	if err != nil {
		return 0, fmt.Errorf("request schedule randomness: %w", err)
	}

	a.nextGameID++
	a.games[gameID] = &models.Game{
		ID:         gameID,
		HomeTeamID: challengerID,
		AwayTeamID: challengedID,
		Status:     models.GameRequested,
		StakePot:   a.signUps[challengerID].Stake + a.signUps[challengedID].Stake,
	}
	delete(a.challenges, challengerID)
	for _, teamID := range []uint64{challengerID, challengedID} {
		a.signUps[teamID].Status = models.TeamInGame
		a.signUps[teamID].GameID = gameID
	}

	a.logger.Info().
		Uint64("game_id", gameID).
		Uint64("home", challengerID).
		Uint64("away", challengedID).
		Msg("game requested")

	pending = append(pending, pendingEvent{events.TypeGameRequested, events.GameRequestedPayload{
		GameID:     gameID,
		FirstTeam:  challengerID,
		SecondTeam: challengedID,
		RequestID:  requestID,
	}})
	return gameID, nil
}

// fulfillSchedule receives the oracle word and fixes the kickoff block
// strictly between minDelay and minDelay+maxDelay from now.
func (a *App) fulfillSchedule(ctx context.Context, gameID uint64, random uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	game, ok := a.games[gameID]
	if !ok {
		return fmt.Errorf("game %d: %w", gameID, models.ErrNotFound)
	}
	if game.Status != models.GameRequested {
		return fmt.Errorf("game %d already scheduled: %w", gameID, models.ErrStateConflict)
	}

	game.ScheduledBlock = a.blocks.CurrentBlock() + a.gameDelayMin + random%a.gameDelayMax
	game.Status = models.GameScheduled

	a.logger.Info().
		Uint64("game_id", gameID).
		Uint64("scheduled_block", game.ScheduledBlock).
		Msg("game scheduled")

	pending = append(pending, pendingEvent{events.TypeGameScheduled, events.GameScheduledPayload{
		GameID:         gameID,
		ScheduledBlock: game.ScheduledBlock,
	}})
	return nil
}

// FinishGame settles a played match. The game window must be over, ratings
// must already be computed, and the whole payout must be coverable by the
// escrow balance or the call fails with no state change.
func (a *App) FinishGame(ctx context.Context, gameID uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()

	game, ok := a.games[gameID]
	if !ok {
		return fmt.Errorf("game %d: %w", gameID, models.ErrNotFound)
	}
	if game.Status == models.GameFinished {
		return fmt.Errorf("game %d already finished: %w", gameID, models.ErrStateConflict)
	}
	if game.Status != models.GameScheduled {
		return fmt.Errorf("game %d awaiting schedule: %w", gameID, models.ErrStateConflict)
	}
	endBlock := game.ScheduledBlock + a.ratings.GameDuration()
	if a.blocks.CurrentBlock() < endBlock {
		return fmt.Errorf("game %d playable from block %d: %w", gameID, endBlock, models.ErrTimingWindow)
	}
	if !a.ratings.RatingsComputed(gameID) {
		return fmt.Errorf("game %d ratings not computed: %w", gameID, models.ErrStateConflict)
	}

	homeSum, homeRated := a.ratings.SideRating(gameID, true)
	awaySum, awayRated := a.ratings.SideRating(gameID, false)

	homeController, err := a.teams.CaptainController(game.HomeTeamID)
	if err != nil {
		return fmt.Errorf("resolve home payee: %w", err)
	}
	awayController, err := a.teams.CaptainController(game.AwayTeamID)
	if err != nil {
		return fmt.Errorf("resolve away payee: %w", err)
	}

	type payout struct {
		to     models.Address
		amount uint64
	}
	var payouts []payout
	var result models.GameResult
	switch {
	case homeSum > awaySum:
		result = models.ResultHomeWin
		payouts = append(payouts, payout{homeController, game.StakePot + a.winningBonus*uint64(homeRated)})
	case awaySum > homeSum:
		result = models.ResultAwayWin
		payouts = append(payouts, payout{awayController, game.StakePot + a.winningBonus*uint64(awayRated)})
	default:
		result = models.ResultDraw
		payouts = append(payouts,
			payout{homeController, a.signUps[game.HomeTeamID].Stake + a.winningBonus*uint64(homeRated)},
			payout{awayController, a.signUps[game.AwayTeamID].Stake + a.winningBonus*uint64(awayRated)},
		)
	}

	var total uint64
	for _, p := range payouts {
		total += p.amount
	}
	if a.ledger.BalanceOf(a.addr) < total {
		return fmt.Errorf("escrow %d cannot cover settlement %d: %w", a.ledger.BalanceOf(a.addr), total, models.ErrInsufficientFunds)
	}

	game.Status = models.GameFinished
	game.Result = result
	delete(a.signUps, game.HomeTeamID)
	delete(a.signUps, game.AwayTeamID)

	for _, p := range payouts {
		if err := a.ledger.Transfer(a.addr, p.to, p.amount); err != nil {
			return fmt.Errorf("pay settlement: %w", err)
		}
	}

	a.logger.Info().
		Uint64("game_id", gameID).
		Uint8("result", uint8(result)).
		Uint64("pot", game.StakePot).
		Msg("game finished")

	if a.archiver != nil {
		record := models.GameRecord{
			GameID:         game.ID,
			HomeTeamID:     game.HomeTeamID,
			AwayTeamID:     game.AwayTeamID,
			Result:         result,
			StakePot:       game.StakePot,
			ScheduledBlock: game.ScheduledBlock,
			SettledBlock:   a.blocks.CurrentBlock(),
		}
		if err := a.archiver.SaveRecord(ctx, record); err != nil {
			a.logger.Error().Err(err).Uint64("game_id", gameID).Msg("archive game record")
		}
	}

	pending = append(pending, pendingEvent{events.TypeGameFinished, events.GameFinishedPayload{
		GameID: gameID,
		Result: uint8(result),
	}})
	return nil
}

// TeamStatus reports where a team stands in the lifecycle.
func (a *App) TeamStatus(teamID uint64) models.TeamStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	if su, ok := a.signUps[teamID]; ok {
		return su.Status
	}
	return models.TeamIdle
}

// SignUp returns a team's sign-up entry; ok is false for idle teams.
func (a *App) SignUp(teamID uint64) (models.SignUp, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	su, ok := a.signUps[teamID]
	if !ok {
		return models.SignUp{}, false
	}
	return *su, true
}

// Game returns a copy of a game's state.
func (a *App) Game(gameID uint64) (models.Game, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	game, ok := a.games[gameID]
	if !ok {
		return models.Game{}, fmt.Errorf("game %d: %w", gameID, models.ErrNotFound)
	}
	return *game, nil
}

// Challenge returns the open challenge issued by a team, if any.
func (a *App) Challenge(challengerID uint64) (models.Challenge, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.challenges[challengerID]; ok {
		return *c, true
	}
	return models.Challenge{}, false
}

// TeamLayout reports the formation a team signed up with, for the game it is
// currently in.
func (a *App) TeamLayout(teamID uint64) (uint8, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	su, ok := a.signUps[teamID]
	if !ok {
		return 0, false
	}
	return su.Layout, true
}

// SetChallengeTime adjusts the decline window for subsequent challenges.
func (a *App) SetChallengeTime(ctx context.Context, caller models.Address, blocks uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	a.challengeTime = blocks
	pending = append(pending, pendingEvent{events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: "challengeTime",
		Values:    map[string]uint64{"time": blocks},
	}})
	return nil
}

// SetGameDelay adjusts the scheduling window for subsequent games.
func (a *App) SetGameDelay(ctx context.Context, caller models.Address, minDelay, maxDelay uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	if maxDelay == 0 {
		return fmt.Errorf("max delay must be positive: %w", models.ErrStateConflict)
	}
	a.gameDelayMin = minDelay
	a.gameDelayMax = maxDelay
	pending = append(pending, pendingEvent{events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: "gameDelay",
		Values:    map[string]uint64{"minTime": minDelay, "maxTime": maxDelay},
	}})
	return nil
}

// SetPrices adjusts the sign-up price, decline fee, and winning bonus for
// subsequent transitions.
func (a *App) SetPrices(ctx context.Context, caller models.Address, signUp, decline, bonus uint64) error {
	var pending []pendingEvent
	defer a.flush(ctx, &pending)
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return fmt.Errorf("caller %s is not the owner: %w", caller, models.ErrNotAuthorized)
	}
	a.signUpPrice = signUp
	a.declinePrice = decline
	a.winningBonus = bonus
	pending = append(pending, pendingEvent{events.TypeConfigUpdate, events.ConfigUpdatePayload{
		Parameter: "prices",
		Values:    map[string]uint64{"signUp": signUp, "decline": decline, "bonus": bonus},
	}})
	return nil
}

// WithdrawFees drains decline fees collected so far to the contract owner.
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
		return 0, fmt.Errorf("withdraw decline fees: %w", err)
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
