package models

// TeamStatus is the per-team position in the match lifecycle.
type TeamStatus uint8

const (
	TeamIdle TeamStatus = iota
	TeamSignedUp
	TeamChallenging
	TeamChallenged
	TeamInGame
)

func (s TeamStatus) String() string {
	switch s {
	case TeamIdle:
		return "IDLE"
	case TeamSignedUp:
		return "SIGNED_UP"
	case TeamChallenging:
		return "CHALLENGING"
	case TeamChallenged:
		return "CHALLENGED"
	case TeamInGame:
		return "IN_GAME"
	default:
		return "UNKNOWN"
	}
}

// SignUp is a team's match-entry record. It exists from signUpTeam until the
// game settles or the sign-up is cancelled.
type SignUp struct {
	Status TeamStatus `json:"status"`
	GameID uint64     `json:"game_id"`
	Layout uint8      `json:"layout"`
	Stake  uint64     `json:"stake"`
}

// Challenge is an open challenge between two signed-up teams. The challenged
// side may decline until DeadlineBlock; past it, either side may request the
// game.
type Challenge struct {
	ChallengerTeamID uint64 `json:"challenger_team_id"`
	ChallengedTeamID uint64 `json:"challenged_team_id"`
	DeadlineBlock    uint64 `json:"deadline_block"`
}

// GameStatus tracks a match through scheduling and settlement.
type GameStatus uint8

const (
	GameRequested GameStatus = iota
	GameScheduled
	GameFinished
)

// GameResult is the settlement outcome of a match.
type GameResult uint8

const (
	ResultDraw GameResult = iota
	ResultHomeWin
	ResultAwayWin
)

// Game is a match between two teams. The home side is the challenger. The
// scheduled block is unknown until the randomness request backing the match
// is fulfilled.
type Game struct {
	ID             uint64     `json:"id"`
	HomeTeamID     uint64     `json:"home_team_id"`
	AwayTeamID     uint64     `json:"away_team_id"`
	ScheduledBlock uint64     `json:"scheduled_block"`
	Status         GameStatus `json:"status"`
	StakePot       uint64     `json:"stake_pot"`
	Result         GameResult `json:"result"`
}

// PositionSignUp records a player occupying one position of one match.
// RateNumerator/RateDenominator stay zero until the rating pass runs.
type PositionSignUp struct {
	PlayerID        uint64 `json:"player_id"`
	BlockSigned     uint64 `json:"block_signed"`
	RateNumerator   uint64 `json:"rate_numerator"`
	RateDenominator uint64 `json:"rate_denominator"`
}

// GameRecord is the archived view of a settled match.
type GameRecord struct {
	GameID         uint64     `json:"game_id"`
	HomeTeamID     uint64     `json:"home_team_id"`
	AwayTeamID     uint64     `json:"away_team_id"`
	Result         GameResult `json:"result"`
	StakePot       uint64     `json:"stake_pot"`
	ScheduledBlock uint64     `json:"scheduled_block"`
	SettledBlock   uint64     `json:"settled_block"`
}
