package events

import "github.com/google/uuid"

// Event payload types published by the league contracts. Payloads carry
// entity ids and block heights only; consumers resolve details themselves.

// Event type names used as subject suffixes.
const (
	TypeRequestedPlayer    = "RequestedPlayer"
	TypePlayerGenerated    = "PlayerGenerated"
	TypeTeamCreation       = "TeamCreation"
	TypeTeamRemoval        = "TeamRemoval"
	TypePlayerApplication  = "PlayerApplication"
	TypeAppValidated       = "ApplicationValidated"
	TypeAppCanceled        = "ApplicationCanceled"
	TypeAppsCleared        = "ApplicationsCleared"
	TypePlayerReleased     = "PlayerReleased"
	TypeTeamSignedUp       = "TeamSignedUp"
	TypeSignUpCanceled     = "SignUpCanceled"
	TypeTeamChallenged     = "TeamChallenged"
	TypeChallengeDeclined  = "ChallengeDeclined"
	TypeGameRequested      = "GameRequested"
	TypeGameScheduled      = "GameScheduled"
	TypeGameFinished       = "GameFinished"
	TypePlayerSignedUp     = "PlayerSignedUp"
	TypeListedForLoan      = "ListingPlayerForLoan"
	TypeListedForTransfer  = "ListingPlayerForTransfer"
	TypeUnlistedPlayer     = "UnlistingPlayer"
	TypeLoanPlayer         = "LoanPlayer"
	TypeTransferPlayer     = "TransferPlayer"
	TypeTokenClaimed       = "TokenClaimed"
	TypeConfigUpdate       = "ConfigUpdate"
)

// RequestedPlayerPayload is emitted when a mint is requested.
type RequestedPlayerPayload struct {
	TokenID   uint64    `json:"token_id"`
	RequestID uuid.UUID `json:"request_id"`
	Minter    string    `json:"minter"`
}

// PlayerGeneratedPayload is emitted when a token's attributes are fixed.
type PlayerGeneratedPayload struct {
	TokenID        uint64 `json:"token_id"`
	AttributesHash uint64 `json:"attributes_hash"`
}

// TeamCreationPayload is emitted when a team is created.
type TeamCreationPayload struct {
	TeamID    uint64 `json:"team_id"`
	CaptainID uint64 `json:"captain_id"`
}

// TeamRemovalPayload is emitted when a team disbands.
type TeamRemovalPayload struct {
	TeamID uint64 `json:"team_id"`
}

// PlayerApplicationPayload is emitted when a player applies to a team.
type PlayerApplicationPayload struct {
	TeamID   uint64 `json:"team_id"`
	PlayerID uint64 `json:"player_id"`
}

// ApplicationValidatedPayload is emitted when a captain accepts an applicant.
type ApplicationValidatedPayload struct {
	TeamID   uint64 `json:"team_id"`
	PlayerID uint64 `json:"player_id"`
	Position int    `json:"position"`
}

// ApplicationCanceledPayload is emitted when an applicant withdraws.
type ApplicationCanceledPayload struct {
	TeamID   uint64 `json:"team_id"`
	PlayerID uint64 `json:"player_id"`
}

// ApplicationsClearedPayload is emitted when a captain empties the queue.
type ApplicationsClearedPayload struct {
	TeamID uint64 `json:"team_id"`
}

// PlayerReleasedPayload is emitted when a roster slot is vacated.
type PlayerReleasedPayload struct {
	TeamID   uint64 `json:"team_id"`
	PlayerID uint64 `json:"player_id"`
}

// TeamSignedUpPayload is emitted when a team enters the match queue.
type TeamSignedUpPayload struct {
	TeamID uint64 `json:"team_id"`
	Layout uint8  `json:"layout"`
	Stake  uint64 `json:"stake"`
}

// SignUpCanceledPayload is emitted when a sign-up is refunded.
type SignUpCanceledPayload struct {
	TeamID uint64 `json:"team_id"`
}

// TeamChallengedPayload is emitted when a challenge opens.
type TeamChallengedPayload struct {
	ChallengingTeamID uint64 `json:"challenging_team_id"`
	ChallengedTeamID  uint64 `json:"challenged_team_id"`
	DeadlineBlock     uint64 `json:"deadline_block"`
}

// ChallengeDeclinedPayload is emitted when the challenged side pays out.
type ChallengeDeclinedPayload struct {
	ChallengingTeamID uint64 `json:"challenging_team_id"`
	ChallengedTeamID  uint64 `json:"challenged_team_id"`
}

// GameRequestedPayload is emitted when a match is created and its scheduling
// randomness requested.
type GameRequestedPayload struct {
	GameID     uint64    `json:"game_id"`
	FirstTeam  uint64    `json:"first_team"`
	SecondTeam uint64    `json:"second_team"`
	RequestID  uuid.UUID `json:"request_id"`
}

// GameScheduledPayload is emitted when the oracle fixes the kickoff block.
type GameScheduledPayload struct {
	GameID         uint64 `json:"game_id"`
	ScheduledBlock uint64 `json:"scheduled_block"`
}

// GameFinishedPayload is emitted on settlement.
type GameFinishedPayload struct {
	GameID uint64 `json:"game_id"`
	Result uint8  `json:"result"`
}

// PlayerSignedUpPayload is emitted when a player takes a match position.
type PlayerSignedUpPayload struct {
	GameID   uint64 `json:"game_id"`
	PlayerID uint64 `json:"player_id"`
	Position uint8  `json:"position"`
}

// ListingPlayerForLoanPayload is emitted when a loan listing opens.
type ListingPlayerForLoanPayload struct {
	TokenID  uint64 `json:"token_id"`
	Duration uint64 `json:"duration"`
	Price    uint64 `json:"price"`
}

// ListingPlayerForTransferPayload is emitted when a sale listing opens.
type ListingPlayerForTransferPayload struct {
	TokenID uint64 `json:"token_id"`
	Price   uint64 `json:"price"`
}

// UnlistingPlayerPayload is emitted when a listing closes.
type UnlistingPlayerPayload struct {
	TokenID uint64 `json:"token_id"`
}

// LoanPlayerPayload is emitted when a loan starts.
type LoanPlayerPayload struct {
	TokenID  uint64 `json:"token_id"`
	Borrower string `json:"borrower"`
	Term     uint64 `json:"term"`
}

// TransferPlayerPayload is emitted when a listed player is bought.
type TransferPlayerPayload struct {
	TokenID uint64 `json:"token_id"`
	Buyer   string `json:"buyer"`
	Price   uint64 `json:"price"`
}

// TokenClaimedPayload is emitted when a token's KICK grant is claimed.
type TokenClaimedPayload struct {
	TokenID uint64 `json:"token_id"`
}

// ConfigUpdatePayload is emitted by every owner-gated setter. Parameter names
// follow the setter that produced them.
type ConfigUpdatePayload struct {
	Parameter string            `json:"parameter"`
	Values    map[string]uint64 `json:"values"`
}
