package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/0xBumstead/FarmersLeague/go/internal/chain"
	"github.com/0xBumstead/FarmersLeague/go/internal/claimkick"
	"github.com/0xBumstead/FarmersLeague/go/internal/events"
	"github.com/0xBumstead/FarmersLeague/go/internal/footballer"
	"github.com/0xBumstead/FarmersLeague/go/internal/kick"
	"github.com/0xBumstead/FarmersLeague/go/internal/leaguegame"
	"github.com/0xBumstead/FarmersLeague/go/internal/leagueteam"
	"github.com/0xBumstead/FarmersLeague/go/internal/models"
	"github.com/0xBumstead/FarmersLeague/go/internal/oracle"
	"github.com/0xBumstead/FarmersLeague/go/internal/playerloan"
	"github.com/0xBumstead/FarmersLeague/go/internal/playerrate"
	"github.com/0xBumstead/FarmersLeague/go/internal/playertransfer"
)

// Contract-style identities for the league components. Escrowed funds are
// held under these ledger addresses.
const (
	AddrFootballer models.Address = "league:player-token"
	AddrLoan       models.Address = "league:player-loan"
	AddrTransfer   models.Address = "league:player-transfer"
	AddrTeam       models.Address = "league:team"
	AddrGame       models.Address = "league:game"
	AddrClaim      models.Address = "league:claim"
)

// claimReserveTokens is how many one-time grants the claim reserve is seeded
// for at deployment.
const claimReserveTokens = 10_000

type Services struct {
	Token   *kick.Token
	Bridge  *oracle.Bridge
	Counter *chain.Counter
	Players *footballer.App
	Loans   *playerloan.App
	Sales   *playertransfer.App
	Teams   *leagueteam.App
	Ratings *playerrate.Engine
	Games   *leaguegame.App
	Claims  *claimkick.App
}

// setupServices wires the dependency chain: ledger and bridge first, then
// the token registry, the markets on top of it, the team directory, and
// finally the match engine which binds back to the game app for lookups.
func setupServices(ctx context.Context, config *Config, publisher events.Publisher, archiver leaguegame.Archiver, logger zerolog.Logger) (*Services, error) {
	owner := config.ownerAddress()
	oracleID := config.oracleAddress()
	if owner == models.ZeroAddress || oracleID == models.ZeroAddress {
		return nil, fmt.Errorf("league owner and oracle addresses must be configured")
	}

	token := kick.NewToken(owner)
	bridge := oracle.NewBridge(owner, oracleID, config.League.OracleFee, logger)
	if config.League.OracleReserve > 0 {
		bridge.Fund(config.League.OracleReserve)
	}
	if config.League.OracleFee > bridge.Reserve() {
		return nil, fmt.Errorf("oracle reserve %d cannot cover a single fee of %d: set oracle_reserve", bridge.Reserve(), config.League.OracleFee)
	}
	counter := chain.NewCounter(config.League.ChainStart)

	players := footballer.NewApp(footballer.Config{
		Owner:   owner,
		Addr:    AddrFootballer,
		MintFee: config.League.MintFee,
	}, token, bridge, counter, publisher, logger)

	loans := playerloan.NewApp(owner, AddrLoan, players, token, counter, publisher, logger)
	sales := playertransfer.NewApp(owner, AddrTransfer, players, token, counter, publisher, logger)

	teams := leagueteam.NewApp(owner, AddrTeam, loans, players, token, counter, publisher, logger)
	if config.League.TeamPrice != 0 {
		if err := teams.SetTeamCreationPrice(ctx, owner, config.League.TeamPrice); err != nil {
			return nil, fmt.Errorf("failed to set team creation price: %w", err)
		}
	}
	if config.League.ReleasePrice != 0 {
		if err := teams.SetReleasePrice(ctx, owner, config.League.ReleasePrice); err != nil {
			return nil, fmt.Errorf("failed to set release price: %w", err)
		}
	}

	ratings := playerrate.NewEngine(owner, loans, teams, counter, publisher, logger)

	games := leaguegame.NewApp(owner, AddrGame, teams, ratings, ratings, bridge, token, counter, publisher, archiver, logger)
	ratings.BindGames(games)
	teams.BindMatches(games)

	claims := claimkick.NewApp(owner, AddrClaim, players, token, counter, publisher, logger)
	if err := token.Transfer(owner, AddrClaim, claimReserveTokens*claimkick.ClaimAmount); err != nil {
		return nil, fmt.Errorf("failed to seed claim reserve: %w", err)
	}

	layouts := config.Layouts
	if len(layouts) == 0 {
		layouts = defaultLayouts()
	}
	for _, layout := range layouts {
		if err := ratings.StoreLayout(owner, layout.ID, layout.Positions); err != nil {
			return nil, fmt.Errorf("failed to store layout %d (%s): %w", layout.ID, layout.Name, err)
		}
	}
	for position, name := range defaultPositionNames() {
		if err := ratings.StorePosition(owner, position, name); err != nil {
			return nil, fmt.Errorf("failed to store position %d: %w", position, err)
		}
	}

	return &Services{
		Token:   token,
		Bridge:  bridge,
		Counter: counter,
		Players: players,
		Loans:   loans,
		Sales:   sales,
		Teams:   teams,
		Ratings: ratings,
		Games:   games,
		Claims:  claims,
	}, nil
}
