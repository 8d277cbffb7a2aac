package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/0xBumstead/FarmersLeague/go/internal/models"
)

// Config holds the league deployment parameters loaded from YAML. Zero values
// fall back to the per-package defaults.
type Config struct {
	League struct {
		Owner  string `yaml:"owner"`
		Oracle string `yaml:"oracle"`

		OracleFee     uint64 `yaml:"oracle_fee"`
		OracleReserve uint64 `yaml:"oracle_reserve"`
		MintFee       uint64 `yaml:"mint_fee"`
		TeamPrice     uint64 `yaml:"team_creation_price"`
		ReleasePrice  uint64 `yaml:"release_price"`

		ChainStart    uint64 `yaml:"chain_start"`
		BlockInterval string `yaml:"block_interval"`
	} `yaml:"league"`

	Layouts []LayoutConfig `yaml:"layouts"`
}

// LayoutConfig names one stored formation.
type LayoutConfig struct {
	ID        uint8   `yaml:"id"`
	Name      string  `yaml:"name"`
	Positions []uint8 `yaml:"positions"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) ownerAddress() models.Address {
	return models.Address(getEnv("LEAGUE_OWNER", c.League.Owner))
}

func (c *Config) oracleAddress() models.Address {
	return models.Address(getEnv("LEAGUE_ORACLE", c.League.Oracle))
}

// defaultPositionNames labels the half-position indexes.
func defaultPositionNames() map[uint8]string {
	return map[uint8]string{
		0:  "goalkeeper",
		1:  "right back",
		2:  "right center back",
		3:  "center back",
		4:  "left center back",
		5:  "left back",
		6:  "right midfielder",
		7:  "right center midfielder",
		8:  "center midfielder",
		9:  "left center midfielder",
		10: "left midfielder",
		11: "right forward",
		12: "center forward",
		13: "left forward",
		14: "right winger",
		15: "left winger",
	}
}

// defaultLayouts covers the classic formations when the config file names
// none. Half-positions: 0 keeper, 1-5 defense, 6-10 midfield, 11-15 attack.
func defaultLayouts() []LayoutConfig {
	return []LayoutConfig{
		{ID: 0, Name: "4-4-2", Positions: []uint8{0, 1, 2, 3, 4, 6, 7, 8, 9, 11, 12}},
		{ID: 1, Name: "4-3-3", Positions: []uint8{0, 1, 2, 3, 4, 6, 7, 8, 11, 12, 13}},
		{ID: 2, Name: "3-5-2", Positions: []uint8{0, 1, 2, 3, 6, 7, 8, 9, 10, 11, 12}},
		{ID: 3, Name: "5-4-1", Positions: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 11}},
		{ID: 4, Name: "4-5-1", Positions: []uint8{0, 1, 2, 3, 4, 6, 7, 8, 9, 10, 11}},
	}
}
