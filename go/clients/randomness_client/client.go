package randomness_client

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BeaconClient fetches verifiable randomness rounds from a drand HTTP
// endpoint. It satisfies the oracle operator's random source.
type BeaconClient struct {
	baseURL string
	client  *http.Client
}

// Round is one beacon output.
type Round struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
	Signature  string `json:"signature"`
}

func NewBeaconClient(baseURL string) *BeaconClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &BeaconClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *BeaconClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Latest fetches the most recent beacon round.
func (c *BeaconClient) Latest(ctx context.Context) (Round, error) {
	return c.fetchRound(ctx, LatestEndpoint)
}

// GetRound fetches a specific beacon round.
func (c *BeaconClient) GetRound(ctx context.Context, round uint64) (Round, error) {
	return c.fetchRound(ctx, fmt.Sprintf(RoundEndpoint, round))
}

// Random returns the latest beacon output folded into a single word.
func (c *BeaconClient) Random(ctx context.Context) (uint64, error) {
	round, err := c.Latest(ctx)
	if err != nil {
		return 0, err
	}
	return randomWord(round)
}

func (c *BeaconClient) fetchRound(ctx context.Context, endpoint string) (Round, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return Round{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Round{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Round{}, fmt.Errorf("beacon returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var round Round
	if err := json.NewDecoder(resp.Body).Decode(&round); err != nil {
		return Round{}, fmt.Errorf("failed to decode beacon round: %w", err)
	}
	return round, nil
}

// randomWord folds the hex-encoded beacon output into its leading 8 bytes.
func randomWord(round Round) (uint64, error) {
	raw, err := hex.DecodeString(round.Randomness)
	if err != nil {
		return 0, fmt.Errorf("failed to decode randomness for round %d: %w", round.Round, err)
	}
	if len(raw) < 8 {
		return 0, fmt.Errorf("round %d randomness too short: %d bytes", round.Round, len(raw))
	}
	return binary.BigEndian.Uint64(raw[:8]), nil
}
