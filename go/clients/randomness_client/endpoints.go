package randomness_client

// drand League of Entropy mainnet HTTP API.
const (
	BaseURL = "https://api.drand.sh"

	LatestEndpoint = "/public/latest"
	RoundEndpoint  = "/public/%d"
	InfoEndpoint   = "/info"
)
