package randomness_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatestRound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, LatestEndpoint, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"round":4242,"randomness":"deadbeefcafebabe00112233445566778899aabbccddeeff0011223344556677"}`))
	}))
	defer server.Close()

	client := NewBeaconClient(server.URL)
	round, err := client.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(4242), round.Round)

	word, err := client.Random(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeefcafebabe), word)
}

func TestBeaconErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "round not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewBeaconClient(server.URL)
	_, err := client.GetRound(context.Background(), 99)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestRandomWordRejectsShortOutput(t *testing.T) {
	_, err := randomWord(Round{Round: 1, Randomness: "abcd"})
	require.Error(t, err)

	_, err = randomWord(Round{Round: 1, Randomness: "not-hex"})
	require.Error(t, err)
}
