package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service exposes league events over WebSocket. It wires the JetStream
// consumer to the connection manager and serves the subscription endpoint.
type Service struct {
	manager  *ConnectionManager
	consumer *EventConsumer

	cancel context.CancelFunc
}

type ServiceConfig struct {
	Connection ConnectionConfig
	Consumer   EventConsumerConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Connection: DefaultConnectionConfig(),
		Consumer:   DefaultEventConsumerConfig(),
	}
}

func NewService(config ServiceConfig) (*Service, error) {
	manager := NewConnectionManager(config.Connection)

	consumer, err := NewEventConsumer(config.Consumer, manager)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		manager:  manager,
		consumer: consumer,
	}, nil
}

// Start launches the broadcast loop and the JetStream consumer.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.manager.Start(ctx)

	if err := s.consumer.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start event consumer: %w", err)
	}

	log.Info().Msg("gateway service started")
	return nil
}

// Stop shuts the service down.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.consumer.Close()
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes attaches the gateway endpoints to the given mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/gateway/stats", s.handleStats)
}

// handleWebSocket upgrades the request to a WebSocket subscription. The
// optional "events" query parameter selects a comma-separated list of event
// types; absent means all events.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var eventTypes []string
	if raw := r.URL.Query().Get("events"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				eventTypes = append(eventTypes, trimmed)
			}
		}
	}

	if err := s.manager.UpgradeConnection(w, r, eventTypes); err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to establish WebSocket connection", http.StatusInternalServerError)
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.manager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode gateway stats")
	}
}
