package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// EventConsumerConfig configures the JetStream consumer that feeds the
// WebSocket fan-out.
type EventConsumerConfig struct {
	NATSUrl       string
	StreamName    string
	ConsumerName  string
	FilterSubject string
	MaxDeliver    int
	AckWait       time.Duration
}

func DefaultEventConsumerConfig() EventConsumerConfig {
	return EventConsumerConfig{
		NATSUrl:       nats.DefaultURL,
		StreamName:    "LEAGUE_EVENTS",
		ConsumerName:  "gateway-consumer",
		FilterSubject: "league.events.>",
		MaxDeliver:    3,
		AckWait:       30 * time.Second,
	}
}

// EventConsumer reads league events from JetStream and hands them to the
// connection manager for broadcast.
type EventConsumer struct {
	config   EventConsumerConfig
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	manager  *ConnectionManager
}

func NewEventConsumer(config EventConsumerConfig, manager *ConnectionManager) (*EventConsumer, error) {
	nc, err := nats.Connect(config.NATSUrl,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("gateway consumer disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("gateway consumer reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &EventConsumer{
		config:  config,
		nc:      nc,
		js:      js,
		manager: manager,
	}, nil
}

// Start ensures the durable consumer exists and begins consuming.
func (ec *EventConsumer) Start(ctx context.Context) error {
	if err := ec.ensureConsumer(ctx); err != nil {
		return fmt.Errorf("failed to ensure consumer: %w", err)
	}

	cc, err := ec.consumer.Consume(ec.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Info().
		Str("stream", ec.config.StreamName).
		Str("consumer", ec.config.ConsumerName).
		Str("filter", ec.config.FilterSubject).
		Msg("gateway event consumer started")

	go func() {
		<-ctx.Done()
		cc.Stop()
		log.Info().Msg("gateway event consumer stopped")
	}()

	return nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("failed to get stream %s: %w", ec.config.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       ec.config.ConsumerName,
		FilterSubject: ec.config.FilterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create or update consumer: %w", err)
	}

	ec.consumer = consumer
	return nil
}

type eventEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Block     uint64          `json:"block"`
	Payload   json.RawMessage `json:"payload"`
}

func (ec *EventConsumer) handleMessage(msg jetstream.Msg) {
	var env eventEnvelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		log.Error().
			Err(err).
			Str("subject", msg.Subject()).
			Msg("failed to unmarshal event envelope, terminating message")
		msg.Term()
		return
	}

	ec.manager.Broadcast(&LeagueEvent{
		Type:    env.EventType,
		Block:   env.Block,
		Payload: env.Payload,
	})

	if err := msg.Ack(); err != nil {
		log.Error().
			Err(err).
			Str("event_id", env.EventID).
			Msg("failed to ack message")
		return
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("event_type", env.EventType).
		Uint64("block", env.Block).
		Msg("event relayed to WebSocket clients")
}

// Close shuts down the NATS connection.
func (ec *EventConsumer) Close() {
	if ec.nc != nil {
		ec.nc.Close()
	}
}
