package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

// EventBus publishes JSON encoded domain events.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// NATSConfig holds connection settings for the NATS publisher.
type NATSConfig struct {
	URL      string
	NKeySeed string
}

type watermillBus struct {
	publisher message.Publisher
	logger    *slog.Logger
}

var _ EventBus = (*watermillBus)(nil)

// New wraps any watermill publisher.
func New(publisher message.Publisher, logger *slog.Logger) EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &watermillBus{publisher: publisher, logger: logger}
}

// NewNATS connects a watermill NATS publisher (core NATS, no JetStream).
func NewNATS(cfg NATSConfig, logger *slog.Logger) (EventBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	options := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.Timeout(30 * time.Second),
		nats.ReconnectWait(1 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				logger.Error("NATS subscription error", attr.String("subject", s.Subject), attr.Error(err))
				return
			}
			logger.Error("NATS connection error", attr.Error(err))
		}),
	}

	if cfg.NKeySeed != "" {
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:         cfg.URL,
			NatsOptions: options,
			Marshaler:   &wmnats.NATSMarshaler{},
			JetStream: wmnats.JetStreamConfig{
				Disabled: true,
			},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Watermill NATS publisher: %w", err)
	}

	return New(publisher, logger), nil
}

// NewInProcess returns a bus backed by a watermill gochannel. The channel is
// returned so callers can subscribe.
func NewInProcess(logger *slog.Logger) (EventBus, *gochannel.GoChannel) {
	if logger == nil {
		logger = slog.Default()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewSlogLogger(logger))
	return New(ch, logger), ch
}

func nkeyOption(seed string) (nats.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}
	return nats.Nkey(pub, func(nonce []byte) ([]byte, error) {
		return kp.Sign(nonce)
	}), nil
}

// Publish marshals payload and publishes it with the request correlation ID.
func (b *watermillBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	msg.Metadata.Set("topic", topic)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	if err := b.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	b.logger.DebugContext(ctx, "Event published",
		attr.String("topic", topic),
		attr.String("message_id", msg.UUID),
	)
	return nil
}

func (b *watermillBus) Close() error {
	return b.publisher.Close()
}
