package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"home-dispatch/internal/home"
)

// Broker is the minimal surface the publisher needs. It keeps tests free
// of a live broker.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
	Close()
}

type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

// Publisher mirrors device state and dispatch events onto MQTT topics:
// <prefix>/state (retained snapshot) and <prefix>/events.
type Publisher struct {
	broker Broker
	prefix string
}

func NewPublisher(broker Broker, prefix string) *Publisher {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "home-dispatch"
	}
	return &Publisher{broker: broker, prefix: prefix}
}

// Connect dials the broker and returns a publisher bound to it.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	broker, err := dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewPublisher(broker, cfg.TopicPrefix), nil
}

func (p *Publisher) StateTopic() string { return p.prefix + "/state" }
func (p *Publisher) EventTopic() string { return p.prefix + "/events" }

type statePayload struct {
	home.Snapshot
	UpdatedAt time.Time `json:"updated_at"`
}

type eventPayload struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (p *Publisher) PublishState(ctx context.Context, snap home.Snapshot) error {
	payload, err := json.Marshal(statePayload{Snapshot: snap, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := p.broker.Publish(ctx, p.StateTopic(), payload, true); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}

// Notify publishes a dispatch summary as an event. It lets the publisher
// sit in the notifier chain.
func (p *Publisher) Notify(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}
	payload, err := json.Marshal(eventPayload{Message: message, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.broker.Publish(ctx, p.EventTopic(), payload, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.broker.Close()
}

type pahoBroker struct {
	cli paho.Client
}

func dial(ctx context.Context, cfg Config, logger *slog.Logger) (*pahoBroker, error) {
	server, user, err := brokerAddress(cfg.BrokerURL)
	if err != nil {
		return nil, err
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "home-dispatch-" + time.Now().Format("150405.000")
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.OnConnect = func(paho.Client) { logger.Info("mqtt connected", "broker", server) }
	opts.OnConnectionLost = func(_ paho.Client, err error) { logger.Error("mqtt connection lost", "error", err) }
	if user != nil {
		pw, _ := user.Password()
		opts.SetUsername(user.Username())
		opts.SetPassword(pw)
	}

	cli := paho.NewClient(opts)
	if err := wait(ctx, cli.Connect()); err != nil {
		return nil, fmt.Errorf("connecting to mqtt broker %s: %w", server, err)
	}
	return &pahoBroker{cli: cli}, nil
}

func (b *pahoBroker) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	return wait(ctx, b.cli.Publish(topic, 1, retain, payload))
}

func (b *pahoBroker) Close() {
	b.cli.Disconnect(250)
}

func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// brokerAddress converts mqtt://, tcp://, ssl://, tls://, ws:// and wss://
// URLs into the form paho expects.
func brokerAddress(raw string) (string, *url.Userinfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parsing broker url: %w", err)
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("broker url %q has no host", raw)
	}

	switch u.Scheme {
	case "mqtt", "tcp", "":
		return "tcp://" + u.Host, u.User, nil
	case "ssl", "tls", "mqtts":
		return "ssl://" + u.Host, u.User, nil
	case "ws", "wss":
		return u.Scheme + "://" + u.Host + u.Path, u.User, nil
	default:
		return "", nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}
