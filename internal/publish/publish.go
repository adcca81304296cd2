// Package publish delivers comparison results to an MQTT broker so
// reporting collaborators can subscribe to them.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nvandessel/layerbench/internal/config"
	"github.com/nvandessel/layerbench/internal/logging"
	"github.com/nvandessel/layerbench/internal/report"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("timed out waiting for broker")

// Client is the subset of mqtt.Client the publisher needs.
type Client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// ClientFactory builds a Client from broker options.
type ClientFactory func(opts *mqtt.ClientOptions) Client

func defaultFactory(opts *mqtt.ClientOptions) Client {
	return mqtt.NewClient(opts)
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithClientFactory replaces the paho client, mainly for tests.
func WithClientFactory(f ClientFactory) Option {
	return func(p *Publisher) { p.factory = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// Publisher sends results as JSON, one message per comparison. The
// connection is opened on first use and reused until Close.
type Publisher struct {
	cfg     config.PublishConfig
	factory ClientFactory
	logger  *slog.Logger

	mu     sync.Mutex
	client Client
}

// New creates a Publisher. It does not connect.
func New(cfg config.PublishConfig, opts ...Option) *Publisher {
	p := &Publisher{
		cfg:     cfg,
		factory: defaultFactory,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic returns the topic a result is published to:
// <topic>/<protocol_a>-vs-<protocol_b>.
func (p *Publisher) Topic(r *report.Result) string {
	return fmt.Sprintf("%s/%s-vs-%s", strings.TrimSuffix(p.cfg.Topic, "/"),
		topicSegment(r.ProtocolA()), topicSegment(r.ProtocolB()))
}

// Publish sends the result and waits for the broker acknowledgement
// required by the configured QoS. Nothing is retried.
func (p *Publisher) Publish(ctx context.Context, r *report.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", r.ID(), err)
	}

	client, err := p.connect(ctx)
	if err != nil {
		return err
	}

	topic := p.Topic(r)
	token := client.Publish(topic, byte(p.cfg.QoS), p.cfg.Retained, payload)
	if err := p.wait(ctx, token); err != nil {
		return fmt.Errorf("failed to publish result %s to %s: %w", r.ID(), topic, err)
	}

	p.logger.Info("published result", "id", r.ID(), "topic", topic, "bytes", len(payload))
	return nil
}

func (p *Publisher) connect(ctx context.Context) (Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil && p.client.IsConnected() {
		return p.client, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.cfg.Broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	if p.cfg.Timeout > 0 {
		opts.SetConnectTimeout(p.cfg.Timeout)
	}
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	client := p.factory(opts)
	if err := p.wait(ctx, client.Connect()); err != nil {
		// Stop the client's connect loop before dropping it.
		client.Disconnect(0)
		return nil, fmt.Errorf("failed to connect to broker %s: %w", p.cfg.Broker, err)
	}
	p.logger.Debug("connected to broker", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	p.client = client
	return client, nil
}

func (p *Publisher) wait(ctx context.Context, token mqtt.Token) error {
	var timeout <-chan time.Time
	if p.cfg.Timeout > 0 {
		timer := time.NewTimer(p.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrTimeout
	}
}

// Close disconnects from the broker, if connected.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
	return nil
}

// topicSegment keeps a protocol name from introducing MQTT wildcards or
// extra levels.
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
