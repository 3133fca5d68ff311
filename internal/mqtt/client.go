// Package mqtt publishes alert events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/safecity/safecity-go/internal/alert"
	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
	"github.com/safecity/safecity-go/internal/logging"
	"github.com/safecity/safecity-go/internal/threat"
)

const (
	connectTimeout = 30 * time.Second
	publishTimeout = 10 * time.Second
)

// Client publishes alert payloads to a single configured topic. It
// implements alert.Notifier.
type Client struct {
	broker   string
	topic    string
	clientID string
	username string
	password string
	retain   bool

	mu       sync.Mutex
	internal pahomqtt.Client
	log      *slog.Logger
}

// alertPayload is the JSON document published per alert.
type alertPayload struct {
	Node      string       `json:"node"`
	Level     threat.Level `json:"level"`
	Cue       alert.Cue    `json:"cue"`
	Kind      string       `json:"kind"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewClient builds an MQTT alert publisher from settings.
func NewClient(settings *conf.Settings) (*Client, error) {
	mc := &settings.Alert.MQTT
	if mc.Broker == "" || mc.Topic == "" {
		return nil, errors.Newf("mqtt alerts require a broker and topic").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	log := logging.ForService("mqtt")
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		broker:   mc.Broker,
		topic:    mc.Topic,
		clientID: settings.Main.Name,
		username: mc.Username,
		password: mc.Password,
		retain:   mc.Retain,
		log:      log,
	}, nil
}

// Connect establishes the broker connection. The hostname is resolved first
// so DNS misconfiguration surfaces as a distinct error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.broker)
	if err != nil {
		return errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve broker host %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Build()
		}
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(c.clientID)
	opts.SetUsername(c.username)
	opts.SetPassword(c.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.log.Info("connected to MQTT broker", "broker", c.broker)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.log.Warn("MQTT connection lost", "broker", c.broker, "error", err)
	})

	c.internal = pahomqtt.NewClient(opts)

	token := c.internal.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("mqtt connection timeout").
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("mqtt connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Build()
	}
	return nil
}

// IsConnected reports broker connectivity.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil && c.internal.IsConnected() {
		c.internal.Disconnect(250)
	}
}

// Name implements alert.Notifier.
func (c *Client) Name() string { return "mqtt" }

// Notify implements alert.Notifier by publishing the event as JSON.
func (c *Client) Notify(ctx context.Context, event alert.Event) error {
	payload, err := json.Marshal(alertPayload{
		Node:      c.clientID,
		Level:     event.Level,
		Cue:       event.Profile.Cue,
		Kind:      string(event.Kind),
		Reason:    event.Reason,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshaling alert payload: %w", err)
	}
	return c.Publish(ctx, c.topic, string(payload))
}

// Publish sends a message to a topic, honoring ctx alongside the paho
// timeout.
func (c *Client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Build()
	}

	token := internal.Publish(topic, 0, c.retain, payload)

	done := make(chan bool, 1)
	go func() {
		done <- token.WaitTimeout(publishTimeout)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case completed := <-done:
		if !completed {
			return errors.Newf("mqtt publish timeout").
				Component("mqtt").
				Category(errors.CategoryMQTT).
				Build()
		}
	}

	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("mqtt publish failed: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTT).
			Build()
	}
	return nil
}
