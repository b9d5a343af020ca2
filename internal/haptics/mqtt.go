// Package haptics sends vibration patterns to a wearable over MQTT.
package haptics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/log"
)

// ErrNotConnected is returned by Pulse before Connect succeeds.
var ErrNotConnected = errors.New("mqtt not connected")

// Config contains broker settings.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// publisher is the part of mqtt.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// MQTTEmitter publishes haptic patterns to <topic>/pulse.
type MQTTEmitter struct {
	cfg    Config
	client publisher

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// Stats contains emitter statistics.
type Stats struct {
	Connected bool   `json:"connected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

type pulseMessage struct {
	feedback.Pattern
	Timestamp time.Time `json:"ts"`
}

// NewMQTTEmitter creates an emitter. Call Connect before Pulse.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	if cfg.ClientID == "" {
		cfg.ClientID = "aisight"
	}
	return &MQTTEmitter{cfg: cfg}
}

// Connect establishes the broker connection. The client reconnects on its
// own after a lost connection.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		log.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		log.Warn("mqtt connection lost, will auto-reconnect", "broker", e.cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	log.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.connected = true
	e.mu.Unlock()
	return nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

// Topic returns the topic pulses are published to.
func (e *MQTTEmitter) Topic() string {
	return e.cfg.Topic + "/pulse"
}

// Pulse publishes p without waiting for delivery.
func (e *MQTTEmitter) Pulse(p feedback.Pattern) error {
	e.mu.RLock()
	client, connected := e.client, e.connected
	e.mu.RUnlock()

	if client == nil || !connected {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(pulseMessage{Pattern: p, Timestamp: time.Now()})
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal pulse: %w", err)
	}

	topic := e.Topic()
	token := client.Publish(topic, 0, false, payload)
	go func() {
		if !token.WaitTimeout(2 * time.Second) {
			e.countError()
			log.Debug("haptic publish timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			e.countError()
			log.Debug("haptic publish failed", "topic", topic, "error", err)
			return
		}
		e.mu.Lock()
		e.published++
		e.mu.Unlock()
	}()
	return nil
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Disconnect closes the broker connection. It is safe to call more than once.
func (e *MQTTEmitter) Disconnect() error {
	e.mu.Lock()
	client := e.client
	e.client = nil
	e.connected = false
	e.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Info("mqtt disconnected")
	}
	return nil
}

// Stats returns emitter statistics.
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}
