// Package device talks to the door controller (ESP32) over MQTT. The
// controller subscribes to the command topic and actuates the lock; the
// HTTP response to the verifying device is authoritative either way, so a
// broker outage degrades to HTTP-only operation.
package device

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dishusingla001/door-lock-server/internal/config"
	"github.com/dishusingla001/door-lock-server/internal/models"
)

const publishTimeout = 5 * time.Second

// UnlockCommand is the payload published to the controller on a granted
// decision.
type UnlockCommand struct {
	Command string    `json:"command"`
	Subject string    `json:"subject"`
	Channel string    `json:"channel"`
	Time    time.Time `json:"time"`
}

// Notifier wraps a paho MQTT client bound to one command topic.
type Notifier struct {
	client pahomqtt.Client
	topic  string
	qos    byte
}

// Connect establishes the broker connection. An empty broker URL returns a
// nil Notifier, which is safe to call Unlock on (no-op).
func Connect(cfg config.MQTTConfig) (*Notifier, error) {
	if cfg.Broker == "" {
		return nil, nil
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timeout", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	slog.Info("mqtt notifier connected", "broker", cfg.Broker, "topic", cfg.Topic)

	return &Notifier{
		client: client,
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
	}, nil
}

// Unlock publishes an unlock command for a granted decision. Failures are
// logged and swallowed; the decision has already been returned to the caller.
func (n *Notifier) Unlock(subject string, channel models.Channel) {
	if n == nil {
		return
	}

	payload, err := json.Marshal(UnlockCommand{
		Command: "unlock",
		Subject: subject,
		Channel: string(channel),
		Time:    time.Now().UTC(),
	})
	if err != nil {
		slog.Error("marshal unlock command", "error", err)
		return
	}

	token := n.client.Publish(n.topic, n.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		slog.Warn("publish unlock command: timeout", "topic", n.topic)
		return
	}
	if err := token.Error(); err != nil {
		slog.Warn("publish unlock command", "topic", n.topic, "error", err)
	}
}

func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.client.Disconnect(250)
}
