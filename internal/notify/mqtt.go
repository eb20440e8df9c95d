package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"sehri-go/internal/sehri"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQoS            = 1
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// MQTTPublisher is the part of pahomqtt.Client the notifier uses.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnected() bool
}

// MQTTNotifier publishes each reminder as a JSON message to a topic, for
// home-automation sinks to pick up.
type MQTTNotifier struct {
	client MQTTPublisher
	topic  string
	clock  sehri.Clock
}

var _ sehri.Notifier = (*MQTTNotifier)(nil)

type mqttPayload struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// ConnectMQTT dials broker and returns a notifier publishing to topic.
func ConnectMQTT(broker, clientID, topic string, clock sehri.Clock) (*MQTTNotifier, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connecting to %s: timeout after %v", broker, mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", broker, err)
	}
	return NewMQTTNotifier(client, topic, clock), nil
}

func NewMQTTNotifier(client MQTTPublisher, topic string, clock sehri.Clock) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, clock: clock}
}

func (n *MQTTNotifier) PermissionState(context.Context) sehri.PermissionState {
	return sehri.PermissionGranted
}

func (n *MQTTNotifier) RequestPermission(context.Context) (sehri.PermissionState, error) {
	return sehri.PermissionGranted, nil
}

func (n *MQTTNotifier) Show(_ context.Context, title, body string) error {
	if !n.client.IsConnected() {
		return fmt.Errorf("publishing to %s: not connected", n.topic)
	}
	payload, err := json.Marshal(mqttPayload{Title: title, Body: body, SentAt: n.clock.Now()})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	token := n.client.Publish(n.topic, mqttQoS, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", n.topic, err)
	}
	return nil
}

// Close disconnects from the broker when the client supports it.
func (n *MQTTNotifier) Close() error {
	if c, ok := n.client.(pahomqtt.Client); ok {
		c.Disconnect(250)
	}
	return nil
}
