// Package mqtt bridges named lights to an MQTT broker: brightness commands
// come in on per-light set topics and every change is published back as
// retained state.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/dimmer-controller/internal/config"
	"github.com/thatsimonsguy/dimmer-controller/internal/model"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	disconnectQuiesce     = 1000 // milliseconds

	qos = 1
)

// Lights is the part of the light controller the bridge drives.
type Lights interface {
	Set(name string, brightness uint8, source string) (model.LightState, error)
	List() []model.LightState
}

type Bridge struct {
	client pahomqtt.Client
	topics Topics
	lights Lights

	// publish is swapped in tests
	publish func(topic string, retained bool, payload []byte) error
}

func newBridge(prefix string, lights Lights) *Bridge {
	b := &Bridge{topics: Topics{Prefix: prefix}, lights: lights}
	b.publish = b.publishToBroker
	return b
}

func buildClientOptions(cfg config.MQTT, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(topics.Status(), "offline", qos, true)
	return opts
}

// Connect dials the broker and subscribes to every light's set topic. The
// subscription and a full state publish are repeated on each reconnect.
func Connect(cfg config.MQTT, lights Lights) (*Bridge, error) {
	b := newBridge(cfg.TopicPrefix, lights)
	opts := buildClientOptions(cfg, b.topics)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		b.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	b.client = pahomqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.Info().Str("broker", cfg.Broker).Str("prefix", cfg.TopicPrefix).Msg("MQTT bridge connected")
	return b, nil
}

func (b *Bridge) handleConnect() {
	token := b.client.Subscribe(b.topics.SetWildcard(), qos, func(_ pahomqtt.Client, m pahomqtt.Message) {
		if err := b.handleSet(m.Topic(), m.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", m.Topic()).Msg("Rejected MQTT command")
		}
	})
	if !token.WaitTimeout(defaultPublishTimeout) || token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", b.topics.SetWildcard()).Msg("MQTT subscribe failed")
	}

	if err := b.publish(b.topics.Status(), true, []byte("online")); err != nil {
		log.Warn().Err(err).Msg("Failed to publish MQTT status")
	}
	b.PublishAll()
}

// handleSet applies one set command.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	name, ok := b.topics.LightFromSet(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	brightness, err := ParseBrightness(payload)
	if err != nil {
		return err
	}
	if _, err := b.lights.Set(name, brightness, "mqtt"); err != nil {
		return fmt.Errorf("failed to set light %s: %w", name, err)
	}
	return nil
}

// ParseBrightness accepts a decimal 0..255 or the words on and off.
func ParseBrightness(payload []byte) (uint8, error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch s {
	case "on":
		return 255, nil
	case "off":
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPayload, s)
	}
	return uint8(v), nil
}

// PublishState publishes the retained state of one light. It has the shape
// of a light controller change listener.
func (b *Bridge) PublishState(st model.LightState) {
	payload, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Str("light", st.Name).Msg("Failed to encode light state")
		return
	}
	if err := b.publish(b.topics.State(st.Name), true, payload); err != nil {
		log.Warn().Err(err).Str("light", st.Name).Msg("Failed to publish light state")
	}
}

func (b *Bridge) PublishAll() {
	for _, st := range b.lights.List() {
		b.PublishState(st)
	}
}

func (b *Bridge) publishToBroker(topic string, retained bool, payload []byte) error {
	token := b.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes an offline status and disconnects.
func (b *Bridge) Close() {
	if b.client == nil || !b.client.IsConnected() {
		return
	}
	if err := b.publish(b.topics.Status(), true, []byte("offline")); err != nil {
		log.Warn().Err(err).Msg("Failed to publish MQTT status")
	}
	b.client.Disconnect(disconnectQuiesce)
	log.Info().Msg("MQTT bridge disconnected")
}
