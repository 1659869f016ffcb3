package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// MQTTOptions configures the MQTT backend.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
	RateRPS     float64
}

// MQTT publishes device commands to an MQTT broker, one command topic
// per device: <prefix>/device/<id>/set with a JSON payload. Capability
// answers come from the configured device list; last-command state is
// tracked in memory.
type MQTT struct {
	*registry
	client  pahomqtt.Client
	opts    MQTTOptions
	limiter *rate.Limiter
}

// command is the payload published to a device's set topic.
type command struct {
	State      string `json:"state"`
	Brightness *int   `json:"brightness,omitempty"`
}

// NewMQTT connects to the broker and returns the controller.
func NewMQTT(devices []Descriptor, opts MQTTOptions) (*MQTT, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	limit := rate.Inf
	if opts.RateRPS > 0 {
		limit = rate.Limit(opts.RateRPS)
	}

	clientOpts := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(opts.Timeout)

	m := &MQTT{
		registry: newRegistry(devices),
		client:   pahomqtt.NewClient(clientOpts),
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
	}

	token := m.client.Connect()
	if !token.WaitTimeout(opts.Timeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %v", opts.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	log.Info().Str("broker", opts.Broker).Int("devices", len(devices)).Msg("Connected to MQTT broker")
	return m, nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

// publish sends one command to a device's set topic.
func (m *MQTT) publish(id int, cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	m.limiter.Wait(context.Background())
	topic := fmt.Sprintf("%s/device/%d/set", m.opts.TopicPrefix, id)
	token := m.client.Publish(topic, m.opts.QoS, false, payload)
	if !token.WaitTimeout(m.opts.Timeout) {
		return fmt.Errorf("publish to %s: timeout after %v", topic, m.opts.Timeout)
	}
	return token.Error()
}

func (m *MQTT) TurnOn(ids []int) {
	for _, id := range ids {
		if !m.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned on")
			continue
		}
		if err := m.publish(id, command{State: "ON"}); err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to publish on command")
			continue
		}
		m.recordOn(id, true)
	}
}

func (m *MQTT) TurnOff(ids []int) {
	for _, id := range ids {
		if !m.SupportsOnOff(id) {
			log.Warn().Int("device", id).Msg("Device cannot be turned off")
			continue
		}
		if err := m.publish(id, command{State: "OFF"}); err != nil {
			log.Warn().Err(err).Int("device", id).Msg("Failed to publish off command")
			continue
		}
		m.recordOn(id, false)
	}
}

func (m *MQTT) Dim(ids []int, level int) {
	if level < DimLevelMin || level > DimLevelMax {
		log.Warn().Int("level", level).Msg("Dim level not valid")
		return
	}
	for _, id := range ids {
		if !m.SupportsDim(id) {
			log.Warn().Int("device", id).Msg("Device cannot be dimmed")
			continue
		}
		lvl := level
		if err := m.publish(id, command{State: "ON", Brightness: &lvl}); err != nil {
			log.Warn().Err(err).Int("device", id).Int("level", level).Msg("Failed to publish dim command")
			continue
		}
		m.recordDim(id, level)
	}
}
