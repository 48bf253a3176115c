package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/bogenpirat/bettlicht/internal/config"
	"github.com/bogenpirat/bettlicht/internal/eventbus"
	"github.com/bogenpirat/bettlicht/internal/lights"
	"github.com/bogenpirat/bettlicht/internal/usermod"
)

// MQTTService bridges the host broadcast to an MQTT broker: notifying
// state changes are published to <prefix>/state, and <prefix>/set accepts
// a brightness value for manual control.
type MQTTService struct {
	cfg      *config.Config
	registry *usermod.Registry
	lights   *lights.State
	bus      *eventbus.Bus
	client   mqtt.Client
}

// NewMQTTService creates the MQTT bridge.
func NewMQTTService(cfg *config.Config, registry *usermod.Registry, state *lights.State, bus *eventbus.Bus) *MQTTService {
	return &MQTTService{
		cfg:      cfg,
		registry: registry,
		lights:   state,
		bus:      bus,
	}
}

// Start connects to the broker if the bridge is enabled.
func (s *MQTTService) Start(ctx context.Context) {
	if !s.cfg.MQTT.Enabled {
		log.Info().Msg("MQTT bridge is disabled")
		return
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.MQTT.Broker).
		SetClientID(s.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetKeepAlive(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		topic := s.cfg.MQTT.TopicPrefix + "/set"
		if token := c.Subscribe(topic, 0, s.handleSet); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe")
			return
		}
		log.Info().Str("broker", s.cfg.MQTT.Broker).Str("topic", topic).Msg("MQTT bridge connected")
	}

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Str("broker", s.cfg.MQTT.Broker).Msg("Failed to connect to MQTT broker")
		return
	}

	s.bus.Subscribe(eventbus.EventTypeStateChange, s.publishState)

	go func() {
		<-ctx.Done()
		s.client.Disconnect(250)
	}()
}

// handleSet applies a brightness value received over MQTT. This is a
// user path: it broadcasts normally and counts as a manual "on".
func (s *MQTTService) handleSet(_ mqtt.Client, msg mqtt.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))

	b, err := strconv.ParseUint(payload, 10, 8)
	if err != nil {
		log.Warn().Str("payload", payload).Msg("Ignoring malformed brightness payload")
		return
	}

	s.lights.SetBrightness(uint8(b), usermod.CallModeDirect)
	if b > 0 {
		s.registry.ReadFromJSONState(map[string]any{"on": true})
	}
}

// publishState forwards a state-change event to the broker.
func (s *MQTTService) publishState(event eventbus.Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal state payload")
		return
	}

	topic := s.cfg.MQTT.TopicPrefix + "/state"
	token := s.client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		log.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to publish state")
	}
}
