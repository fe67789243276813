package genius

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/genius-gateway/internal/device"
	"github.com/nerrad567/genius-gateway/internal/events"
	gwmqtt "github.com/nerrad567/genius-gateway/internal/infrastructure/mqtt"
)

// ProjectionSource is the device registry as seen by the state publisher.
// It is satisfied by *device.Registry.
type ProjectionSource interface {
	PendingProjections() []device.Projection
	MarkPublished(p device.Projection)
	MarkAllUnpublished()
	IsAlarming() bool
	NumAlarming() int
	AlarmingDevices() []uint32
}

// PublisherConfig configures the state publisher.
type PublisherConfig struct {
	Topics gwmqtt.Topics
	QoS    byte

	// HomeAssistant enables discovery and per-detector state topics.
	HomeAssistant bool

	// AlarmTopic receives the alarm summary when non-empty.
	AlarmTopic string
}

// StatePublisher mirrors the device registry to MQTT. Publishing happens
// on its own goroutine; Trigger only schedules a pass.
type StatePublisher struct {
	cfg     PublisherConfig
	mqtt    HealthPublisher
	devices ProjectionSource
	logger  Logger

	trigger chan struct{}
}

// NewStatePublisher creates a publisher. Call Run to start it.
func NewStatePublisher(cfg PublisherConfig, client HealthPublisher, devices ProjectionSource) *StatePublisher {
	return &StatePublisher{
		cfg:     cfg,
		mqtt:    client,
		devices: devices,
		logger:  noopLogger{},
		trigger: make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the publisher.
func (p *StatePublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Trigger schedules a publishing pass. It never blocks.
func (p *StatePublisher) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Republish marks every detector unpublished and schedules a pass, e.g.
// after the broker connection was re-established.
func (p *StatePublisher) Republish() {
	p.devices.MarkAllUnpublished()
	p.Trigger()
}

// Run publishes on every trigger until ctx ends.
func (p *StatePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.trigger:
			if err := p.PublishPending(); err != nil {
				p.logger.Warn("publishing device state failed", "error", err)
			}
		}
	}
}

// PublishPending publishes every detector whose state changed since its
// last publication, then the alarm summary. Detectors that fail stay
// pending for the next pass.
func (p *StatePublisher) PublishPending() error {
	if !p.mqtt.IsConnected() {
		return gwmqtt.ErrNotConnected
	}

	var firstErr error
	if p.cfg.HomeAssistant {
		for _, proj := range p.devices.PendingProjections() {
			if err := p.publishDetector(proj); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			p.devices.MarkPublished(proj)
		}
	}

	if p.cfg.AlarmTopic != "" {
		if err := p.publishAlarmState(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *StatePublisher) publishDetector(proj device.Projection) error {
	sn := proj.SmokeDetectorSN
	config, err := json.Marshal(NewHAConfig(p.cfg.Topics.HABase(sn), sn, proj.Location))
	if err != nil {
		return fmt.Errorf("marshal discovery for %d: %w", sn, err)
	}
	if err := p.mqtt.Publish(p.cfg.Topics.HAConfig(sn), config, p.cfg.QoS, true); err != nil {
		return fmt.Errorf("publish discovery for %d: %w", sn, err)
	}

	state, err := json.Marshal(NewHAState(proj.IsAlarming))
	if err != nil {
		return fmt.Errorf("marshal state for %d: %w", sn, err)
	}
	if err := p.mqtt.Publish(p.cfg.Topics.HAState(sn), state, p.cfg.QoS, true); err != nil {
		return fmt.Errorf("publish state for %d: %w", sn, err)
	}
	return nil
}

func (p *StatePublisher) publishAlarmState() error {
	alarming := p.devices.AlarmingDevices()
	if alarming == nil {
		alarming = []uint32{}
	}
	msg := AlarmStateMessage{
		IsAlarming:      len(alarming) > 0,
		NumAlarming:     len(alarming),
		AlarmingDevices: alarming,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.mqtt.Publish(p.cfg.AlarmTopic, payload, p.cfg.QoS, true)
}

// EventForwarder publishes bus events to {base}/events/{name}. Packet log
// events are left to the time-series store.
type EventForwarder struct {
	topics gwmqtt.Topics
	mqtt   HealthPublisher
	logger Logger
}

// NewEventForwarder creates a forwarder.
func NewEventForwarder(topics gwmqtt.Topics, client HealthPublisher) *EventForwarder {
	return &EventForwarder{topics: topics, mqtt: client, logger: noopLogger{}}
}

// SetLogger sets the logger for the forwarder.
func (f *EventForwarder) SetLogger(logger Logger) {
	f.logger = logger
}

// Handle publishes one event. It is meant to be passed to events.Forward.
func (f *EventForwarder) Handle(ev events.Event) {
	if ev.Name == events.Packet {
		return
	}
	f.logger.Debug("event", "name", ev.Name, "payload", ev.Payload)
	if !f.mqtt.IsConnected() {
		return
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		f.logger.Warn("marshal event failed", "name", ev.Name, "error", err)
		return
	}
	if err := f.mqtt.Publish(f.topics.Event(ev.Name), payload, 0, false); err != nil {
		f.logger.Warn("publish event failed", "name", ev.Name, "error", err)
	}
}
