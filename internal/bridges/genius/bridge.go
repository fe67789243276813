package genius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/genius-gateway/internal/alarmline"
	"github.com/nerrad567/genius-gateway/internal/blocker"
	"github.com/nerrad567/genius-gateway/internal/device"
	"github.com/nerrad567/genius-gateway/internal/events"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/config"
	gwmqtt "github.com/nerrad567/genius-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/genius-gateway/internal/radio"
)

// Bridge connects the Genius radio network to MQTT. It handles:
//   - Receiving packets and applying them to the device and line registries
//   - Transmitting line test and fire alarm bursts on request
//   - Publishing detector state, events and health to MQTT
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        *config.Config
	mqtt       MQTTClient
	topics     gwmqtt.Topics
	qos        byte
	supervisor *radio.Supervisor
	devices    *device.Registry
	lines      *alarmline.Registry
	blocker    *blocker.Blocker
	bus        *events.Bus

	dispatcher *Dispatcher
	receiver   *Receiver
	sequencer  *Sequencer
	publisher  *StatePublisher
	forwarder  *EventForwarder
	health     *HealthReporter

	eventsCh chan interface{}

	// Shutdown coordination
	wg       sync.WaitGroup
	stopOnce sync.Once
	cancel   context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it; tests use a mock.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler gwmqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool

	// SetOnConnect sets the callback run after every (re)connection.
	SetOnConnect(callback func())
}

// TimeSeries stores the packet log, alarm transitions and bursts.
// *influxdb.Client satisfies it.
type TimeSeries interface {
	PacketRecorder
	AlarmRecorder
	TransmissionRecorder
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Config is the loaded gateway configuration.
	Config *config.Config

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Supervisor owns the transceiver.
	Supervisor *radio.Supervisor

	// Devices and Lines are the loaded registries.
	Devices *device.Registry
	Lines   *alarmline.Registry

	// Blocker gates fire alarm requests.
	Blocker *blocker.Blocker

	// Bus carries gateway events.
	Bus *events.Bus

	// SeqStore persists the packet sequence number. Optional.
	SeqStore SeqStore

	// TimeSeries receives the packet log. Optional.
	TimeSeries TimeSeries

	// Logger is optional structured logger.
	Logger Logger

	// Version is reported in health messages.
	Version string

	// HealthChecks are the dependencies whose reachability the health
	// report carries. Optional.
	HealthChecks []DependencyCheck
}

// NewBridge creates a new bridge instance.
// Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("config is required")
	case opts.MQTTClient == nil:
		return nil, fmt.Errorf("MQTT client is required")
	case opts.Supervisor == nil:
		return nil, fmt.Errorf("radio supervisor is required")
	case opts.Devices == nil || opts.Lines == nil:
		return nil, fmt.Errorf("device and alarm line registries are required")
	case opts.Blocker == nil:
		return nil, fmt.Errorf("blocker is required")
	case opts.Bus == nil:
		return nil, fmt.Errorf("event bus is required")
	}

	cfg := opts.Config
	b := &Bridge{
		cfg:        cfg,
		mqtt:       opts.MQTTClient,
		topics:     gwmqtt.NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.HomeAssistant.TopicPrefix),
		qos:        byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		supervisor: opts.Supervisor,
		devices:    opts.Devices,
		lines:      opts.Lines,
		blocker:    opts.Blocker,
		bus:        opts.Bus,
		logger:     opts.Logger,
	}

	// Optional recorders stay untyped-nil when absent.
	var (
		packets PacketRecorder
		alarms  AlarmRecorder
		bursts  TransmissionRecorder
	)
	if opts.TimeSeries != nil {
		packets, alarms, bursts = opts.TimeSeries, opts.TimeSeries, opts.TimeSeries
	}

	b.dispatcher = NewDispatcher(opts.Devices, opts.Lines, alarms, Features{
		AlertOnUnknownDetectors: cfg.Features.AlertOnUnknownDetectors,
		LinesFromCommissioning:  cfg.Features.LinesFromCommissioning,
		LinesFromAlarm:          cfg.Features.LinesFromAlarm,
		LinesFromLineTest:       cfg.Features.LinesFromLineTest,
	})
	b.receiver = NewReceiver(opts.Supervisor, b.dispatcher, opts.Bus, packets)
	b.sequencer = NewSequencer(SequencerOptions{
		Arbiter:       opts.Supervisor,
		Store:         opts.SeqStore,
		Events:        opts.Bus,
		Transmissions: bursts,
	})

	alarmTopic := ""
	if cfg.MQTT.HomeAssistant.AlarmEnabled {
		alarmTopic = cfg.MQTT.HomeAssistant.AlarmTopic
	}
	b.publisher = NewStatePublisher(PublisherConfig{
		Topics:        b.topics,
		QoS:           b.qos,
		HomeAssistant: cfg.MQTT.HomeAssistant.Enabled,
		AlarmTopic:    alarmTopic,
	}, opts.MQTTClient, opts.Devices)
	b.forwarder = NewEventForwarder(b.topics, opts.MQTTClient)

	b.health = NewHealthReporter(HealthReporterConfig{
		GatewayID:    cfg.Gateway.ID,
		Version:      opts.Version,
		Topic:        b.topics.Health(),
		Interval:     cfg.GetHealthInterval(),
		Publisher:    opts.MQTTClient,
		Snapshot:     b.snapshot,
		Dependencies: opts.HealthChecks,
	})

	if opts.Logger != nil {
		b.SetLogger(opts.Logger)
	}
	return b, nil
}

// Sequencer returns the transmission sequencer.
func (b *Bridge) Sequencer() *Sequencer {
	return b.sequencer
}

// Receiver returns the packet receiver.
func (b *Bridge) Receiver() *Receiver {
	return b.receiver
}

// Start wires the registries to the event bus, subscribes to the request
// topics and starts the radio, blocker, publisher and health goroutines.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.sequencer.Load(ctx); err != nil {
		b.logError("failed to load sequence number", err)
	}
	if err := b.lines.SetBroadcastLine(b.cfg.Features.BroadcastLine); err != nil {
		b.logError("failed to apply broadcast line setting", err)
	}

	b.devices.OnChange(b.devicesChanged)
	b.lines.OnChange(func(origin string) {
		b.bus.Publish(events.AlarmLinesChanged, events.StateChangedPayload{Origin: origin})
	})
	b.lines.OnDiscovered(func(id uint32) {
		b.bus.Publish(events.NewAlarmLine, events.NewAlarmLinePayload{NewAlarmLineID: id})
	})
	b.mqtt.SetOnConnect(func() {
		b.publisher.Republish()
		if err := b.health.PublishNow(context.Background()); err != nil {
			b.logError("failed to publish health", err)
		}
	})

	if err := b.mqtt.Subscribe(b.topics.Actions(), b.qos, b.handleAction); err != nil {
		return fmt.Errorf("subscribe to actions: %w", err)
	}
	b.logInfo("subscribed to actions", "topic", b.topics.Actions())

	if err := b.mqtt.Subscribe(b.topics.Blocker(), b.qos, b.handleBlock); err != nil {
		return fmt.Errorf("subscribe to blocker: %w", err)
	}
	b.logInfo("subscribed to blocker", "topic", b.topics.Blocker())

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.eventsCh = b.bus.Subscribe()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		events.Forward(b.eventsCh, b.forwarder.Handle)
	}()

	b.run(runCtx, "radio supervisor", b.supervisor.Run)
	b.run(runCtx, "receiver", b.receiver.Run)
	b.run(runCtx, "sequencer", b.sequencer.Run)
	b.run(runCtx, "blocker", b.blocker.Run)
	b.run(runCtx, "state publisher", b.publisher.Run)
	b.health.Start(runCtx)

	b.publisher.Republish()
	if err := b.health.PublishNow(ctx); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"gateway_id", b.cfg.Gateway.ID,
		"devices", b.devices.Count(),
		"alarm_lines", b.lines.Count())
	return nil
}

// Stop gracefully shuts down the bridge. The event bus must still be open.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.health.Stop()
		if b.eventsCh != nil {
			b.bus.Unsubscribe(b.eventsCh)
		}
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

func (b *Bridge) run(ctx context.Context, name string, fn func(context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logError(name+" stopped", err)
		}
	}()
}

// devicesChanged turns registry notifications into events and schedules an
// MQTT publishing pass.
func (b *Bridge) devicesChanged(origin string) {
	name := events.DevicesChanged
	if origin == device.OriginAlarmStateChange {
		name = events.AlarmStateChanged
	}
	b.bus.Publish(name, events.StateChangedPayload{
		Origin:     origin,
		IsAlarming: b.devices.IsAlarming(),
	})
	b.publisher.Trigger()
}

// RequestAction executes an action request and returns its result. It is
// the MQTT handler's backend and may be called directly.
func (b *Bridge) RequestAction(req ActionRequest) ActionResult {
	res := ActionResult{Action: req.Action, LineID: req.LineID}

	if req.Action == ActionResetAlarms {
		b.devices.ResetAllAlarms()
		res.Status = StatusOK
		return res
	}
	if req.Action == ActionFireAlarmStart && b.blocker.IsBlocked() {
		res.Status = StatusBlocked
		res.Reason = ErrBlocked.Error()
		return res
	}

	id, err := b.sequencer.Submit(req.Action, req.LineID)
	switch {
	case err == nil:
		res.Status = StatusOK
		res.TransmissionID = id
		return res
	case errors.Is(err, ErrBusy):
		res.Status = StatusBusy
	case errors.Is(err, ErrUnknownAction):
		res.Status = StatusUnknownAction
	case errors.Is(err, ErrMalformedRequest):
		res.Status = StatusMalformedInput
	default:
		res.Status = StatusError
	}
	res.Reason = err.Error()
	return res
}

func (b *Bridge) handleAction(_ string, payload []byte) error {
	var req ActionRequest
	var res ActionResult
	if err := json.Unmarshal(payload, &req); err != nil {
		res = ActionResult{Status: StatusMalformedInput, Reason: err.Error()}
	} else {
		res = b.RequestAction(req)
	}

	b.logInfo("action request",
		"action", req.Action,
		"line_id", hex32(req.LineID),
		"status", res.Status,
		"transmission_id", res.TransmissionID)

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal action result: %w", err)
	}
	return b.mqtt.Publish(b.topics.ActionResult(), out, b.qos, false)
}

func (b *Bridge) handleBlock(_ string, payload []byte) error {
	var req BlockRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if req.Seconds == 0 {
		b.blocker.EndBlocking()
		b.logInfo("alarm blocking ended")
		return nil
	}
	b.blocker.StartBlocking(req.Seconds)
	b.logInfo("alarm blocking started", "seconds", req.Seconds)
	return nil
}

func (b *Bridge) snapshot() HealthSnapshot {
	ok, state := b.supervisor.Status()
	stats := b.receiver.Stats()
	return HealthSnapshot{
		Radio: RadioHealth{
			OK:           ok,
			State:        state.String(),
			Recoveries:   b.supervisor.Recoveries(),
			Received:     stats.Received,
			Duplicates:   stats.Duplicates,
			Transmitting: b.sequencer.Busy(),
		},
		Devices:     b.devices.Count(),
		NumAlarming: b.devices.NumAlarming(),
		AlarmLines:  b.lines.Count(),
		Blocked:     b.blocker.IsBlocked(),
	}
}

// SetLogger sets the logger for the bridge and its components.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.dispatcher.SetLogger(logger)
	b.receiver.SetLogger(logger)
	b.sequencer.SetLogger(logger)
	b.publisher.SetLogger(logger)
	b.forwarder.SetLogger(logger)
	b.health.SetLogger(logger)
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
