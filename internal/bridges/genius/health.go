package genius

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	// defaultHealthInterval is used when no interval is configured.
	defaultHealthInterval = 30 * time.Second

	// dependencyCheckTimeout bounds each dependency check.
	dependencyCheckTimeout = 5 * time.Second
)

// HealthSnapshot is the gateway state a health report is built from.
type HealthSnapshot struct {
	Radio       RadioHealth
	Devices     int
	NumAlarming int
	AlarmLines  int
	Blocked     bool
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthChecker reports whether a dependency is reachable. *mqtt.Client,
// *influxdb.Client and *database.DB satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DependencyCheck names a dependency in the health report.
type DependencyCheck struct {
	Name    string
	Checker HealthChecker
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// GatewayID is the gateway identifier for health messages.
	GatewayID string

	// Version is the gateway software version.
	Version string

	// Topic is where reports are published.
	Topic string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Snapshot collects the current gateway state. Optional.
	Snapshot func() HealthSnapshot

	// Dependencies are checked before every periodic report. Any
	// unreachable dependency degrades the status.
	Dependencies []DependencyCheck
}

// HealthReporter manages periodic health status reporting.
type HealthReporter struct {
	gatewayID string
	version   string
	topic     string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	snapshot  func() HealthSnapshot
	deps      []DependencyCheck

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a new health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		gatewayID: cfg.GatewayID,
		version:   cfg.Version,
		topic:     cfg.Topic,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		snapshot:  cfg.Snapshot,
		deps:      cfg.Dependencies,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publish(h.Message(HealthStopping, "", nil))
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(h.Message(HealthStarting, "gateway starting", nil))
}

// PublishNow checks the dependencies and publishes the current health
// status immediately.
func (h *HealthReporter) PublishNow(ctx context.Context) error {
	deps := h.checkDependencies(ctx)
	status, reason := h.determineStatus(deps)
	return h.publish(h.Message(status, reason, deps))
}

// checkDependencies runs every dependency check. The result is nil when no
// dependencies are configured.
func (h *HealthReporter) checkDependencies(ctx context.Context) map[string]DependencyHealth {
	if len(h.deps) == 0 {
		return nil
	}
	out := make(map[string]DependencyHealth, len(h.deps))
	for _, d := range h.deps {
		checkCtx, cancel := context.WithTimeout(ctx, dependencyCheckTimeout)
		err := d.Checker.HealthCheck(checkCtx)
		cancel()

		if err != nil {
			out[d.Name] = DependencyHealth{Reachable: false, Error: err.Error()}
			continue
		}
		out[d.Name] = DependencyHealth{Reachable: true}
	}
	return out
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(ctx); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current gateway status.
func (h *HealthReporter) determineStatus(deps map[string]DependencyHealth) (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	for _, d := range h.deps {
		if dep, ok := deps[d.Name]; ok && !dep.Reachable {
			return HealthDegraded, d.Name + " unreachable"
		}
	}

	// The radio may legitimately be busy or in TX; only a readable, non-RX
	// state while idle counts against health.
	if h.snapshot != nil {
		r := h.snapshot().Radio
		if r.OK && !r.Transmitting && r.State != "rx" {
			return HealthDegraded, "radio in state " + r.State
		}
	}

	return HealthHealthy, ""
}

// Message builds the health message for status. deps may be nil.
func (h *HealthReporter) Message(status HealthStatus, reason string, deps map[string]DependencyHealth) HealthMessage {
	msg := HealthMessage{
		GatewayID:     h.gatewayID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Dependencies:  deps,
	}
	if h.snapshot != nil {
		snap := h.snapshot()
		radio := snap.Radio
		msg.Radio = &radio
		msg.Devices = snap.Devices
		msg.NumAlarming = snap.NumAlarming
		msg.AlarmLines = snap.AlarmLines
		msg.Blocked = snap.Blocked
	}
	return msg
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
