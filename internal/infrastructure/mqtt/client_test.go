package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nerrad567/genius-gateway/internal/infrastructure/config"
)

// testConfig returns a configuration that is never dialled; these tests
// exercise everything up to the broker connection.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "genius-gateway-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		BaseTopic: "genius-gateway",
		HomeAssistant: config.HomeAssistantConfig{
			TopicPrefix: "homeassistant/binary_sensor/genius-",
		},
	}
}

// disconnectedClient returns a Client that was never connected.
func disconnectedClient() *Client {
	cfg := testConfig()
	return &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.BaseTopic, cfg.HomeAssistant.TopicPrefix),
		subs:   make(map[string]subscription),
	}
}

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		username   string
		wantScheme string
	}{
		{"plain tcp", false, "", "tcp"},
		{"tls", true, "", "ssl"},
		{"with auth", false, "gateway", "tcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Broker.TLS = tt.tls
			cfg.Auth.Username = tt.username
			cfg.Auth.Password = "secret"

			opts := buildClientOptions(cfg)

			if len(opts.Servers) != 1 {
				t.Fatalf("Servers = %d, want 1", len(opts.Servers))
			}
			if opts.Servers[0].Scheme != tt.wantScheme {
				t.Errorf("scheme = %q, want %q", opts.Servers[0].Scheme, tt.wantScheme)
			}
			if opts.ClientID != cfg.Broker.ClientID {
				t.Errorf("ClientID = %q, want %q", opts.ClientID, cfg.Broker.ClientID)
			}
			if opts.Username != tt.username {
				t.Errorf("Username = %q, want %q", opts.Username, tt.username)
			}
			if tt.tls && opts.TLSConfig == nil {
				t.Error("TLSConfig should be set when TLS is enabled")
			}
			if !opts.AutoReconnect {
				t.Error("AutoReconnect should be enabled")
			}
		})
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("genius-gateway", ""), "gw-1")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false")
	}
	if opts.WillTopic != "genius-gateway/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != statusQoS {
		t.Errorf("will retained=%v qos=%d, want retained qos %d", opts.WillRetained, opts.WillQos, statusQoS)
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != statusOffline || msg.GatewayID != "gw-1" || msg.Reason != reasonConnectionLost {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestStatusPayload(t *testing.T) {
	tests := []struct {
		status, reason string
	}{
		{statusOnline, ""},
		{statusOffline, reasonShutdown},
	}
	for _, tt := range tests {
		raw := statusPayload(tt.status, "gw-1", tt.reason)

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			t.Fatalf("%s payload is not JSON: %v", tt.status, err)
		}
		if fields["status"] != tt.status || fields["gateway_id"] != "gw-1" {
			t.Errorf("%s payload = %s", tt.status, raw)
		}
		if _, ok := fields["reason"]; ok != (tt.reason != "") {
			t.Errorf("%s payload reason presence = %v: %s", tt.status, ok, raw)
		}
		if _, ok := fields["timestamp"]; !ok {
			t.Errorf("%s payload has no timestamp", tt.status)
		}
	}
}

func TestBrokerURL(t *testing.T) {
	b := testConfig().Broker
	if got := brokerURL(b); got != "tcp://127.0.0.1:1883" {
		t.Errorf("brokerURL() = %q", got)
	}
	b.TLS = true
	b.Port = 8883
	if got := brokerURL(b); got != "ssl://127.0.0.1:8883" {
		t.Errorf("brokerURL(tls) = %q", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"bad qos", "t", nil, 3, ErrInvalidQoS},
		{"oversized payload", "t", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "t", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("t", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if len(c.subs) != 0 {
		t.Errorf("failed subscriptions must not be replayed, got %d", len(c.subs))
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnectedClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	if err := disconnectedClient().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.warns = append(l.warns, msg) }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestWrapHandler(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "t"})
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})

	var got string
	c.wrapHandler(func(_ string, payload []byte) error {
		got = string(payload)
		return nil
	})(nil, fakeMessage{topic: "t", payload: []byte("hello")})

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns=%v errors=%v, want one of each", logger.warns, logger.errors)
	}
	if got != "hello" {
		t.Errorf("payload = %q", got)
	}
}

func TestTopics(t *testing.T) {
	topics := NewTopics("genius-gateway/", "homeassistant/binary_sensor/genius-")

	tests := []struct{ got, want string }{
		{topics.Base(), "genius-gateway"},
		{topics.Status(), "genius-gateway/status"},
		{topics.Health(), "genius-gateway/health"},
		{topics.Event("new-alarm-line"), "genius-gateway/events/new-alarm-line"},
		{topics.AllEvents(), "genius-gateway/events/#"},
		{topics.Actions(), "genius-gateway/actions"},
		{topics.ActionResult(), "genius-gateway/actions/result"},
		{topics.Blocker(), "genius-gateway/blocker"},
		{topics.HABase(1234), "homeassistant/binary_sensor/genius-1234"},
		{topics.HAConfig(1234), "homeassistant/binary_sensor/genius-1234/config"},
		{topics.HAState(1234), "homeassistant/binary_sensor/genius-1234/state"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}

	if strings.Contains(topics.Status(), "//") {
		t.Error("trailing slash on base must be trimmed")
	}
}
