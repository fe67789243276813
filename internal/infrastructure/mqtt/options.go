package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/genius-gateway/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second

	// opTimeout bounds every publish and subscribe acknowledgment.
	opTimeout = 5 * time.Second

	// quiesceMillis lets in-flight messages drain on disconnect.
	quiesceMillis = 1000

	keepAlive = 60 * time.Second

	maxQoS = 2

	// statusQoS is used for the retained status topic and the will.
	statusQoS = 1
)

// brokerURL renders the broker address; TLS switches the scheme to ssl.
func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

// buildClientOptions maps the gateway's MQTT configuration onto paho
// options. The session is clean, so subscriptions are replayed by the client
// after every reconnect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// configureLWT has the broker mark the gateway offline if the connection
// drops without a clean shutdown.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, gatewayID string) {
	opts.SetBinaryWill(topics.Status(), statusPayload(statusOffline, gatewayID, reasonConnectionLost), statusQoS, true)
}
