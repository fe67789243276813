package mqtt

import "errors"

// Errors returned by the client. Failures from paho are wrapped, so match
// with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrTimeout is wrapped when the broker did not acknowledge in time.
	ErrTimeout = errors.New("mqtt: no acknowledgment from broker")

	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
