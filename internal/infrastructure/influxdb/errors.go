package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when history is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: client closed")

	// ErrUnhealthy means the server answered the ping but reported itself down.
	ErrUnhealthy = errors.New("influxdb: server not ready")

	// ErrWriteFailed wraps batch failures passed to the error callback.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
