package mqtt

import (
	"encoding/json"
	"time"
)

// Values of the retained <base>/status message.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonConnectionLost = "connection_lost"
	reasonShutdown       = "shutdown"
)

// statusMessage is the retained availability message on <base>/status.
type statusMessage struct {
	Status    string    `json:"status"`
	GatewayID string    `json:"gateway_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func statusPayload(status, gatewayID, reason string) []byte {
	//nolint:errcheck // a struct of strings and a time always encodes
	payload, _ := json.Marshal(statusMessage{
		Status:    status,
		GatewayID: gatewayID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
	return payload
}
