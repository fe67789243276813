package influxdb

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPacket       = "genius_packet"
	MeasurementAlarm        = "genius_alarm"
	MeasurementTransmission = "genius_transmission"
)

// PacketRecord is one entry of the passive packet log.
type PacketRecord struct {
	Data      []byte
	RSSI      int
	LQI       uint8
	Duplicate bool
	Kind      string
	Timestamp time.Time
}

// TransmissionRecord summarises a finished transmission burst.
type TransmissionRecord struct {
	ID       string
	LineID   uint32
	Action   string
	Sent     int
	TimedOut bool
	Duration time.Duration
	Finished time.Time
}

// WritePacket logs a received packet.
func (c *Client) WritePacket(rec PacketRecord) {
	if !c.isOpen() {
		return
	}
	c.writes.WritePoint(packetPoint(rec))
}

// WriteAlarm records an alarm state change for a smoke detector.
func (c *Client) WriteAlarm(detectorSN uint32, alarming bool, origin string) {
	if !c.isOpen() {
		return
	}
	c.writes.WritePoint(alarmPoint(detectorSN, alarming, origin, time.Now()))
}

// WriteTransmission records a finished transmission burst.
func (c *Client) WriteTransmission(rec TransmissionRecord) {
	if !c.isOpen() {
		return
	}
	c.writes.WritePoint(transmissionPoint(rec))
}

func packetPoint(rec PacketRecord) *write.Point {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	kind := rec.Kind
	if kind == "" {
		kind = "unknown"
	}
	return write.NewPoint(
		MeasurementPacket,
		map[string]string{
			"kind":      kind,
			"length":    strconv.Itoa(len(rec.Data)),
			"duplicate": strconv.FormatBool(rec.Duplicate),
		},
		map[string]interface{}{
			"data": hex.EncodeToString(rec.Data),
			"rssi": rec.RSSI,
			"lqi":  int(rec.LQI),
		},
		ts,
	)
}

func alarmPoint(detectorSN uint32, alarming bool, origin string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAlarm,
		map[string]string{
			"detector": strconv.FormatUint(uint64(detectorSN), 10),
			"origin":   origin,
		},
		map[string]interface{}{
			"alarming": alarming,
		},
		ts,
	)
}

func transmissionPoint(rec TransmissionRecord) *write.Point {
	ts := rec.Finished
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementTransmission,
		map[string]string{
			"action": rec.Action,
			"line":   strconv.FormatUint(uint64(rec.LineID), 10),
		},
		map[string]interface{}{
			"id":          rec.ID,
			"sent":        rec.Sent,
			"timed_out":   rec.TimedOut,
			"duration_ms": rec.Duration.Milliseconds(),
		},
		ts,
	)
}
