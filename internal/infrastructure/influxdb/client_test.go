package influxdb

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/genius-gateway/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWrites_ClosedAreNoops(t *testing.T) {
	c := &Client{}

	// None of these may touch the nil write API.
	c.WritePacket(PacketRecord{Data: []byte{0x02}})
	c.WriteAlarm(1234, true, "alarm-state-change")
	c.WriteTransmission(TransmissionRecord{Action: "line-test-start"})

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !errors.Is(c.HealthCheck(t.Context()), ErrNotConnected) {
		t.Error("HealthCheck() on a closed client should return ErrNotConnected")
	}
}

func TestForwardErrors_WrapsWriteFailure(t *testing.T) {
	c := &Client{}
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	errs <- errors.New("bucket not found")
	close(errs)
	c.forwardErrors(errs)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) || !strings.Contains(err.Error(), "bucket not found") {
			t.Errorf("callback error = %v", err)
		}
	default:
		t.Fatal("callback was not invoked")
	}
}

// lineProtocol renders a point the way the write API would send it.
func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

func TestPacketPoint(t *testing.T) {
	ts := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	line := lineProtocol(packetPoint(PacketRecord{
		Data:      []byte{0x02, 0xCC, 0x18},
		RSSI:      -71,
		LQI:       45,
		Duplicate: true,
		Kind:      "alarm-start",
		Timestamp: ts,
	}))

	for _, want := range []string{
		MeasurementPacket,
		"kind=alarm-start",
		"length=3",
		"duplicate=true",
		`data="02cc18"`,
		"rssi=-71i",
		"lqi=45i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestPacketPoint_Defaults(t *testing.T) {
	p := packetPoint(PacketRecord{Data: []byte{1}})
	if !strings.Contains(lineProtocol(p), "kind=unknown") {
		t.Error("empty kind should be tagged unknown")
	}
	if p.Time().IsZero() {
		t.Error("zero timestamp should default to now")
	}
}

func TestAlarmPoint(t *testing.T) {
	line := lineProtocol(alarmPoint(305419896, true, "alarm-state-change", time.Now()))
	for _, want := range []string{MeasurementAlarm, "detector=305419896", "origin=alarm-state-change", "alarming=true"} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

func TestTransmissionPoint(t *testing.T) {
	line := lineProtocol(transmissionPoint(TransmissionRecord{
		ID:       "abc",
		LineID:   66,
		Action:   "line-test-start",
		Sent:     370,
		Duration: 3106 * time.Millisecond,
	}))
	for _, want := range []string{
		MeasurementTransmission,
		"action=line-test-start",
		"line=66",
		"sent=370i",
		"timed_out=false",
		"duration_ms=3106i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}
