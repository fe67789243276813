package genius

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Packet builders shared by the package tests.

func basePacket(length int, origin, lineID uint32) []byte {
	p := make([]byte, length)
	p[posMarker] = Marker
	binary.LittleEndian.PutUint16(p[posCounter:], 0x18CC)
	binary.BigEndian.PutUint32(p[posOrigin:], origin)
	binary.BigEndian.PutUint32(p[posSender:], origin)
	binary.BigEndian.PutUint32(p[posLineID:], lineID)
	p[posHops] = hopsFirst
	return p
}

func alarmPacket(origin, lineID, source uint32, start bool) []byte {
	p := basePacket(LenAlarm, origin, lineID)
	if start {
		p[posAlarmActive] = 1
	} else {
		p[posAlarmSilence] = 1
	}
	binary.LittleEndian.PutUint32(p[posAlarmSource:], source)
	return p
}

func commissioningPacket(origin, newLineID uint32) []byte {
	p := basePacket(LenCommissioning, origin, 0)
	binary.BigEndian.PutUint32(p[posNewLineID:], newLineID)
	return p
}

func lineTestPacket(origin, lineID uint32, start bool) []byte {
	p := basePacket(LenLineTest, origin, lineID)
	if start {
		p[posLineTestStart] = 0x06
	}
	return p
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		want   Kind
	}{
		{"commissioning", commissioningPacket(1, 2), KindCommissioning},
		{"discovery request", basePacket(LenDiscoveryRequest, 1, 2), KindDiscoveryRequest},
		{"discovery response", basePacket(LenDiscoveryResponse, 1, 2), KindDiscoveryResponse},
		{"alarm start", alarmPacket(1, 2, 3, true), KindAlarmStart},
		{"alarm stop", alarmPacket(1, 2, 3, false), KindAlarmStop},
		{"alarm without flags", basePacket(LenAlarm, 1, 2), KindUnknown},
		{"line test start", lineTestPacket(1, 2, true), KindLineTestStart},
		{"line test stop", lineTestPacket(1, 2, false), KindLineTestStop},
		{"empty", nil, KindUnknown},
		{"odd length", make([]byte, 30), KindUnknown},
		{"oversized", make([]byte, 64), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.packet))
		})
	}
}

func TestClassify_AlarmStartWins(t *testing.T) {
	p := alarmPacket(1, 2, 3, true)
	p[posAlarmSilence] = 1
	assert.Equal(t, KindAlarmStart, Classify(p))
}

func TestDecode_Commissioning(t *testing.T) {
	p := commissioningPacket(0x11223344, 0x00000042)

	ev, err := Decode(p, time.Unix(100, 0))
	require.NoError(t, err)

	assert.Equal(t, KindCommissioning, ev.Kind)
	assert.Equal(t, uint32(66), ev.NewLineID)
	assert.Equal(t, uint32(0x11223344), ev.OriginID)
	assert.Equal(t, time.Unix(100, 0), ev.Captured)
}

func TestDecode_Alarm(t *testing.T) {
	p := alarmPacket(0xAABBCCDD, 0x01020304, 2222699880, true)
	p[posHops] = 0x0C
	p[posSequence] = 7

	ev, err := Decode(p, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, KindAlarmStart, ev.Kind)
	assert.Equal(t, uint32(0xAABBCCDD), ev.OriginID)
	assert.Equal(t, uint32(0x01020304), ev.LineID)
	assert.Equal(t, uint32(2222699880), ev.SourceDetector)
	assert.Equal(t, uint8(3), ev.Hops)
	assert.Equal(t, uint8(7), ev.Sequence)
}

func TestDecode_AlarmSourceIsLittleEndian(t *testing.T) {
	p := alarmPacket(1, 2, 0, true)
	copy(p[posAlarmSource:], []byte{0x01, 0x02, 0x03, 0x04})

	ev, err := Decode(p, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), ev.SourceDetector)
}

func TestDecode_Unknown(t *testing.T) {
	ev, err := Decode(Packet{0x02, 0x00}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Zero(t, ev.OriginID)
}

func TestPacketAccessors_Short(t *testing.T) {
	p := Packet{0x02}

	_, err := p.Counter()
	assert.True(t, errors.Is(err, ErrShortPacket))

	_, err = p.OriginID()
	assert.True(t, errors.Is(err, ErrShortPacket))

	_, err = p.Hops()
	assert.True(t, errors.Is(err, ErrShortPacket))

	_, err = p.AlarmSource()
	assert.True(t, errors.Is(err, ErrShortPacket))
}

func TestPacketAccessors(t *testing.T) {
	p := Packet(lineTestPacket(0x0A0B0C0D, 0xDEADBEEF, true))
	p[posSender+3] = 0xEE

	counter, err := p.Counter()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x18CC), counter)

	sender, err := p.SenderID()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0A0B0CEE), sender)

	line, err := p.LineID()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), line)

	hops, err := p.Hops()
	require.NoError(t, err)
	assert.Zero(t, hops)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "alarm-start", KindAlarmStart.String())
	assert.Equal(t, "line-test-stop", KindLineTestStop.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
	assert.True(t, KindAlarmStop.IsAlarm())
	assert.False(t, KindLineTestStart.IsAlarm())
	assert.True(t, KindLineTestStart.IsLineTest())
}
