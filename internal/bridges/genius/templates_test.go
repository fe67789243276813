package genius

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	tests := []struct {
		action  string
		kind    Kind
		length  int
		repeats int
		period  time.Duration
	}{
		{ActionLineTestStart, KindLineTestStart, LenLineTest, 370, 8395 * time.Microsecond},
		{ActionLineTestStop, KindLineTestStop, LenLineTest, 370, 8395 * time.Microsecond},
		{ActionFireAlarmStart, KindAlarmStart, LenAlarm, 315, 9855 * time.Microsecond},
		{ActionFireAlarmStop, KindAlarmStop, LenAlarm, 315, 9855 * time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			plan, err := NewPlan(tt.action, 0x12345678, 9)
			require.NoError(t, err)

			assert.Len(t, plan.Frame, tt.length)
			assert.Equal(t, tt.repeats, plan.Repeats)
			assert.Equal(t, tt.period, plan.Period)

			// A transmitted frame decodes back to the requested action.
			ev, err := Decode(Packet(plan.FrameAt(0)), time.Time{})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, uint32(0x12345678), ev.LineID)
			assert.Equal(t, uint8(9), ev.Sequence)
			assert.Zero(t, ev.Hops)
		})
	}
}

func TestNewPlan_GatewayIsAlarmSource(t *testing.T) {
	plan, err := NewPlan(ActionFireAlarmStart, 1, 0)
	require.NoError(t, err)

	ev, err := Decode(Packet(plan.Frame), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, GatewayID, ev.OriginID)
	assert.True(t, plan.IsAlarm())
}

func TestNewPlan_UnknownAction(t *testing.T) {
	_, err := NewPlan("self-destruct", 1, 0)
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestNewPlan_TemplatesNotShared(t *testing.T) {
	a, err := NewPlan(ActionLineTestStart, 0x11111111, 1)
	require.NoError(t, err)
	b, err := NewPlan(ActionLineTestStart, 0x22222222, 2)
	require.NoError(t, err)

	lineA, _ := Packet(a.Frame).LineID()
	lineB, _ := Packet(b.Frame).LineID()
	assert.Equal(t, uint32(0x11111111), lineA)
	assert.Equal(t, uint32(0x22222222), lineB)
}

func TestPlanCounter(t *testing.T) {
	lt, err := NewPlan(ActionLineTestStart, 1, 0)
	require.NoError(t, err)
	fa, err := NewPlan(ActionFireAlarmStop, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x18CC), lt.Counter(0))
	assert.Equal(t, uint16(0x0002), lt.Counter(lt.Repeats-1))
	assert.Equal(t, uint16(0x18CC), fa.Counter(0))
	assert.Equal(t, uint16(0x000A), fa.Counter(fa.Repeats-1))

	prev := lt.Counter(0)
	for i := 1; i < lt.Repeats; i++ {
		c := lt.Counter(i)
		assert.Less(t, c, prev, "counter must fall at iteration %d", i)
		prev = c
	}
}

func TestPlanFrameAt_WritesCounter(t *testing.T) {
	plan, err := NewPlan(ActionLineTestStop, 1, 0)
	require.NoError(t, err)

	frame := plan.FrameAt(plan.Repeats - 1)
	counter, err := Packet(frame).Counter()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0002), counter)
}
