package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan interface{}) Event {
	t.Helper()
	select {
	case msg := <-ch:
		ev, ok := msg.(Event)
		require.True(t, ok, "unexpected message type %T", msg)
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBus_PublishByName(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	lines := bus.Subscribe(NewAlarmLine)
	bus.Publish(NewAlarmLine, NewAlarmLinePayload{NewAlarmLineID: 66})

	ev := receive(t, lines)
	assert.Equal(t, NewAlarmLine, ev.Name)
	assert.Equal(t, NewAlarmLinePayload{NewAlarmLineID: 66}, ev.Payload)
	assert.False(t, ev.Time.IsZero())
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	all := bus.Subscribe()
	bus.Publish(AlarmStateChanged, StateChangedPayload{Origin: "alarm-state-change", IsAlarming: true})
	bus.Publish(RemainingBlockTime, BlockTimePayload{})

	assert.Equal(t, AlarmStateChanged, receive(t, all).Name)
	assert.Equal(t, RemainingBlockTime, receive(t, all).Name)
}

func TestBus_OtherNamesNotDelivered(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	done := bus.Subscribe(AlarmLineActionDone)
	bus.Publish(Packet, PacketPayload{})
	bus.Publish(AlarmLineActionDone, ActionDonePayload{TransmissionID: "x"})

	assert.Equal(t, AlarmLineActionDone, receive(t, done).Name)
}

func TestForward_StopsOnClose(t *testing.T) {
	bus := NewBus(4)
	ch := bus.Subscribe(Packet)

	var (
		mu  sync.Mutex
		got []string
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		Forward(ch, func(ev Event) {
			mu.Lock()
			got = append(got, ev.Name)
			mu.Unlock()
		})
	}()

	bus.Publish(Packet, PacketPayload{Kind: "alarm-start"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	bus.Close()
	wg.Wait()
}

func TestBus_PacketsSkipSubscribeAll(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	all := bus.Subscribe()
	bus.Publish(Packet, PacketPayload{})
	bus.Publish(NewAlarmLine, NewAlarmLinePayload{NewAlarmLineID: 1})

	assert.Equal(t, NewAlarmLine, receive(t, all).Name)
}

func TestBus_PacketsNeverBlock(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	stalled := bus.Subscribe(Packet)
	all := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(Packet, PacketPayload{})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing packets blocked on a stalled subscriber")
	}

	// The stalled packet subscriber was dropped; other subscribers still work.
	closed := make(chan struct{})
	go func() {
		for range stalled {
		}
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("stalled packet subscriber was not dropped")
	}
	bus.Publish(AlarmStateChanged, StateChangedPayload{})
	assert.Equal(t, AlarmStateChanged, receive(t, all).Name)
}
