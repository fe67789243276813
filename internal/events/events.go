package events

import (
	"time"

	"github.com/btittelbach/pubsub"
)

// Event names published by the gateway.
const (
	RemainingBlockTime  = "rem-alarm-block-time"
	AlarmLineActionDone = "alarm-line-action-finished"
	NewAlarmLine        = "new-alarm-line"
	AlarmStateChanged   = "alarm-state-changed"
	DevicesChanged      = "devices-changed"
	AlarmLinesChanged   = "alarm-lines-changed"
	Packet              = "packet"
)

// allTopic receives every event in addition to its own name.
const allTopic = "*"

// Event is one published notification.
type Event struct {
	Name    string
	Payload any
	Time    time.Time
}

// BlockTimePayload is published with RemainingBlockTime every blocker tick.
type BlockTimePayload struct {
	IsBlocked             bool  `json:"isBlocked"`
	RemainingBlockingTime int64 `json:"remainingBlockingTime"` // seconds
}

// ActionDonePayload is published with AlarmLineActionDone after a burst.
type ActionDonePayload struct {
	TimedOut       bool   `json:"timedOut"`
	TransmissionID string `json:"transmissionId"`
}

// NewAlarmLinePayload is published with NewAlarmLine when a line is discovered.
type NewAlarmLinePayload struct {
	NewAlarmLineID uint32 `json:"newAlarmLineId"`
}

// StateChangedPayload accompanies the registry change events.
type StateChangedPayload struct {
	Origin     string `json:"origin"`
	IsAlarming bool   `json:"isAlarming"`
}

// PacketPayload is the passive packet log entry.
type PacketPayload struct {
	Data      []byte    `json:"data"`
	RSSI      int       `json:"rssi"`
	LQI       uint8     `json:"lqi"`
	Duplicate bool      `json:"duplicate"`
	Kind      string    `json:"kind"`
	Captured  time.Time `json:"captured"`
}

// Publisher is the capability components need to emit events.
type Publisher interface {
	Publish(name string, payload any)
}

// Bus fans named events out to subscribers.
type Bus struct {
	ps *pubsub.PubSub
}

// NewBus returns a bus whose subscriber channels buffer capacity events.
func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{ps: pubsub.New(capacity)}
}

// Publish sends an event to subscribers of name and of all events.
//
// Packet events are the exception: they reach only subscribers of Packet
// and never block. A Packet subscriber whose channel is full is
// unsubscribed and its channel closed.
func (b *Bus) Publish(name string, payload any) {
	ev := Event{Name: name, Payload: payload, Time: time.Now()}
	if name == Packet {
		b.ps.PubNonBlocking(ev, Packet)
		return
	}
	b.ps.Pub(ev, name, allTopic)
}

// Subscribe returns a channel receiving the named events, or every event
// except Packet when no names are given.
func (b *Bus) Subscribe(names ...string) chan interface{} {
	if len(names) == 0 {
		names = []string{allTopic}
	}
	return b.ps.Sub(names...)
}

// Unsubscribe stops delivery of the named events to ch.
func (b *Bus) Unsubscribe(ch chan interface{}, names ...string) {
	if len(names) == 0 {
		names = []string{allTopic}
	}
	b.ps.Unsub(ch, names...)
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.ps.Shutdown()
}

// Forward calls fn for every event on ch until the channel is closed.
// It is meant to run in its own goroutine.
func Forward(ch <-chan interface{}, fn func(Event)) {
	for msg := range ch {
		if ev, ok := msg.(Event); ok {
			fn(ev)
		}
	}
}
