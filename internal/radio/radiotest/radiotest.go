// Package radiotest provides in-memory fakes of the transceiver and GDO0
// line for tests of the radio supervisor and the Genius bridge.
package radiotest

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/nerrad567/genius-gateway/internal/radio/cc1101"
)

// Transceiver is a scripted radio. Queued packets are returned by
// ReadPacket in order; every call is counted. Like the chip configured with
// RXOFF_MODE=IDLE, it leaves RX after each packet delivered.
type Transceiver struct {
	mu sync.Mutex

	rx      []rxResult
	sent    [][]byte
	sentAt  []time.Time
	calls   map[string]int
	state   cc1101.State
	sendErr error

	// OnSend, if set, runs after each SendPacket is recorded.
	OnSend func(n int)
}

type rxResult struct {
	pkt cc1101.Packet
	err error
}

// NewTransceiver returns a fake in RX state with an empty FIFO.
func NewTransceiver() *Transceiver {
	return &Transceiver{calls: make(map[string]int), state: cc1101.StateRX}
}

// QueuePacket adds a frame for the next ReadPacket.
func (t *Transceiver) QueuePacket(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = append(t.rx, rxResult{pkt: cc1101.Packet{
		Data:      append([]byte(nil), data...),
		RSSI:      -70,
		LQI:       20,
		Timestamp: time.Now(),
	}})
}

// QueueError makes the next ReadPacket fail with err.
func (t *Transceiver) QueueError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rx = append(t.rx, rxResult{err: err})
}

// SetState sets what State returns.
func (t *Transceiver) SetState(s cc1101.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// SetSendError makes every SendPacket fail with err.
func (t *Transceiver) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Sent returns copies of every transmitted frame.
func (t *Transceiver) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	for i, b := range t.sent {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// SentAt returns the time of every SendPacket call.
func (t *Transceiver) SentAt() []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Time(nil), t.sentAt...)
}

// Calls returns how often the named method was called.
func (t *Transceiver) Calls(method string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[method]
}

// Pending returns how many queued reads remain.
func (t *Transceiver) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rx)
}

func (t *Transceiver) ReadPacket() (cc1101.Packet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["ReadPacket"]++
	if len(t.rx) == 0 {
		return cc1101.Packet{}, cc1101.ErrNoData
	}
	next := t.rx[0]
	t.rx = t.rx[1:]
	if next.err == nil {
		t.state = cc1101.StateIdle
	}
	return next.pkt, next.err
}

func (t *Transceiver) SendPacket(data []byte) error {
	t.mu.Lock()
	t.calls["SendPacket"]++
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return err
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	t.sentAt = append(t.sentAt, time.Now())
	n := len(t.sent)
	hook := t.OnSend
	t.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (t *Transceiver) SetReceiveMode() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["SetReceiveMode"]++
	t.state = cc1101.StateRX
	return nil
}

func (t *Transceiver) FlushReceiveFIFO() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["FlushReceiveFIFO"]++
	return nil
}

func (t *Transceiver) FlushTransmitFIFO() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["FlushTransmitFIFO"]++
	return nil
}

func (t *Transceiver) State() (cc1101.State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["State"]++
	return t.state, nil
}

func (t *Transceiver) RxBytes() (int, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls["RxBytes"]++
	if len(t.rx) == 0 {
		return 0, false, nil
	}
	if t.rx[0].err != nil {
		return 1, false, nil
	}
	return len(t.rx[0].pkt.Data) + 3, false, nil
}

// Line is a GDO0 line driven by the test. Fire delivers one falling edge.
type Line struct {
	mu    sync.Mutex
	level gpio.Level
	edges chan struct{}
}

// NewLine returns a line resting low.
func NewLine() *Line {
	return &Line{level: gpio.Low, edges: make(chan struct{}, 16)}
}

// Set drives the line level.
func (l *Line) Set(level gpio.Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Fire signals a falling edge.
func (l *Line) Fire() {
	l.edges <- struct{}{}
}

func (l *Line) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-l.edges
		return true
	}
	select {
	case <-l.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *Line) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}
