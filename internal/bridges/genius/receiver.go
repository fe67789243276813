package genius

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/genius-gateway/internal/events"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/genius-gateway/internal/radio"
	"github.com/nerrad567/genius-gateway/internal/radio/cc1101"
)

// Receiver timing.
const (
	// receiveWait bounds each wait for a packet-ready notification.
	receiveWait = time.Second

	// edgePoll bounds each WaitForEdge call so the watcher notices shutdown.
	edgePoll = 500 * time.Millisecond
)

// Arbiter hands out exclusive use of the transceiver and controls the
// stuck-line watchdog. *radio.Supervisor satisfies it.
type Arbiter interface {
	Claim(ctx context.Context) (radio.Transceiver, error)
	Release()
	EnableMonitoring()
	DisableMonitoring()
	Line() radio.Line
}

// PacketRecorder stores the passive packet log. *influxdb.Client satisfies it.
type PacketRecorder interface {
	WritePacket(rec influxdb.PacketRecord)
}

// ReceiverStats counts what the receive loop has seen.
type ReceiverStats struct {
	Received   uint64
	Duplicates uint64
	Malformed  uint64
	ReadErrors uint64
}

// Receiver turns GDO0 edges into decoded, de-duplicated packets and hands
// them to the dispatcher one at a time.
type Receiver struct {
	arbiter    Arbiter
	filter     *DuplicateFilter
	dispatcher *Dispatcher
	events     events.Publisher
	packets    PacketRecorder
	logger     Logger

	// wake carries packet-ready notifications. Capacity one: a pending
	// notification already covers any further edges.
	wake chan struct{}

	received   atomic.Uint64
	duplicates atomic.Uint64
	malformed  atomic.Uint64
	readErrors atomic.Uint64
}

// NewReceiver creates a receiver. pub and packets may be nil.
func NewReceiver(arbiter Arbiter, dispatcher *Dispatcher, pub events.Publisher, packets PacketRecorder) *Receiver {
	return &Receiver{
		arbiter:    arbiter,
		filter:     &DuplicateFilter{},
		dispatcher: dispatcher,
		events:     pub,
		packets:    packets,
		logger:     noopLogger{},
		wake:       make(chan struct{}, 1),
	}
}

// SetLogger sets the logger for the receiver.
func (r *Receiver) SetLogger(logger Logger) {
	r.logger = logger
}

// Notify signals that a packet may be waiting. It never blocks.
func (r *Receiver) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Stats returns the receive counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Received:   r.received.Load(),
		Duplicates: r.duplicates.Load(),
		Malformed:  r.malformed.Load(),
		ReadErrors: r.readErrors.Load(),
	}
}

// Run watches the GDO0 line and processes packets until ctx ends.
func (r *Receiver) Run(ctx context.Context) error {
	go r.watchEdges(ctx)

	wait := time.NewTimer(receiveWait)
	defer wait.Stop()

	for {
		wait.Reset(receiveWait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
			r.receive(ctx)
		case <-wait.C:
		}
	}
}

// watchEdges turns falling edges on GDO0 into notifications.
func (r *Receiver) watchEdges(ctx context.Context) {
	line := r.arbiter.Line()
	if line == nil {
		return
	}
	for ctx.Err() == nil {
		if line.WaitForEdge(edgePoll) {
			r.Notify()
		}
	}
}

// receive drains the FIFO one packet at a time. The next packet is not read
// before the current one has been dispatched.
func (r *Receiver) receive(ctx context.Context) {
	for ctx.Err() == nil {
		pkt, ok := r.read(ctx)
		if ok {
			r.handle(pkt)
		}
		r.arbiter.EnableMonitoring()

		if !r.residual(ctx) {
			return
		}
	}
}

func (r *Receiver) read(ctx context.Context) (cc1101.Packet, bool) {
	trx, err := r.arbiter.Claim(ctx)
	if err != nil {
		return cc1101.Packet{}, false
	}
	defer r.arbiter.Release()
	r.arbiter.DisableMonitoring()

	// The chip drops to IDLE after every packet, so RX is re-entered even
	// after a good read.
	pkt, err := trx.ReadPacket()
	if err == nil {
		if rxErr := trx.SetReceiveMode(); rxErr != nil {
			r.logger.Warn("returning to rx failed", "error", rxErr)
		}
		return pkt, true
	}
	if !errors.Is(err, cc1101.ErrNoData) {
		r.readErrors.Add(1)
		r.logger.Warn("reading packet failed", "error", err)
	}
	r.flush(trx)
	return cc1101.Packet{}, false
}

// residual reports whether the FIFO still holds a complete packet. An
// overflowed FIFO is flushed.
func (r *Receiver) residual(ctx context.Context) bool {
	trx, err := r.arbiter.Claim(ctx)
	if err != nil {
		return false
	}
	defer r.arbiter.Release()

	n, overflow, err := trx.RxBytes()
	switch {
	case err != nil:
		r.logger.Debug("reading rx byte count failed", "error", err)
		return false
	case overflow:
		r.logger.Warn("rx fifo overflow, flushing")
		r.flush(trx)
		return false
	}
	return n > 0
}

func (r *Receiver) flush(trx radio.Transceiver) {
	if err := trx.FlushReceiveFIFO(); err != nil {
		r.logger.Warn("flushing rx fifo failed", "error", err)
	}
	if err := trx.SetReceiveMode(); err != nil {
		r.logger.Warn("returning to rx failed", "error", err)
	}
}

func (r *Receiver) handle(pkt cc1101.Packet) {
	r.received.Add(1)
	p := Packet(pkt.Data)
	kind := Classify(p)

	// Noise must not replace the duplicate reference.
	if len(p) == 0 || p[posMarker] != Marker {
		r.log(pkt, false, kind)
		r.logger.Debug("ignoring frame without marker", "length", len(p))
		return
	}

	dup := r.filter.Check(p)
	if dup {
		r.duplicates.Add(1)
	}
	r.log(pkt, dup, kind)
	if dup {
		return
	}

	ev, err := Decode(p, pkt.Timestamp)
	if err != nil {
		r.malformed.Add(1)
		r.logger.Warn("decoding packet failed", "kind", kind, "error", err)
		return
	}
	r.logger.Debug("packet received",
		"kind", kind,
		"origin", hex32(ev.OriginID),
		"line_id", hex32(ev.LineID),
		"hops", ev.Hops,
		"rssi", pkt.RSSI)
	r.dispatcher.Dispatch(ev)
}

// log records every packet, duplicates included.
func (r *Receiver) log(pkt cc1101.Packet, dup bool, kind Kind) {
	if r.events != nil {
		r.events.Publish(events.Packet, events.PacketPayload{
			Data:      append([]byte(nil), pkt.Data...),
			RSSI:      pkt.RSSI,
			LQI:       pkt.LQI,
			Duplicate: dup,
			Kind:      kind.String(),
			Captured:  pkt.Timestamp,
		})
	}
	if r.packets != nil {
		r.packets.WritePacket(influxdb.PacketRecord{
			Data:      pkt.Data,
			RSSI:      pkt.RSSI,
			LQI:       pkt.LQI,
			Duplicate: dup,
			Kind:      kind.String(),
			Timestamp: pkt.Timestamp,
		})
	}
}
