package genius

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/genius-gateway/internal/alarmline"
	"github.com/nerrad567/genius-gateway/internal/events"
	"github.com/nerrad567/genius-gateway/internal/infrastructure/influxdb"
)

// Sequencer timing and persistence.
const (
	// burstTimeout aborts a burst that has not finished in time.
	burstTimeout = 10 * time.Second

	// periodWait bounds the wait for a single period timer.
	periodWait = time.Second

	// seqNamespace and seqKey locate the persisted sequence number.
	seqNamespace = "gg-alarmlines"
	seqKey       = "pkt_seq_num"

	seqStoreTimeout = 2 * time.Second
)

// SeqStore persists the packet sequence number. *database.KVStore satisfies it.
type SeqStore interface {
	LoadUint8(ctx context.Context, namespace, key string, def uint8) (uint8, error)
	StoreUint8(ctx context.Context, namespace, key string, v uint8) error
}

// TransmissionRecorder stores burst summaries. *influxdb.Client satisfies it.
type TransmissionRecorder interface {
	WriteTransmission(rec influxdb.TransmissionRecord)
}

// Timer is a reusable one-shot timer.
type Timer interface {
	Reset(d time.Duration)
	C() <-chan time.Time
	Stop()
}

type stdTimer struct{ t *time.Timer }

func newStdTimer() Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return stdTimer{t: t}
}

func (s stdTimer) Reset(d time.Duration) { s.t.Reset(d) }
func (s stdTimer) C() <-chan time.Time   { return s.t.C }
func (s stdTimer) Stop()                 { s.t.Stop() }

// SequencerOptions configures a Sequencer.
type SequencerOptions struct {
	Arbiter       Arbiter
	Store         SeqStore             // optional
	Events        events.Publisher     // optional
	Transmissions TransmissionRecorder // optional

	// NewTimer creates the period timer. Defaults to a time.Timer.
	NewTimer func() Timer

	// Now defaults to time.Now.
	Now func() time.Time
}

type job struct {
	id   string
	plan Plan
}

// Sequencer transmits alarm line bursts. Only one burst runs at a time;
// requests arriving meanwhile are rejected with ErrBusy.
type Sequencer struct {
	arbiter       Arbiter
	store         SeqStore
	events        events.Publisher
	transmissions TransmissionRecorder
	newTimer      func() Timer
	now           func() time.Time
	logger        Logger

	busy    atomic.Bool
	running atomic.Bool
	jobs    chan job

	seqMu sync.Mutex
	seq   uint8
}

// NewSequencer creates a sequencer. Call Load to restore the sequence
// number and Run to start transmitting.
func NewSequencer(opts SequencerOptions) *Sequencer {
	s := &Sequencer{
		arbiter:       opts.Arbiter,
		store:         opts.Store,
		events:        opts.Events,
		transmissions: opts.Transmissions,
		newTimer:      opts.NewTimer,
		now:           opts.Now,
		logger:        noopLogger{},
		jobs:          make(chan job, 1),
	}
	if s.newTimer == nil {
		s.newTimer = newStdTimer
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetLogger sets the logger for the sequencer.
func (s *Sequencer) SetLogger(logger Logger) {
	s.logger = logger
}

// Load restores the persisted sequence number. A missing value starts at 0.
func (s *Sequencer) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	v, err := s.store.LoadUint8(ctx, seqNamespace, seqKey, 0)
	if err != nil {
		return fmt.Errorf("loading sequence number: %w", err)
	}
	s.seqMu.Lock()
	s.seq = v
	s.seqMu.Unlock()
	return nil
}

// Sequence returns the sequence number of the most recent request.
func (s *Sequencer) Sequence() uint8 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.seq
}

// Busy reports whether a burst is queued or on air.
func (s *Sequencer) Busy() bool {
	return s.busy.Load()
}

// Submit validates and queues a transmission. It returns the transmission
// id that the completion event will carry.
func (s *Sequencer) Submit(action string, lineID uint32) (string, error) {
	switch action {
	case ActionLineTestStart, ActionLineTestStop, ActionFireAlarmStart, ActionFireAlarmStop:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if lineID == alarmline.NoneID {
		return "", fmt.Errorf("%w: line id 0", ErrMalformedRequest)
	}
	if !s.running.Load() {
		return "", ErrNotRunning
	}
	if !s.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}

	plan, err := NewPlan(action, lineID, s.nextSequence())
	if err != nil {
		s.busy.Store(false)
		return "", err
	}
	id := uuid.NewString()
	s.jobs <- job{id: id, plan: plan}
	return id, nil
}

// nextSequence increments and persists the sequence number. A failed write
// is logged; the new value is used regardless.
func (s *Sequencer) nextSequence() uint8 {
	s.seqMu.Lock()
	s.seq++
	seq := s.seq
	s.seqMu.Unlock()

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), seqStoreTimeout)
		defer cancel()
		if err := s.store.StoreUint8(ctx, seqNamespace, seqKey, seq); err != nil {
			s.logger.Warn("persisting sequence number failed", "error", err)
		}
	}
	return seq
}

// Run executes queued bursts until ctx ends.
func (s *Sequencer) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-s.jobs:
			s.transmit(ctx, j)
			s.busy.Store(false)
		}
	}
}

func (s *Sequencer) transmit(ctx context.Context, j job) {
	plan := j.plan
	trx, err := s.arbiter.Claim(ctx)
	if err != nil {
		s.logger.Error("claiming radio for transmission failed", "transmission_id", j.id, "error", err)
		s.finish(j, 0, true, 0)
		return
	}
	s.arbiter.DisableMonitoring()

	s.logger.Info("transmission started",
		"transmission_id", j.id,
		"action", plan.Action,
		"line_id", hex32(plan.LineID),
		"sequence", plan.Frame[posSequence],
		"repeats", plan.Repeats)

	timer := s.newTimer()
	defer timer.Stop()
	guard := time.NewTimer(periodWait)
	defer guard.Stop()

	start := s.now()
	sent := 0
	timedOut := false

burst:
	for i := 0; i < plan.Repeats; i++ {
		if s.now().Sub(start) > burstTimeout {
			s.logger.Warn("aborting burst", "transmission_id", j.id, "sent", sent, "error", ErrTransmissionTimedOut)
			timedOut = true
			break
		}
		last := i == plan.Repeats-1
		if !last {
			timer.Reset(plan.Period)
		}
		if err := trx.SendPacket(plan.FrameAt(i)); err != nil {
			s.logger.Warn("sending packet failed", "transmission_id", j.id, "iteration", i, "error", err)
		} else {
			sent++
		}
		if last {
			break
		}

		guard.Reset(periodWait)
		select {
		case <-timer.C():
		case <-guard.C:
			s.logger.Error("period timer did not fire", "transmission_id", j.id, "iteration", i, "error", ErrTransmissionTimedOut)
			timedOut = true
			break burst
		case <-ctx.Done():
			timedOut = true
			break burst
		}
	}

	if err := trx.SetReceiveMode(); err != nil {
		s.logger.Warn("returning to rx failed", "error", err)
	}
	s.arbiter.Release()
	s.arbiter.EnableMonitoring()

	s.finish(j, sent, timedOut, s.now().Sub(start))
}

func (s *Sequencer) finish(j job, sent int, timedOut bool, took time.Duration) {
	s.logger.Info("transmission finished",
		"transmission_id", j.id,
		"sent", sent,
		"timed_out", timedOut,
		"duration", took)

	if s.events != nil {
		s.events.Publish(events.AlarmLineActionDone, events.ActionDonePayload{
			TimedOut:       timedOut,
			TransmissionID: j.id,
		})
	}
	if s.transmissions != nil {
		s.transmissions.WriteTransmission(influxdb.TransmissionRecord{
			ID:       j.id,
			LineID:   j.plan.LineID,
			Action:   j.plan.Action,
			Sent:     sent,
			TimedOut: timedOut,
			Duration: took,
			Finished: s.now(),
		})
	}
}
