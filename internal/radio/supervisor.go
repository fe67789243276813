package radio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/nerrad567/genius-gateway/internal/radio/cc1101"
)

// Defaults for the stuck-line watchdog.
const (
	DefaultPollInterval   = time.Second
	DefaultStuckThreshold = 200 * time.Millisecond
	DefaultSampleInterval = 10 * time.Millisecond
)

// ErrClaimTimeout is returned by Claim when the context ends first.
var ErrClaimTimeout = errors.New("radio: claim not acquired")

// Transceiver is the driver surface the gateway uses. *cc1101.Driver satisfies it.
type Transceiver interface {
	ReadPacket() (cc1101.Packet, error)
	SendPacket(data []byte) error
	SetReceiveMode() error
	FlushReceiveFIFO() error
	FlushTransmitFIFO() error
	State() (cc1101.State, error)
	RxBytes() (count int, overflow bool, err error)
}

// Line is the GDO0 input. periph.io's gpio.PinIn satisfies it.
type Line interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}

// Logger defines the logging interface used by the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config tunes the watchdog. Zero values select the defaults.
type Config struct {
	PollInterval   time.Duration
	StuckThreshold time.Duration
	SampleInterval time.Duration
}

// Supervisor arbitrates access to the transceiver and recovers a stuck GDO0.
type Supervisor struct {
	radio Transceiver
	line  Line
	cfg   Config

	// claim is a binary semaphore: a token in the channel means free.
	claim chan struct{}

	mu         sync.Mutex
	monitoring bool

	recoveries atomic.Uint64
	logger     Logger
}

// NewSupervisor returns a supervisor owning radio and watching line.
// Monitoring starts enabled.
func NewSupervisor(radio Transceiver, line Line, cfg Config) *Supervisor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = DefaultStuckThreshold
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}

	s := &Supervisor{
		radio:      radio,
		line:       line,
		cfg:        cfg,
		claim:      make(chan struct{}, 1),
		monitoring: true,
		logger:     noopLogger{},
	}
	s.claim <- struct{}{}
	return s
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Line returns the GDO0 line the supervisor watches.
func (s *Supervisor) Line() Line {
	return s.line
}

// Claim blocks until the transceiver is free or ctx ends. The caller must
// call Release exactly once after a successful claim.
func (s *Supervisor) Claim(ctx context.Context) (Transceiver, error) {
	select {
	case <-s.claim:
		return s.radio, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrClaimTimeout, ctx.Err())
	}
}

// TryClaim takes the transceiver only if it is free right now.
func (s *Supervisor) TryClaim() (Transceiver, bool) {
	select {
	case <-s.claim:
		return s.radio, true
	default:
		return nil, false
	}
}

// Release returns the transceiver. Releasing an unclaimed transceiver panics,
// as it would hide a double release.
func (s *Supervisor) Release() {
	select {
	case s.claim <- struct{}{}:
	default:
		panic("radio: release without claim")
	}
}

// EnableMonitoring re-arms the stuck-line watchdog and status reporting.
func (s *Supervisor) EnableMonitoring() {
	s.mu.Lock()
	s.monitoring = true
	s.mu.Unlock()
}

// DisableMonitoring suspends the watchdog, e.g. for a transmit burst.
func (s *Supervisor) DisableMonitoring() {
	s.mu.Lock()
	s.monitoring = false
	s.mu.Unlock()
}

// Monitoring reports whether monitoring is enabled.
func (s *Supervisor) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// Recoveries returns how many times a stuck line was recovered.
func (s *Supervisor) Recoveries() uint64 {
	return s.recoveries.Load()
}

// Status reports the chip state. ok is false while monitoring is disabled,
// while another goroutine holds the transceiver, or when the read fails.
func (s *Supervisor) Status() (ok bool, state cc1101.State) {
	if !s.Monitoring() {
		return false, cc1101.StateUnknown
	}
	radio, claimed := s.TryClaim()
	if !claimed {
		return false, cc1101.StateUnknown
	}
	defer s.Release()

	state, err := radio.State()
	if err != nil {
		s.logger.Debug("reading radio state failed", "error", err)
		return false, cc1101.StateUnknown
	}
	return true, state
}

// Run polls the GDO0 line until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check samples GDO0 and recovers the chip if the line stays high for longer
// than the stuck threshold.
func (s *Supervisor) check(ctx context.Context) {
	if !s.Monitoring() || s.line.Read() != gpio.High {
		return
	}

	deadline := time.Now().Add(s.cfg.StuckThreshold)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.SampleInterval):
		}
		if s.line.Read() == gpio.Low || !s.Monitoring() {
			return
		}
	}

	// A reception in progress holds the claim; it flushes on its own.
	radio, claimed := s.TryClaim()
	if !claimed {
		return
	}
	defer s.Release()

	s.logger.Warn("GDO0 stuck high, flushing RX FIFO", "threshold", s.cfg.StuckThreshold)
	if err := radio.FlushReceiveFIFO(); err != nil {
		s.logger.Warn("flushing RX FIFO failed", "error", err)
	}
	if err := radio.SetReceiveMode(); err != nil {
		s.logger.Warn("re-entering RX failed", "error", err)
	}
	s.recoveries.Add(1)
}
