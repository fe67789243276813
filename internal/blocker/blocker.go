package blocker

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/genius-gateway/internal/events"
)

// DefaultInterval is the countdown tick period.
const DefaultInterval = time.Second

// Logger defines the logging interface used by the Blocker.
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

// Blocker suppresses alarm actions for an administratively set duration.
//
// The remaining time only decreases while blocked and is clamped at zero;
// reaching zero clears the blocked flag.
type Blocker struct {
	mu          sync.Mutex
	blocked     bool
	remainingMS int64

	publisher events.Publisher
	logger    Logger
	interval  time.Duration
	now       func() time.Time
}

// New creates an unblocked Blocker. pub receives a RemainingBlockTime event
// every tick and may be nil.
func New(pub events.Publisher) *Blocker {
	return &Blocker{
		publisher: pub,
		logger:    noopLogger{},
		interval:  DefaultInterval,
		now:       time.Now,
	}
}

// SetLogger sets the logger for the blocker.
func (b *Blocker) SetLogger(logger Logger) {
	b.logger = logger
}

// StartBlocking blocks alarm actions for the given number of seconds,
// replacing any running countdown.
func (b *Blocker) StartBlocking(seconds uint32) {
	b.mu.Lock()
	b.blocked = true
	b.remainingMS = int64(seconds) * 1000
	b.mu.Unlock()

	b.logger.Info("alarm blocking started", "seconds", seconds)
}

// EndBlocking cancels the countdown. It is idempotent.
func (b *Blocker) EndBlocking() {
	b.mu.Lock()
	was := b.blocked
	b.blocked = false
	b.remainingMS = 0
	b.mu.Unlock()

	if was {
		b.logger.Info("alarm blocking ended")
	}
}

// IsBlocked reports whether alarm actions are currently blocked.
func (b *Blocker) IsBlocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blocked
}

// Remaining returns the remaining blocking time.
func (b *Blocker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.remainingMS) * time.Millisecond
}

// Tick advances the countdown by elapsed and publishes the remaining time.
func (b *Blocker) Tick(elapsed time.Duration) {
	b.mu.Lock()
	expired := false
	if b.blocked {
		b.remainingMS -= elapsed.Milliseconds()
		if b.remainingMS <= 0 {
			b.remainingMS = 0
			b.blocked = false
			expired = true
		}
	}
	payload := events.BlockTimePayload{
		IsBlocked:             b.blocked,
		RemainingBlockingTime: b.remainingMS / 1000,
	}
	b.mu.Unlock()

	if expired {
		b.logger.Info("alarm blocking expired")
	}
	if b.publisher != nil {
		b.publisher.Publish(events.RemainingBlockTime, payload)
	}
}

// Run ticks the countdown until ctx is cancelled, measuring the real
// elapsed time between ticks.
func (b *Blocker) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	last := b.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := b.now()
			b.Tick(now.Sub(last))
			last = now
		}
	}
}
