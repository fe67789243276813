package alarmline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"
)

const persistTimeout = 5 * time.Second

// Logger defines the logging interface used by the Registry.
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

// Registry is the ordered list of known alarm lines.
//
// Mutations are written through to the Repository (when set) after the
// lock is released. The built-in broadcast line is never persisted; it is
// derived from the broadcast feature flag via SetBroadcastLine.
type Registry struct {
	mu    sync.Mutex
	lines []Line

	repo         Repository
	logger       Logger
	onChange     []func(origin string)
	onDiscovered []func(id uint32)
	now          func() time.Time
}

// NewRegistry creates an empty alarm line registry. repo may be nil.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers a handler called with Origin after every change.
func (r *Registry) OnChange(h func(origin string)) {
	r.onChange = append(r.onChange, h)
}

// OnDiscovered registers a handler called when a line learned from a
// Genius packet is added.
func (r *Registry) OnDiscovered(h func(id uint32)) {
	r.onDiscovered = append(r.onDiscovered, h)
}

// Load appends the persisted lines to the registry.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	lines, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading alarm lines: %w", err)
	}

	r.mu.Lock()
	for _, l := range lines {
		if l.ID == BroadcastID || r.index(l.ID) >= 0 {
			continue
		}
		r.lines = append(r.lines, l)
	}
	count := len(r.lines)
	r.mu.Unlock()

	r.logger.Info("alarm lines loaded", "count", count)
	return nil
}

// Add inserts a new line at the end of the registry. It returns false with
// a nil error when the id already exists. Reserved id 0, names longer than
// MaxNameLength and unknown acquisition methods return ErrInvalidArgument.
func (r *Registry) Add(id uint32, name string, acquisition Acquisition) (bool, error) {
	return r.add(id, name, acquisition, false)
}

func (r *Registry) add(id uint32, name string, acquisition Acquisition, toFront bool) (bool, error) {
	if id == NoneID {
		return false, fmt.Errorf("%w: line id %d is reserved", ErrInvalidArgument, id)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return false, fmt.Errorf("%w: name longer than %d characters", ErrInvalidArgument, MaxNameLength)
	}
	if !acquisition.Valid() {
		return false, fmt.Errorf("%w: acquisition %d", ErrInvalidArgument, acquisition)
	}

	r.mu.Lock()
	if r.index(id) >= 0 {
		r.mu.Unlock()
		return false, nil
	}
	if len(r.lines) >= MaxLines {
		r.mu.Unlock()
		return false, ErrRegistryFull
	}
	line := Line{ID: id, Name: name, Created: r.now(), Acquisition: acquisition}
	if toFront {
		r.lines = slices.Insert(r.lines, 0, line)
	} else {
		r.lines = append(r.lines, line)
	}
	r.mu.Unlock()

	r.logger.Info("alarm line added", "line_id", fmt.Sprintf("%08X", id), "name", name, "acquisition", acquisition)

	if id != BroadcastID && r.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.repo.Save(ctx, line); err != nil {
			r.logger.Error("persisting alarm line failed", "line_id", id, "error", err)
		}
	}

	r.notify()
	if acquisition == AcquisitionGeniusPacket {
		for _, h := range r.onDiscovered {
			h(id)
		}
	}
	return true, nil
}

// AddDiscovered registers a line learned from a packet with a generated name.
func (r *Registry) AddDiscovered(id uint32) (bool, error) {
	return r.Add(id, DiscoveredName(id), AcquisitionGeniusPacket)
}

// Remove deletes a line. Reserved id 0 returns ErrInvalidArgument, an
// unknown id returns ErrNotFound.
func (r *Registry) Remove(id uint32) error {
	if id == NoneID {
		return fmt.Errorf("%w: line id %d is reserved", ErrInvalidArgument, id)
	}

	r.mu.Lock()
	idx := r.index(id)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	r.lines = slices.Delete(r.lines, idx, idx+1)
	r.mu.Unlock()

	r.logger.Info("alarm line removed", "line_id", fmt.Sprintf("%08X", id))

	if id != BroadcastID && r.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.repo.Delete(ctx, id); err != nil {
			r.logger.Error("persisting alarm line removal failed", "line_id", id, "error", err)
		}
	}

	r.notify()
	return nil
}

// SetBroadcastLine makes the broadcast line present at the front of the
// registry when enabled and absent otherwise.
func (r *Registry) SetBroadcastLine(enabled bool) error {
	exists := r.Has(BroadcastID)
	switch {
	case enabled && !exists:
		_, err := r.add(BroadcastID, BroadcastName, AcquisitionBuiltIn, true)
		return err
	case !enabled && exists:
		return r.Remove(BroadcastID)
	}
	return nil
}

// Has reports whether a line id is registered.
func (r *Registry) Has(id uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index(id) >= 0
}

// Get returns the line with the given id.
func (r *Registry) Get(id uint32) (Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.index(id); idx >= 0 {
		return r.lines[idx], true
	}
	return Line{}, false
}

// Lines returns a copy of all lines in registry order.
func (r *Registry) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.lines)
}

// Count returns the number of lines.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

// index returns the position of id or -1. Caller holds r.mu.
func (r *Registry) index(id uint32) int {
	return slices.IndexFunc(r.lines, func(l Line) bool { return l.ID == id })
}

func (r *Registry) notify() {
	for _, h := range r.onChange {
		h(Origin)
	}
}
