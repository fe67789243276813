package device

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// persistTimeout bounds a single write-through to the repository.
const persistTimeout = 5 * time.Second

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the canonical, ordered list of known devices.
//
// The in-memory list is authoritative. When a Repository is set, every
// mutation is written through after the lock is released; a failed write
// is logged and does not undo the change.
//
// Public methods never call each other while holding the lock, and no
// I/O or callback runs under it. All public methods are thread-safe.
type Registry struct {
	mu       sync.Mutex
	devices  []*Device
	nextID   uint32
	repo     Repository
	logger   Logger
	handlers []ChangeHandler
	now      func() time.Time

	// gen orders write-throughs. Each mutation takes the next generation
	// under mu; persist drops snapshots older than the last one written.
	gen       uint64
	persistMu sync.Mutex
	written   map[uint32]uint64
}

// NewRegistry creates an empty device registry.
// repo may be nil for a purely in-memory registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		nextID: 1,
		repo:   repo,
		logger:  noopLogger{},
		now:     time.Now,
		written: make(map[uint32]uint64),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// OnChange registers a handler invoked after every externally visible change.
// Handlers must be registered before the registry is shared between goroutines.
func (r *Registry) OnChange(h ChangeHandler) {
	r.handlers = append(r.handlers, h)
}

// Load replaces the in-memory list with the repository contents.
// Loaded devices are unpublished so they are announced again.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	r.devices = make([]*Device, 0, len(devices))
	r.nextID = 1
	for i := range devices {
		d := devices[i].DeepCopy()
		d.Published = false
		r.devices = append(r.devices, d)
		if d.ID >= r.nextID {
			r.nextID = d.ID + 1
		}
	}
	r.mu.Unlock()

	r.logger.Info("devices loaded", "count", len(devices))
	return nil
}

// AddDevice registers a new device. The registry assigns the ID and the
// returned copy carries it. Alarm history and alarm state are taken over
// from d as given.
func (r *Registry) AddDevice(d Device) (Device, error) {
	if d.SmokeDetector.SN == 0 || !d.Registration.Valid() {
		return Device{}, fmt.Errorf("%w: serial number and registration required", ErrInvalidDevice)
	}
	if d.Location == "" {
		d.Location = DefaultLocation
	}

	r.mu.Lock()
	if len(r.devices) >= MaxDevices {
		r.mu.Unlock()
		return Device{}, ErrRegistryFull
	}
	if r.find(d.SmokeDetector.SN) != nil {
		r.mu.Unlock()
		return Device{}, ErrDeviceExists
	}
	added := d.DeepCopy()
	added.ID = r.nextID
	added.Published = false
	if len(added.Alarms) > MaxAlarms {
		added.Alarms = added.Alarms[len(added.Alarms)-MaxAlarms:]
	}
	r.nextID++
	r.devices = append(r.devices, added)
	snapshot := added.DeepCopy()
	gen := r.nextGen()
	r.mu.Unlock()

	r.logger.Info("device added",
		"smoke_detector_sn", snapshot.SmokeDetector.SN,
		"radio_module_sn", snapshot.RadioModule.SN,
		"registration", snapshot.Registration)

	origin := OriginAdministration
	if snapshot.Registration == RegistrationGeniusPacket {
		origin = OriginAddedFromPacket
	}
	r.persist(snapshot, gen)
	r.notify(origin)
	return *snapshot, nil
}

// AddFromPacket registers a detector first seen in an alarm packet.
func (r *Registry) AddFromPacket(radioModuleSN, smokeDetectorSN uint32) (Device, error) {
	return r.AddDevice(Device{
		SmokeDetector: SmokeDetector{Model: SmokeDetectorGeniusPlusX, SN: smokeDetectorSN},
		RadioModule:   RadioModule{Model: RadioModuleFMBasisX, SN: radioModuleSN},
		Location:      DefaultLocation,
		Registration:  RegistrationGeniusPacket,
	})
}

// RemoveDevice deletes a device by smoke detector serial number.
func (r *Registry) RemoveDevice(sn uint32) error {
	r.mu.Lock()
	idx := r.index(sn)
	if idx < 0 {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	r.devices = slices.Delete(r.devices, idx, idx+1)
	gen := r.nextGen()
	r.mu.Unlock()

	r.logger.Info("device removed", "smoke_detector_sn", sn)
	r.persistRemoval(sn, gen)
	r.notify(OriginAdministration)
	return nil
}

// UpdateLocation changes the free-text location of a device.
func (r *Registry) UpdateLocation(sn uint32, location string) error {
	r.mu.Lock()
	d := r.find(sn)
	if d == nil {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}
	if d.Location == location {
		r.mu.Unlock()
		return nil
	}
	d.Location = location
	d.Published = false
	snapshot := d.DeepCopy()
	gen := r.nextGen()
	r.mu.Unlock()

	r.persist(snapshot, gen)
	r.notify(OriginAdministration)
	return nil
}

// SetAlarm marks a known, non-alarming device as alarming and appends an
// active alarm record. It reports whether anything changed; calling it on
// an alarming or unknown device is a no-op.
func (r *Registry) SetAlarm(sn uint32) bool {
	r.mu.Lock()
	d := r.find(sn)
	if d == nil || d.IsAlarming {
		r.mu.Unlock()
		return false
	}
	d.IsAlarming = true
	d.Published = false
	d.Alarms = appendAlarm(d.Alarms, Alarm{Start: r.now(), Ending: EndingActive})
	snapshot := d.DeepCopy()
	gen := r.nextGen()
	r.mu.Unlock()

	r.logger.Warn("smoke detector alarming", "smoke_detector_sn", sn, "location", snapshot.Location)
	r.persist(snapshot, gen)
	r.notify(OriginAlarmStateChange)
	return true
}

// ResetAlarm closes the active alarm record of an alarming device with the
// given ending and clears its alarm flag. It reports whether anything changed.
func (r *Registry) ResetAlarm(sn uint32, ending AlarmEnding) bool {
	if ending == EndingActive {
		return false
	}

	r.mu.Lock()
	d := r.find(sn)
	if d == nil || !d.IsAlarming {
		r.mu.Unlock()
		return false
	}
	r.closeAlarm(d, ending)
	snapshot := d.DeepCopy()
	gen := r.nextGen()
	r.mu.Unlock()

	r.logger.Info("smoke detector alarm ended", "smoke_detector_sn", sn, "ending", ending)
	r.persist(snapshot, gen)
	r.notify(OriginAlarmStateChange)
	return true
}

// ResetAllAlarms closes every active alarm as ended manually.
// It reports whether any device was alarming.
func (r *Registry) ResetAllAlarms() bool {
	r.mu.Lock()
	var changed []*Device
	for _, d := range r.devices {
		if !d.IsAlarming {
			continue
		}
		r.closeAlarm(d, EndingManual)
		changed = append(changed, d.DeepCopy())
	}
	gen := r.nextGen()
	r.mu.Unlock()

	if len(changed) == 0 {
		return false
	}
	r.logger.Info("all alarms reset", "count", len(changed))
	for _, d := range changed {
		r.persist(d, gen)
	}
	r.notify(OriginAlarmStateChange)
	return true
}

// IsAlarming reports whether any device is alarming.
func (r *Registry) IsAlarming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.IsAlarming {
			return true
		}
	}
	return false
}

// NumAlarming returns the number of alarming devices.
func (r *Registry) NumAlarming() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.devices {
		if d.IsAlarming {
			n++
		}
	}
	return n
}

// AlarmingDevices returns the serial numbers of all alarming devices in
// registry order.
func (r *Registry) AlarmingDevices() []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	sns := make([]uint32, 0)
	for _, d := range r.devices {
		if d.IsAlarming {
			sns = append(sns, d.SmokeDetector.SN)
		}
	}
	return sns
}

// IsKnown reports whether a smoke detector serial number is registered.
func (r *Registry) IsKnown(sn uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(sn) != nil
}

// Get returns a copy of the device with the given serial number.
func (r *Registry) Get(sn uint32) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.find(sn)
	if d == nil {
		return Device{}, false
	}
	return *d.DeepCopy(), true
}

// Devices returns copies of all devices in registry order.
func (r *Registry) Devices() []Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d.DeepCopy())
	}
	return out
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// PendingProjections returns a projection of every device whose state has
// not been published yet. The caller publishes outside the lock and then
// calls MarkPublished for each delivered projection.
func (r *Registry) PendingProjections() []Projection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Projection
	for _, d := range r.devices {
		if d.Published {
			continue
		}
		out = append(out, Projection{
			SmokeDetectorSN: d.SmokeDetector.SN,
			Location:        d.Location,
			IsAlarming:      d.IsAlarming,
		})
	}
	return out
}

// MarkPublished flags a device as published if its state still matches
// the delivered projection. A device that changed while the projection was
// in flight stays pending.
func (r *Registry) MarkPublished(p Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.find(p.SmokeDetectorSN)
	if d == nil || d.Location != p.Location || d.IsAlarming != p.IsAlarming {
		return
	}
	d.Published = true
}

// MarkAllUnpublished forces every device to be published again, for
// example after the MQTT connection was re-established.
func (r *Registry) MarkAllUnpublished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		d.Published = false
	}
}

// find returns the device with the given serial number. Caller holds r.mu.
func (r *Registry) find(sn uint32) *Device {
	if idx := r.index(sn); idx >= 0 {
		return r.devices[idx]
	}
	return nil
}

// index returns the position of sn or -1. Caller holds r.mu.
func (r *Registry) index(sn uint32) int {
	return slices.IndexFunc(r.devices, func(d *Device) bool {
		return d.SmokeDetector.SN == sn
	})
}

// closeAlarm ends the most recent alarm record. Caller holds r.mu.
func (r *Registry) closeAlarm(d *Device, ending AlarmEnding) {
	d.IsAlarming = false
	d.Published = false
	if n := len(d.Alarms); n > 0 && d.Alarms[n-1].Active() {
		d.Alarms[n-1].End = r.now()
		d.Alarms[n-1].Ending = ending
	}
}

// appendAlarm adds a record, dropping the oldest closed record when the
// history is full.
func appendAlarm(alarms []Alarm, a Alarm) []Alarm {
	if len(alarms) >= MaxAlarms {
		if idx := slices.IndexFunc(alarms, func(x Alarm) bool { return !x.Active() }); idx >= 0 {
			alarms = slices.Delete(alarms, idx, idx+1)
		}
	}
	return append(alarms, a)
}

// nextGen returns a new write generation. Caller holds r.mu.
func (r *Registry) nextGen() uint64 {
	r.gen++
	return r.gen
}

// persist writes a snapshot taken at generation gen. Snapshots that lost the
// race against a newer write of the same device are dropped.
func (r *Registry) persist(d *Device, gen uint64) {
	if r.repo == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	sn := d.SmokeDetector.SN
	if gen <= r.written[sn] {
		r.logger.Debug("skipping stale device snapshot", "smoke_detector_sn", sn)
		return
	}
	r.written[sn] = gen

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, d); err != nil {
		r.logger.Error("persisting device failed", "smoke_detector_sn", sn, "error", err)
	}
}

func (r *Registry) persistRemoval(sn uint32, gen uint64) {
	if r.repo == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	if gen <= r.written[sn] {
		return
	}
	r.written[sn] = gen

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.repo.Delete(ctx, sn); err != nil {
		r.logger.Error("persisting device removal failed", "smoke_detector_sn", sn, "error", err)
	}
}

func (r *Registry) notify(origin string) {
	for _, h := range r.handlers {
		h(origin)
	}
}
