package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[uint32]*Device
	saves   int
	// For testing error paths
	listErr error
	saveErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		devices: make(map[uint32]*Device),
	}
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) Save(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.devices[d.SN()] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, sn uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.devices[sn]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, sn)
	return nil
}

func (m *MockRepository) stored(sn uint32) (*Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[sn]
	return d, ok
}

// changeRecorder collects origin tags from change notifications.
type changeRecorder struct {
	mu      sync.Mutex
	origins []string
}

func (c *changeRecorder) handle(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origins = append(c.origins, origin)
}

func (c *changeRecorder) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.origins...)
}

func newTestRegistry(t *testing.T) (*Registry, *MockRepository, *changeRecorder) {
	t.Helper()
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	rec := &changeRecorder{}
	reg.OnChange(rec.handle)

	clock := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return reg, repo, rec
}

func manualDevice(sn uint32) Device {
	return Device{
		SmokeDetector: SmokeDetector{Model: SmokeDetectorGeniusPlusX, SN: sn},
		RadioModule:   RadioModule{Model: RadioModuleFMBasisX, SN: sn + 1000},
		Location:      "Kitchen",
		Registration:  RegistrationManual,
	}
}

func TestAddDevice(t *testing.T) {
	reg, repo, rec := newTestRegistry(t)

	d, err := reg.AddDevice(manualDevice(42))
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if d.ID != 1 {
		t.Errorf("ID = %d, want 1", d.ID)
	}
	if !reg.IsKnown(42) {
		t.Error("IsKnown(42) = false after add")
	}
	if _, ok := repo.stored(42); !ok {
		t.Error("device was not persisted")
	}
	if got := rec.all(); len(got) != 1 || got[0] != OriginAdministration {
		t.Errorf("origins = %v, want [%s]", got, OriginAdministration)
	}

	second, err := reg.AddDevice(manualDevice(43))
	if err != nil {
		t.Fatalf("AddDevice(43) error = %v", err)
	}
	if second.ID != 2 {
		t.Errorf("second ID = %d, want 2", second.ID)
	}
}

func TestAddDeviceRejects(t *testing.T) {
	tests := []struct {
		name    string
		device  Device
		wantErr error
	}{
		{"zero serial", Device{Registration: RegistrationManual}, ErrInvalidDevice},
		{"bad registration", Device{SmokeDetector: SmokeDetector{SN: 5}, Registration: 7}, ErrInvalidDevice},
		{"duplicate", manualDevice(42), ErrDeviceExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, _, _ := newTestRegistry(t)
			if _, err := reg.AddDevice(manualDevice(42)); err != nil {
				t.Fatalf("seed AddDevice() error = %v", err)
			}
			_, err := reg.AddDevice(tt.device)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddDevice() error = %v, want %v", err, tt.wantErr)
			}
			if reg.Count() != 1 {
				t.Errorf("Count() = %d, want 1", reg.Count())
			}
		})
	}
}

func TestAddDeviceFull(t *testing.T) {
	reg := NewRegistry(nil)
	for i := range MaxDevices {
		if _, err := reg.AddDevice(manualDevice(uint32(i + 1))); err != nil {
			t.Fatalf("AddDevice(%d) error = %v", i+1, err)
		}
	}
	if _, err := reg.AddDevice(manualDevice(9999)); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("AddDevice() error = %v, want ErrRegistryFull", err)
	}
}

func TestAddFromPacket(t *testing.T) {
	reg, _, rec := newTestRegistry(t)

	d, err := reg.AddFromPacket(0x11223344, 0x0A0B0C0D)
	if err != nil {
		t.Fatalf("AddFromPacket() error = %v", err)
	}
	if d.Location != DefaultLocation {
		t.Errorf("Location = %q, want %q", d.Location, DefaultLocation)
	}
	if d.Registration != RegistrationGeniusPacket {
		t.Errorf("Registration = %d, want GeniusPacket", d.Registration)
	}
	if d.RadioModule.SN != 0x11223344 || d.SmokeDetector.SN != 0x0A0B0C0D {
		t.Errorf("serials = %08X/%08X", d.RadioModule.SN, d.SmokeDetector.SN)
	}
	if got := rec.all(); len(got) != 1 || got[0] != OriginAddedFromPacket {
		t.Errorf("origins = %v, want [%s]", got, OriginAddedFromPacket)
	}
}

func TestAlarmLifecycle(t *testing.T) {
	reg, repo, rec := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	if !reg.SetAlarm(42) {
		t.Fatal("SetAlarm() = false on non-alarming device")
	}
	if reg.SetAlarm(42) {
		t.Error("second SetAlarm() = true, want no-op")
	}

	d, _ := reg.Get(42)
	if !d.IsAlarming {
		t.Error("IsAlarming = false after SetAlarm")
	}
	if len(d.Alarms) != 1 {
		t.Fatalf("len(Alarms) = %d, want 1", len(d.Alarms))
	}
	if !d.Alarms[0].Active() || !d.Alarms[0].End.IsZero() {
		t.Errorf("alarm = %+v, want active", d.Alarms[0])
	}
	if !reg.IsAlarming() || reg.NumAlarming() != 1 {
		t.Errorf("IsAlarming() = %v NumAlarming() = %d", reg.IsAlarming(), reg.NumAlarming())
	}

	if !reg.ResetAlarm(42, EndingBySmokeDetector) {
		t.Fatal("ResetAlarm() = false on alarming device")
	}
	if reg.ResetAlarm(42, EndingBySmokeDetector) {
		t.Error("second ResetAlarm() = true, want no-op")
	}

	d, _ = reg.Get(42)
	if d.IsAlarming {
		t.Error("IsAlarming = true after ResetAlarm")
	}
	if len(d.Alarms) != 1 {
		t.Fatalf("len(Alarms) = %d, want 1", len(d.Alarms))
	}
	if d.Alarms[0].Ending != EndingBySmokeDetector || !d.Alarms[0].End.After(d.Alarms[0].Start) {
		t.Errorf("closed alarm = %+v", d.Alarms[0])
	}

	stored, _ := repo.stored(42)
	if stored.IsAlarming || len(stored.Alarms) != 1 {
		t.Errorf("persisted device = %+v", stored)
	}

	want := []string{OriginAdministration, OriginAlarmStateChange, OriginAlarmStateChange}
	got := rec.all()
	if len(got) != len(want) {
		t.Fatalf("origins = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("origins[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetAlarmUnknown(t *testing.T) {
	reg, _, rec := newTestRegistry(t)
	if reg.SetAlarm(7) {
		t.Error("SetAlarm() on unknown device = true")
	}
	if reg.ResetAlarm(7, EndingManual) {
		t.Error("ResetAlarm() on unknown device = true")
	}
	if len(rec.all()) != 0 {
		t.Errorf("unexpected notifications: %v", rec.all())
	}
}

func TestResetAlarmRejectsActiveEnding(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	reg.SetAlarm(42)
	if reg.ResetAlarm(42, EndingActive) {
		t.Error("ResetAlarm(EndingActive) = true")
	}
	if !reg.IsAlarming() {
		t.Error("device no longer alarming")
	}
}

func TestResetAllAlarms(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	for _, sn := range []uint32{1, 2, 3} {
		if _, err := reg.AddDevice(manualDevice(sn)); err != nil {
			t.Fatalf("AddDevice(%d) error = %v", sn, err)
		}
	}
	reg.SetAlarm(1)
	reg.SetAlarm(3)

	if got := reg.AlarmingDevices(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("AlarmingDevices() = %v, want [1 3]", got)
	}

	if !reg.ResetAllAlarms() {
		t.Fatal("ResetAllAlarms() = false")
	}
	if reg.IsAlarming() {
		t.Error("IsAlarming() = true after ResetAllAlarms")
	}
	d, _ := reg.Get(3)
	if d.Alarms[0].Ending != EndingManual {
		t.Errorf("Ending = %d, want EndingManual", d.Alarms[0].Ending)
	}
	if reg.ResetAllAlarms() {
		t.Error("ResetAllAlarms() with nothing alarming = true")
	}
}

func TestAlarmHistoryTrimmed(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	for range MaxAlarms + 5 {
		reg.SetAlarm(42)
		reg.ResetAlarm(42, EndingBySmokeDetector)
	}
	first, _ := reg.Get(42)
	reg.SetAlarm(42)

	d, _ := reg.Get(42)
	if len(d.Alarms) != MaxAlarms {
		t.Fatalf("len(Alarms) = %d, want %d", len(d.Alarms), MaxAlarms)
	}
	if !d.Alarms[MaxAlarms-1].Active() {
		t.Error("newest alarm is not active")
	}
	if d.Alarms[0].Start.Equal(first.Alarms[0].Start) {
		t.Error("oldest alarm was not dropped")
	}
}

func TestPendingProjections(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(1)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if _, err := reg.AddDevice(manualDevice(2)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	pending := reg.PendingProjections()
	if len(pending) != 2 {
		t.Fatalf("len(PendingProjections()) = %d, want 2", len(pending))
	}
	for _, p := range pending {
		reg.MarkPublished(p)
	}
	if got := reg.PendingProjections(); len(got) != 0 {
		t.Errorf("PendingProjections() after publish = %v", got)
	}

	reg.SetAlarm(2)
	pending = reg.PendingProjections()
	if len(pending) != 1 {
		t.Fatalf("len(PendingProjections()) = %d, want 1", len(pending))
	}
	want := Projection{SmokeDetectorSN: 2, Location: "Kitchen", IsAlarming: true}
	if pending[0] != want {
		t.Errorf("projection = %+v, want %+v", pending[0], want)
	}

	reg.MarkPublished(pending[0])
	reg.MarkAllUnpublished()
	if got := reg.PendingProjections(); len(got) != 2 {
		t.Errorf("len(PendingProjections()) after MarkAllUnpublished = %d, want 2", len(got))
	}
}

func TestMarkPublishedKeepsNewerState(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(777)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	reg.SetAlarm(777)

	pending := reg.PendingProjections()
	if len(pending) != 1 || !pending[0].IsAlarming {
		t.Fatalf("PendingProjections() = %+v, want one alarming projection", pending)
	}

	// The alarm ends while the alarming projection is being delivered.
	reg.ResetAlarm(777, EndingBySmokeDetector)
	reg.MarkPublished(pending[0])

	pending = reg.PendingProjections()
	if len(pending) != 1 {
		t.Fatalf("len(PendingProjections()) = %d, want 1", len(pending))
	}
	if pending[0].IsAlarming {
		t.Error("pending projection still alarming")
	}
	if d, _ := reg.Get(777); d.Published {
		t.Error("device marked published with a state that was never sent")
	}
}

func TestPersistDropsStaleSnapshot(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(5)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	reg.SetAlarm(5)
	alarming, _ := reg.Get(5)

	reg.ResetAlarm(5, EndingBySmokeDetector)
	saves := repo.saves

	// An alarming snapshot from an earlier generation arriving late.
	reg.persist(&alarming, 1)

	if repo.saves != saves {
		t.Errorf("stale snapshot was written (saves %d -> %d)", saves, repo.saves)
	}
	stored, ok := repo.stored(5)
	if !ok {
		t.Fatal("device not persisted")
	}
	if stored.IsAlarming {
		t.Error("stored device is alarming after the alarm ended")
	}
}

func TestPersistRemovalWinsOverLateSave(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	added, err := reg.AddDevice(manualDevice(9))
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if err := reg.RemoveDevice(9); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}

	reg.persist(&added, 1)
	if _, ok := repo.stored(9); ok {
		t.Error("removed device was written back by a late snapshot")
	}
}

func TestRemoveAndUpdateLocation(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	if err := reg.UpdateLocation(42, "Hallway"); err != nil {
		t.Fatalf("UpdateLocation() error = %v", err)
	}
	if d, _ := reg.Get(42); d.Location != "Hallway" {
		t.Errorf("Location = %q, want Hallway", d.Location)
	}
	if err := reg.UpdateLocation(7, "x"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("UpdateLocation(unknown) error = %v", err)
	}

	if err := reg.RemoveDevice(42); err != nil {
		t.Fatalf("RemoveDevice() error = %v", err)
	}
	if reg.IsKnown(42) {
		t.Error("device still known after removal")
	}
	if _, ok := repo.stored(42); ok {
		t.Error("device still persisted after removal")
	}
	if err := reg.RemoveDevice(42); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("RemoveDevice() twice error = %v", err)
	}
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	reg, repo, _ := newTestRegistry(t)
	repo.saveErr = errors.New("disk full")

	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if !reg.SetAlarm(42) {
		t.Fatal("SetAlarm() = false")
	}
	if !reg.IsAlarming() {
		t.Error("in-memory state lost after persistence failure")
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2", repo.saves)
	}
}

func TestLoad(t *testing.T) {
	repo := NewMockRepository()
	repo.devices[42] = &Device{ID: 7, SmokeDetector: SmokeDetector{SN: 42}, Registration: RegistrationManual, Published: true}

	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reg.IsKnown(42) {
		t.Fatal("loaded device not known")
	}
	if len(reg.PendingProjections()) != 1 {
		t.Error("loaded device should be pending publication")
	}

	d, err := reg.AddDevice(manualDevice(50))
	if err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	if d.ID != 8 {
		t.Errorf("ID after load = %d, want 8", d.ID)
	}

	repo.listErr = errors.New("boom")
	if err := reg.Load(context.Background()); err == nil {
		t.Error("Load() with failing repository returned nil")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	if _, err := reg.AddDevice(manualDevice(42)); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}
	reg.SetAlarm(42)

	d, _ := reg.Get(42)
	d.Alarms[0].Ending = EndingManual
	d.Location = "changed"

	again, _ := reg.Get(42)
	if again.Alarms[0].Ending != EndingActive || again.Location != "Kitchen" {
		t.Error("mutating a returned copy changed registry state")
	}
}

func TestConcurrentAlarms(t *testing.T) {
	reg := NewRegistry(nil)
	for sn := uint32(1); sn <= 10; sn++ {
		if _, err := reg.AddDevice(manualDevice(sn)); err != nil {
			t.Fatalf("AddDevice(%d) error = %v", sn, err)
		}
	}

	var wg sync.WaitGroup
	for sn := uint32(1); sn <= 10; sn++ {
		wg.Add(1)
		go func(sn uint32) {
			defer wg.Done()
			for range 20 {
				reg.SetAlarm(sn)
				_ = reg.PendingProjections()
				reg.ResetAlarm(sn, EndingBySmokeDetector)
			}
		}(sn)
	}
	wg.Wait()

	if reg.IsAlarming() {
		t.Error("IsAlarming() = true after all resets")
	}
}
