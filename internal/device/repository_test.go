package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/genius-gateway/internal/infrastructure/database"
	_ "github.com/nerrad567/genius-gateway/migrations"
)

// setupTestRepo opens a migrated SQLite database in a temp directory.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_SaveAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	d := &Device{
		ID: 3,
		SmokeDetector: SmokeDetector{
			Model:          SmokeDetectorGeniusPlusX,
			SN:             0x0A0B0C0D,
			ProductionDate: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		RadioModule:  RadioModule{Model: RadioModuleFMBasisX, SN: 0x11223344},
		Location:     "Bedroom",
		Registration: RegistrationGeniusPacket,
		IsAlarming:   true,
		Alarms: []Alarm{
			{Start: start, End: start.Add(time.Minute), Ending: EndingManual},
			{Start: start.Add(time.Hour), Ending: EndingActive},
		},
	}

	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(devices))
	}
	got := devices[0]
	if got.ID != 3 || got.SN() != 0x0A0B0C0D || got.RadioModule.SN != 0x11223344 {
		t.Errorf("identity = %d/%08X/%08X", got.ID, got.SN(), got.RadioModule.SN)
	}
	if got.SmokeDetector.Model != SmokeDetectorGeniusPlusX || got.RadioModule.Model != RadioModuleFMBasisX {
		t.Errorf("models = %v/%v", got.SmokeDetector.Model, got.RadioModule.Model)
	}
	if !got.SmokeDetector.ProductionDate.Equal(d.SmokeDetector.ProductionDate) {
		t.Errorf("ProductionDate = %v", got.SmokeDetector.ProductionDate)
	}
	if !got.RadioModule.ProductionDate.IsZero() {
		t.Errorf("radio ProductionDate = %v, want zero", got.RadioModule.ProductionDate)
	}
	if got.Location != "Bedroom" || got.Registration != RegistrationGeniusPacket || !got.IsAlarming {
		t.Errorf("fields = %+v", got)
	}
	if len(got.Alarms) != 2 {
		t.Fatalf("len(Alarms) = %d, want 2", len(got.Alarms))
	}
	if !got.Alarms[0].End.Equal(start.Add(time.Minute)) || got.Alarms[0].Ending != EndingManual {
		t.Errorf("Alarms[0] = %+v", got.Alarms[0])
	}
	if !got.Alarms[1].Active() || !got.Alarms[1].End.IsZero() {
		t.Errorf("Alarms[1] = %+v, want active", got.Alarms[1])
	}
}

func TestSQLiteRepository_SaveReplacesAlarms(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	d := &Device{ID: 1, SmokeDetector: SmokeDetector{SN: 5}, Location: "a", Registration: RegistrationManual,
		Alarms: []Alarm{{Start: time.Now(), Ending: EndingActive}}, IsAlarming: true}
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	d.Alarms = nil
	d.IsAlarming = false
	d.Location = "b"
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Location != "b" || len(devices[0].Alarms) != 0 || devices[0].IsAlarming {
		t.Errorf("List() = %+v", devices)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	d := &Device{ID: 1, SmokeDetector: SmokeDetector{SN: 5}, Location: "a", Registration: RegistrationManual,
		Alarms: []Alarm{{Start: time.Now(), End: time.Now(), Ending: EndingBySmokeDetector}}}
	if err := repo.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := repo.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, 5); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("len(List()) = %d, want 0", len(devices))
	}
}

func TestRegistryWithSQLite(t *testing.T) {
	repo := setupTestRepo(t)

	reg := NewRegistry(repo)
	if _, err := reg.AddFromPacket(0x11, 0x22); err != nil {
		t.Fatalf("AddFromPacket() error = %v", err)
	}
	reg.SetAlarm(0x22)

	reloaded := NewRegistry(repo)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reloaded.IsAlarming() {
		t.Error("alarm state not restored from database")
	}
	d, ok := reloaded.Get(0x22)
	if !ok || len(d.Alarms) != 1 || d.Location != DefaultLocation {
		t.Errorf("reloaded device = %+v", d)
	}
}
