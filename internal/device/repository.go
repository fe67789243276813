package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// List retrieves all devices with their alarm history, ordered by ID.
	List(ctx context.Context) ([]Device, error)

	// Save inserts or replaces a device together with its alarm history.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by smoke detector serial number.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, sn uint32) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT smoke_detector_sn, id, smoke_detector_model, smoke_detector_date,
			radio_module_sn, radio_module_model, radio_module_date,
			location, registration, is_alarming
		FROM devices
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	index := make(map[uint32]int)
	for rows.Next() {
		var (
			d          Device
			sdDate     sql.NullString
			rmDate     sql.NullString
			isAlarming int
		)
		if err := rows.Scan(&d.SmokeDetector.SN, &d.ID, &d.SmokeDetector.Model, &sdDate,
			&d.RadioModule.SN, &d.RadioModule.Model, &rmDate,
			&d.Location, &d.Registration, &isAlarming); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.SmokeDetector.ProductionDate = parseNullableTime(sdDate)
		d.RadioModule.ProductionDate = parseNullableTime(rmDate)
		d.IsAlarming = isAlarming != 0
		index[d.SmokeDetector.SN] = len(devices)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("closing device rows: %w", err)
	}

	alarmRows, err := r.db.QueryContext(ctx, `
		SELECT smoke_detector_sn, start_time, end_time, ending
		FROM device_alarms
		ORDER BY smoke_detector_sn, position`)
	if err != nil {
		return nil, fmt.Errorf("querying alarms: %w", err)
	}
	defer alarmRows.Close()

	for alarmRows.Next() {
		var (
			sn    uint32
			start string
			end   sql.NullString
			a     Alarm
		)
		if err := alarmRows.Scan(&sn, &start, &end, &a.Ending); err != nil {
			return nil, fmt.Errorf("scanning alarm: %w", err)
		}
		a.Start, err = time.Parse(time.RFC3339Nano, start)
		if err != nil {
			return nil, fmt.Errorf("parsing alarm start: %w", err)
		}
		a.End = parseNullableTime(end)
		if i, ok := index[sn]; ok {
			devices[i].Alarms = append(devices[i].Alarms, a)
		}
	}
	if err := alarmRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alarms: %w", err)
	}
	return devices, nil
}

// Save upserts a device and rewrites its alarm history in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, d *Device) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (smoke_detector_sn, id, smoke_detector_model, smoke_detector_date,
			radio_module_sn, radio_module_model, radio_module_date,
			location, registration, is_alarming, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(smoke_detector_sn) DO UPDATE SET
			id = excluded.id,
			smoke_detector_model = excluded.smoke_detector_model,
			smoke_detector_date = excluded.smoke_detector_date,
			radio_module_sn = excluded.radio_module_sn,
			radio_module_model = excluded.radio_module_model,
			radio_module_date = excluded.radio_module_date,
			location = excluded.location,
			registration = excluded.registration,
			is_alarming = excluded.is_alarming,
			updated_at = excluded.updated_at`,
		d.SmokeDetector.SN, d.ID, d.SmokeDetector.Model, nullableTime(d.SmokeDetector.ProductionDate),
		d.RadioModule.SN, d.RadioModule.Model, nullableTime(d.RadioModule.ProductionDate),
		d.Location, d.Registration, boolToInt(d.IsAlarming),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM device_alarms WHERE smoke_detector_sn = ?`, d.SmokeDetector.SN); err != nil {
		return fmt.Errorf("clearing alarms: %w", err)
	}
	for i, a := range d.Alarms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO device_alarms (smoke_detector_sn, position, start_time, end_time, ending)
			VALUES (?, ?, ?, ?, ?)`,
			d.SmokeDetector.SN, i, a.Start.UTC().Format(time.RFC3339Nano), nullableTime(a.End), a.Ending)
		if err != nil {
			return fmt.Errorf("inserting alarm %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device: %w", err)
	}
	return nil
}

// Delete removes a device by serial number. Alarms cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, sn uint32) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE smoke_detector_sn = ?`, sn)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
