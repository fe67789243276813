package alarmline

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository defines the interface for alarm line persistence.
type Repository interface {
	List(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, line Line) error
	Delete(ctx context.Context, id uint32) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed alarm line repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all persisted lines in insertion order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Line, error) {
	const query = `SELECT id, name, acquisition, created_at FROM alarm_lines ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying alarm lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			l       Line
			id      int64
			created string
		)
		if err := rows.Scan(&id, &l.Name, &l.Acquisition, &created); err != nil {
			return nil, fmt.Errorf("scanning alarm line: %w", err)
		}
		l.ID = uint32(id) //nolint:gosec // ids are stored from uint32
		if l.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing alarm line %d created_at: %w", id, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alarm lines: %w", err)
	}
	return lines, nil
}

// Save inserts or updates a line.
func (r *SQLiteRepository) Save(ctx context.Context, l Line) error {
	const query = `INSERT INTO alarm_lines (id, name, acquisition, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, acquisition = excluded.acquisition`
	_, err := r.db.ExecContext(ctx, query,
		int64(l.ID), l.Name, l.Acquisition, l.Created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving alarm line %d: %w", l.ID, err)
	}
	return nil
}

// Delete removes a line. Returns ErrNotFound if it does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id uint32) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alarm_lines WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting alarm line %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
