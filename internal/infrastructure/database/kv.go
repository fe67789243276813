package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// KVStore is a namespaced key/value store backed by the kv_store table.
// Values are stored as text; typed helpers parse them on load.
type KVStore struct {
	db *DB
}

// NewKVStore returns a store using db. The kv_store table must exist.
func NewKVStore(db *DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the stored value and whether it was present.
func (s *KVStore) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE namespace = ? AND key = ?",
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// Set stores value, replacing any previous one.
func (s *KVStore) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// LoadUint8 returns the stored byte value, or def when the key is missing.
// A stored value that does not parse as a byte is an error.
func (s *KVStore) LoadUint8(ctx context.Context, namespace, key string, def uint8) (uint8, error) {
	raw, ok, err := s.Get(ctx, namespace, key)
	if err != nil || !ok {
		return def, err
	}
	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return def, fmt.Errorf("parsing %s/%s: %w", namespace, key, err)
	}
	return uint8(v), nil
}

// StoreUint8 persists a byte value.
func (s *KVStore) StoreUint8(ctx context.Context, namespace, key string, v uint8) error {
	return s.Set(ctx, namespace, key, strconv.FormatUint(uint64(v), 10))
}
