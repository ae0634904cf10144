package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Well-known setting keys.
const (
	SettingLastBackupAt = "lastBackupAt"
	SettingAppTag       = "app"
)

// Setting returns the value stored under key and whether it was present.
func (t *Tx) Setting(key string) (string, bool, error) {
	row, err := t.queryRow(Settings, `SELECT value FROM settings WHERE key = ?`, key)
	if err != nil {
		return "", false, err
	}
	var v string
	err = row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// SetSetting stores value under key.
func (t *Tx) SetSetting(key, value string) error {
	_, err := t.exec(Settings, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(t.s.Now()))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the value stored under key.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	type result struct {
		value string
		ok    bool
	}
	r, err := Run(ctx, s, []Collection{Settings}, ReadOnly, func(tx *Tx) (result, error) {
		v, ok, err := tx.Setting(key)
		return result{v, ok}, err
	})
	return r.value, r.ok, err
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := Run(ctx, s, []Collection{Settings}, ReadWrite, func(tx *Tx) (struct{}, error) {
		return struct{}{}, tx.SetSetting(key, value)
	})
	return err
}
