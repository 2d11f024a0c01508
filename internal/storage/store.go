// Package storage provides the persisted key/value store backing the session and notification cache.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Persisted keys. Values are whole-value overwrites; last write wins.
const (
	KeyToken                   = "token"
	KeyUser                    = "user"
	KeyRole                    = "role"
	KeyName                    = "name"
	KeyNotifications           = "notifications"
	KeyNotificationPreferences = "notificationPreferences"
)

// AllKeys lists every key the client writes. Logout and 401 handling clear these.
var AllKeys = []string{
	KeyToken,
	KeyUser,
	KeyRole,
	KeyName,
	KeyNotifications,
	KeyNotificationPreferences,
}

// ErrEmptyKey is returned when a store operation is given an empty key.
var ErrEmptyKey = errors.New("storage: key is required")

// Store is a durable key/value store that survives process restarts.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Close releases resources held by the store.
	Close() error
}

// GetJSON decodes the value at key into v. Returns false when the key is absent.
// A value that fails to decode is reported as an error; callers decide whether to treat it as absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// GetString returns the value at key as a string.
func GetString(ctx context.Context, s Store, key string) (string, bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return string(raw), true, nil
}

// SetString stores value at key.
func SetString(ctx context.Context, s Store, key, value string) error {
	return s.Set(ctx, key, []byte(value))
}

// ClearAll removes every client key.
func ClearAll(ctx context.Context, s Store) error {
	return s.Delete(ctx, AllKeys...)
}
