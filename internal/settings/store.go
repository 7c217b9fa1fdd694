// Package settings persists the user-editable settings the provider layer reads
// at request-build time: the hosted credential and the local model endpoint.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foxhui123/AutoQA/internal/config"
)

// Setting keys
const (
	KeyCredential     = "credential"
	KeyLocalModelURL  = "local_model_url"
	KeyLocalModelName = "local_model_name"
)

// Documented defaults for the local OpenAI-compatible server
const (
	DefaultLocalModelURL  = "http://localhost:11434/v1/chat/completions"
	DefaultLocalModelName = "deepseek-r1"
)

// Keys lists every known setting key in display order
var Keys = []string{KeyCredential, KeyLocalModelURL, KeyLocalModelName}

// ErrUnknownKey is returned when a caller writes a key that is not a known setting
var ErrUnknownKey = errors.New("unknown setting key")

// Store is a key-value store for persisted settings
type Store interface {
	// Get returns the value for key; found is false when the key is unset
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value under key
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// Close releases the backend
	Close() error
}

// Open builds the store configured by cfg
func Open(ctx context.Context, cfg config.SettingsConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// IsKnownKey reports whether key is one of Keys
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Lookup returns the trimmed value for key, or fallback when it is unset or blank
func Lookup(ctx context.Context, s Store, key, fallback string) (string, error) {
	if s == nil {
		return fallback, nil
	}
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return fallback, nil
	}
	return v, nil
}

// Save writes value under key. A blank value removes the key.
func Save(ctx context.Context, s Store, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Delete(ctx, key)
	}
	return s.Set(ctx, key, value)
}

// Snapshot reads every known key. Missing keys are omitted.
func Snapshot(ctx context.Context, s Store) (map[string]string, error) {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("failed to read setting %s: %w", k, err)
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Mask hides all but the last four characters of a credential
func Mask(value string) string {
	r := []rune(value)
	if len(r) == 0 {
		return ""
	}
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
