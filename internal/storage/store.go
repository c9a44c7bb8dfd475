// Package storage holds the key-value slot stores that stand in for browser
// local storage. A slot is a string value under a string key; callers own the
// serialization.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

var ErrUnknownBackend = errors.New("unknown storage backend")

type Store interface {
	// Get returns the value under key. A missing key is ok == false, not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Backend names accepted by the storage configuration.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

func validKey(key string) error {
	if key == "" {
		return fmt.Errorf("storage: empty key")
	}
	return nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
