package storage

import (
	"context"
	"fmt"
)

type Options struct {
	Backend string

	Dir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PostgresDSN string
}

// Open builds the store named by opts.Backend. The returned close func
// releases any connection the store holds and is safe to call once.
func Open(ctx context.Context, opts Options) (Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch opts.Backend {
	case BackendMemory:
		return NewMemStore(), noop, nil

	case BackendFile, "":
		s, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case BackendRedis:
		client, err := DialRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client), func(context.Context) error { return client.Close() }, nil

	case BackendPostgres:
		pool, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s := NewPostgresStore(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return s, func(context.Context) error { pool.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
