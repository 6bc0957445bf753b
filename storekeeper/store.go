// Package storekeeper is the Coordination Service: the only package that
// touches the State Store. It wraps a Redis client and exposes the typed,
// atomic primitives the Transaction Engine needs (spec.md §4.1).
package storekeeper

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/skirmishlabs/vault/internal/logging"
)

var log = logging.New("storekeeper")

// DefaultMaxCASRetries is the bounded retry count for a single PREPARE-time
// CAS attempt (spec.md §4.1, reserve_pack).
const DefaultMaxCASRetries = 5

// Store is the Coordination Service. It is safe for concurrent use; the
// underlying go-redis client pools its own connections.
type Store struct {
	rdb            *redis.Client
	maxCASRetries  int
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithMaxCASRetries overrides DefaultMaxCASRetries.
func WithMaxCASRetries(n int) Option {
	return func(s *Store) { s.maxCASRetries = n }
}

// New wraps an already-configured *redis.Client. The caller owns the
// client's lifecycle (Close).
func New(rdb *redis.Client, opts ...Option) *Store {
	s := &Store{rdb: rdb, maxCASRetries: DefaultMaxCASRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping maps any failure onto ErrStoreUnavailable. The CAS-guarded
// operations (those built on casLoop) map timeouts and cancellations onto
// it as well; the other operations return the Redis client's error as is.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// casLoop runs fn under a WATCH/MULTI/EXEC optimistic transaction on the
// given keys, retrying on redis.TxFailedErr for at most maxCASRetries
// attempts in total. This
// is the single place the bounded-retry rule of spec.md §4.1 ("reserve_pack
// ... MUST retry up to a bounded number of attempts") is implemented, so
// every CAS-guarded operation shares the same policy.
func (s *Store) casLoop(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.maxCASRetries; attempt++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case isConnErr(err):
			return errors.Wrap(ErrStoreUnavailable, err.Error())
		default:
			return err
		}
	}
	return ErrConflict
}

func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	netErr, ok := err.(interface{ Timeout() bool })
	return ok && netErr.Timeout()
}

// redisTimeout bounds a single Redis round trip independent of the caller's
// context, so a stuck connection cannot hang a PREPARE indefinitely.
const redisTimeout = 2 * time.Second
