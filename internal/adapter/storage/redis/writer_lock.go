package redis

import (
	"context"
	"time"

	"core-ledger/pkg/apperror"

	"github.com/go-redsync/redsync/v4"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultWriterLockKey is shared by every process writing the same ledger.
const DefaultWriterLockKey = "core-ledger:writer"

// WriterLockOptions tunes lock acquisition.
type WriterLockOptions struct {
	Key        string
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultWriterLockOptions waits up to about two seconds for the lock.
func DefaultWriterLockOptions() WriterLockOptions {
	return WriterLockOptions{
		Key:        DefaultWriterLockKey,
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 100 * time.Millisecond,
	}
}

// WriterLock implements ports.WriterLock with a redsync mutex, so the API and
// the CLI never run two units of work against the same ledger at once.
type WriterLock struct {
	rs   *redsync.Redsync
	opts WriterLockOptions
	log  zerolog.Logger
}

// NewWriterLock creates a WriterLock on client.
func NewWriterLock(client *goredis.Client, opts WriterLockOptions, log zerolog.Logger) *WriterLock {
	return &WriterLock{
		rs:   redsync.New(rsgoredis.NewPool(client)),
		opts: opts,
		log:  log,
	}
}

// WithLock runs fn while holding the writer lock. Failing to acquire the
// lock returns SYS_002; fn's own error is returned unchanged.
func (l *WriterLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(l.opts.Key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		l.log.Warn().Err(err).Str("lock_key", l.opts.Key).Msg("writer lock not acquired")
		return apperror.ErrLockTimeout(err)
	}
	defer func() {
		// Unlock with a fresh context: ctx may already be cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.log.Error().Err(err).Str("lock_key", l.opts.Key).Bool("unlock_ok", ok).Msg("failed to release writer lock")
		}
	}()

	return fn(ctx)
}
