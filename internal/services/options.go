package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/helphive/backend/internal/lock"
)

const DefaultStoreTimeout = 3 * time.Second

// Options is shared by every service constructor. Zero fields take defaults.
type Options struct {
	Clock        func() time.Time
	StoreTimeout time.Duration
	// LockTimeout bounds the wait for a per-record lock. Defaults to StoreTimeout.
	LockTimeout time.Duration
	Metrics     Metrics
	// Locker serialises read-modify-write of user records. Defaults to an
	// in-process keyed mutex.
	Locker Locker
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = func() time.Time { return time.Now().UTC() }
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = o.StoreTimeout
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.Locker == nil {
		o.Locker = lock.NewKeyedMutex()
	}
	return o
}

// timed runs one storage call under the per-operation deadline and records its latency.
func (o Options) timed(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	o.Metrics.ObserveStorage(op, time.Since(start))
	return err
}

// locked runs fn while holding key on locker. The wait is bounded by LockTimeout.
func (o Options) locked(ctx context.Context, locker Locker, key string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, o.LockTimeout)
	defer cancel()

	start := time.Now()
	unlock, err := locker.Lock(lockCtx, key)
	o.Metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Printf("[Lock] wait timed out for %s", key)
			return fmt.Errorf("%w: %s is busy", ErrTimeout, key)
		}
		return fmt.Errorf("%w: lock %s: %v", ErrUnavailable, key, err)
	}
	defer unlock()

	return fn()
}
