// Package store is the persistent record store every domain service goes through.
//
// THE CONTRACT:
// A collection is a named value (a slice of records, or a struct of maps) that
// is persisted as ONE blob. There are exactly two ways to touch it:
//
//	v, err := store.Get(ctx, s, repository.Likes)                  // snapshot
//	n, err := store.Mutate(ctx, s, repository.Likes, func(cur []model.Like) ([]model.Like, int, error) {
//	    return append(cur, like), len(cur) + 1, nil                 // read-modify-write
//	})
//
// Get and Mutate on the same collection are mutually exclusive and are served
// in arrival order, so two concurrent likes can never read the same snapshot
// and overwrite each other. Different collections never block each other, and
// no call ever holds two collection locks at once, so cross-collection
// sequences cannot deadlock.
//
// FAILURE POLICY:
// A collection that cannot be read or decoded is logged (kind=StoreCorrupt)
// and reset to its default value. Malformed bytes are archived first when the
// backend supports it. A backend read error, transient or not, is treated the
// same way and has nothing to archive.
// Availability wins over the lost content; the reset is counted in
// ziphub_store_reinitialized_total so it does not go unnoticed.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/semaphore"

	"github.com/sakif/ziphub/internal/apperror"
)

// Collection names a collection and the value it starts with.
type Collection[T any] struct {
	Name    string
	Default func() T
}

// Store serializes access to collections held by a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// New creates a Store over backend. Collections are created lazily on first access.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		locks:   make(map[string]*semaphore.Weighted),
	}
}

// NewID returns a fresh globally-unique record id.
func (s *Store) NewID() string {
	return xid.New().String()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// acquire takes the collection lock. A weighted semaphore of size one is used
// instead of sync.Mutex because its waiters are served strictly FIFO.
func (s *Store) acquire(ctx context.Context, name string) (func(), error) {
	s.mu.Lock()
	sem, ok := s.locks[name]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.locks[name] = sem
	}
	s.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("store: waiting for %s: %w", name, err)
	}
	return func() { sem.Release(1) }, nil
}

// Get returns a snapshot of the collection. The value is decoded fresh for
// every call, so callers may modify it freely.
func Get[T any](ctx context.Context, s *Store, c Collection[T]) (T, error) {
	start := time.Now()
	var zero T
	if err := ValidateName(c.Name); err != nil {
		return zero, err
	}

	release, err := s.acquire(ctx, c.Name)
	if err != nil {
		observe(c.Name, opGet, resultError, start)
		return zero, err
	}
	defer release()

	v, _, err := load(context.WithoutCancel(ctx), s, c)
	if err != nil {
		observe(c.Name, opGet, resultError, start)
		return zero, err
	}
	observe(c.Name, opGet, resultOK, start)
	return v, nil
}

// Mutate applies fn to the current value under the collection lock and
// persists the value fn returns before returning fn's result.
//
// If fn returns an error nothing is written and the error is returned as is,
// which lets domain code reject an operation from inside the critical section.
// If the new value encodes to the same bytes as the stored one, the write is
// skipped.
//
// Once the lock is held the mutation runs to completion even if ctx is
// cancelled; ctx only bounds the wait for the lock.
func Mutate[T, R any](ctx context.Context, s *Store, c Collection[T], fn func(T) (T, R, error)) (R, error) {
	start := time.Now()
	var zero R
	if err := ValidateName(c.Name); err != nil {
		return zero, err
	}

	release, err := s.acquire(ctx, c.Name)
	if err != nil {
		observe(c.Name, opMutate, resultError, start)
		return zero, err
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	cur, raw, err := load(ctx, s, c)
	if err != nil {
		observe(c.Name, opMutate, resultError, start)
		return zero, err
	}

	next, result, err := fn(cur)
	if err != nil {
		observe(c.Name, opMutate, resultAborted, start)
		return zero, err
	}

	data, err := encode(next)
	if err != nil {
		observe(c.Name, opMutate, resultError, start)
		return zero, fmt.Errorf("store: encoding %s: %w", c.Name, err)
	}
	if bytes.Equal(data, raw) {
		writesSkipped.WithLabelValues(c.Name).Inc()
		observe(c.Name, opMutate, resultOK, start)
		return result, nil
	}
	if err := s.backend.Save(ctx, c.Name, data); err != nil {
		observe(c.Name, opMutate, resultError, start)
		return zero, fmt.Errorf("store: saving %s: %w", c.Name, err)
	}

	observe(c.Name, opMutate, resultOK, start)
	return result, nil
}

// load reads and decodes the collection, initializing it when it is absent or
// unusable. The returned bytes are what is currently persisted.
func load[T any](ctx context.Context, s *Store, c Collection[T]) (T, []byte, error) {
	raw, err := s.backend.Load(ctx, c.Name)
	switch {
	case errors.Is(err, ErrNotExist):
		s.logger.Debug("initializing collection", slog.String("collection", c.Name))
		return initialize(ctx, s, c)
	case err != nil:
		s.logger.Warn("collection unreadable, reinitializing to default",
			slog.String("collection", c.Name),
			slog.String("kind", apperror.ErrStoreCorrupt.Error()),
			slog.String("error", err.Error()),
		)
		reinitialized.WithLabelValues(c.Name, "unreadable").Inc()
		return initialize(ctx, s, c)
	}

	v := c.Default()
	if err := json.Unmarshal(raw, &v); err != nil {
		s.logger.Warn("collection malformed, reinitializing to default",
			slog.String("collection", c.Name),
			slog.String("kind", apperror.ErrStoreCorrupt.Error()),
			slog.Int("bytes", len(raw)),
			slog.String("error", err.Error()),
		)
		reinitialized.WithLabelValues(c.Name, "malformed").Inc()
		if a, ok := s.backend.(Archiver); ok {
			if err := a.Archive(ctx, c.Name, raw); err != nil {
				s.logger.Error("failed to archive corrupt collection",
					slog.String("collection", c.Name),
					slog.String("error", err.Error()),
				)
			}
		}
		return initialize(ctx, s, c)
	}
	return v, raw, nil
}

func initialize[T any](ctx context.Context, s *Store, c Collection[T]) (T, []byte, error) {
	v := c.Default()
	data, err := encode(v)
	if err != nil {
		var zero T
		return zero, nil, fmt.Errorf("store: encoding default for %s: %w", c.Name, err)
	}
	if err := s.backend.Save(ctx, c.Name, data); err != nil {
		var zero T
		return zero, nil, fmt.Errorf("store: initializing %s: %w", c.Name, err)
	}
	return v, data, nil
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
