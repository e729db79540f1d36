// Package quota meters conversational turns per (user, lesson).
//
// Counting is delegated to a Store whose Incr must be atomic per key; the
// Ledger layers the free allowance and retention window on top and degrades
// open when the backend is unreachable.
package quota

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFreeAllowance = 3
	DefaultRetention     = 90 * 24 * time.Hour
)

var ErrInvalidKey = errors.New("quota key requires user id and lesson id")

// Key addresses one counter.
type Key struct {
	UserID   string
	LessonID string
}

func (k Key) valid() bool {
	return k.UserID != "" && k.LessonID != ""
}

// Store is a counter backend.
type Store interface {
	// Count returns the raw count of key, or 0 when absent or expired.
	Count(ctx context.Context, key Key) (int64, error)
	// Incr atomically adds one to key and returns the new raw count. A key
	// that is absent or expired starts over at 1 and lives for ttl.
	Incr(ctx context.Context, key Key, ttl time.Duration) (int64, error)
	// Decr atomically takes one back from a live key and returns the new raw
	// count. It never goes below zero and never creates a key.
	Decr(ctx context.Context, key Key) (int64, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls Ledger accounting. FreeAllowance is taken as given, so 0
// disables the free turns; negative values count as 0.
type Config struct {
	FreeAllowance int
	Retention     time.Duration
}

// DefaultConfig returns the standard allowance and retention.
func DefaultConfig() Config {
	return Config{FreeAllowance: DefaultFreeAllowance, Retention: DefaultRetention}
}

// Ledger exposes quota accounting to the conversation flow.
type Ledger struct {
	store         Store
	freeAllowance int
	retention     time.Duration
	logger        *zap.Logger
}

// NewLedger wraps store. A zero retention falls back to DefaultRetention.
func NewLedger(store Store, cfg Config, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FreeAllowance < 0 {
		cfg.FreeAllowance = 0
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	return &Ledger{
		store:         store,
		freeAllowance: cfg.FreeAllowance,
		retention:     cfg.Retention,
		logger:        logger.Named("quota"),
	}
}

// GetCount returns the raw count for (userID, lessonID). Backend failures
// are logged and reported as 0.
func (l *Ledger) GetCount(ctx context.Context, userID, lessonID string) int {
	key := Key{UserID: userID, LessonID: lessonID}
	if !key.valid() {
		return 0
	}

	count, err := l.store.Count(ctx, key)
	if err != nil {
		l.logger.Warn("quota read failed, treating as unused",
			zap.String("userId", userID), zap.String("lessonId", lessonID), zap.Error(err))
		return 0
	}
	return int(count)
}

// Increment atomically records one turn and returns the new raw count.
// Failures are logged and returned; callers must not block on them.
func (l *Ledger) Increment(ctx context.Context, userID, lessonID string) (int, error) {
	key := Key{UserID: userID, LessonID: lessonID}
	if !key.valid() {
		return 0, ErrInvalidKey
	}

	count, err := l.store.Incr(ctx, key, l.retention)
	if err != nil {
		l.logger.Error("quota increment failed",
			zap.String("userId", userID), zap.String("lessonId", lessonID), zap.Error(err))
		return 0, err
	}
	return int(count), nil
}

// Release takes back one turn recorded by Increment, for a reservation
// that was refused or whose generation failed.
func (l *Ledger) Release(ctx context.Context, userID, lessonID string) (int, error) {
	key := Key{UserID: userID, LessonID: lessonID}
	if !key.valid() {
		return 0, ErrInvalidKey
	}

	count, err := l.store.Decr(ctx, key)
	if err != nil {
		l.logger.Error("quota release failed",
			zap.String("userId", userID), zap.String("lessonId", lessonID), zap.Error(err))
		return 0, err
	}
	return int(count), nil
}

// Effective converts a raw count into the count compared against limits.
func (l *Ledger) Effective(raw int) int {
	if raw <= l.freeAllowance {
		return 0
	}
	return raw - l.freeAllowance
}

// EffectiveCount reads and converts in one step.
func (l *Ledger) EffectiveCount(ctx context.Context, userID, lessonID string) int {
	return l.Effective(l.GetCount(ctx, userID, lessonID))
}

// FreeAllowance returns the number of uncounted turns per key.
func (l *Ledger) FreeAllowance() int {
	return l.freeAllowance
}

// Ping checks the backend when it supports it.
func (l *Ledger) Ping(ctx context.Context) error {
	if p, ok := l.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
