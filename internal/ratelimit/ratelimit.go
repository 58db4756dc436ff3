// Package ratelimit counts attempts per key within a fixed time window.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

const (
	defaultWindow = 15 * time.Minute
	defaultMax    = 20
)

// Counter keeps attempt counters in fixed windows
// A fixed window lets up to 2*Max attempts through around the window boundary:
// Max at the end of one window and Max at the start of the next one
type Counter interface {
	// Hit increments counter of the key and returns the new value
	// The window starts with the first hit, counter is dropped when it ends
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)

	// Undo reverts one hit of the key if the window is still open
	Undo(ctx context.Context, key string) error
}

type Config struct {
	// Window length
	// If not set than default is used
	Window time.Duration

	// Max attempts allowed in the window
	// If not set than default is used
	Max int
}

type Limiter struct {
	counter Counter
	window  time.Duration
	max     int64
}

func New(counter Counter, cfg Config) (*Limiter, error) {
	if counter == nil {
		return nil, errors.New("counter must not be nil")
	}
	if cfg.Window == 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Max == 0 {
		cfg.Max = defaultMax
	}
	if cfg.Window < 0 || cfg.Max < 0 {
		return nil, errors.New("rate limit window and max must be positive")
	}

	return &Limiter{
		counter: counter,
		window:  cfg.Window,
		max:     int64(cfg.Max),
	}, nil
}

func (l *Limiter) Window() time.Duration { return l.window }

// Allow counts the attempt and reports whether it's within the limit
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.counter.Hit(ctx, key, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.max, nil
}

// Forget the attempt, e.g. if it turns out to be successful
func (l *Limiter) Forget(ctx context.Context, key string) error {
	return l.counter.Undo(ctx, key)
}
