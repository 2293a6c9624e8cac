// Package ratelimit holds the process-local limiter used when no Redis is
// configured.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultMaxKeys = 10000

type bucket struct {
	start time.Time
	count int
}

// Option tunes a Memory limiter.
type Option func(*Memory)

// WithMaxKeys bounds how many client windows are tracked at once.
func WithMaxKeys(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.maxKeys = n
		}
	}
}

// Memory is a fixed-window limiter kept in process memory. Counts are not
// shared between instances. Once maxKeys live windows exist, requests under
// unseen keys are rejected until a window expires.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	maxKeys int
	now     func() time.Time
	buckets map[string]*bucket
	sweepAt time.Time
}

// NewMemory allows limit requests per key in each window.
func NewMemory(limit int, window time.Duration, opts ...Option) *Memory {
	m := &Memory{
		limit:   limit,
		window:  window,
		maxKeys: defaultMaxKeys,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow counts one request under key. It never fails.
func (m *Memory) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	w, ok := m.buckets[key]
	if !ok || now.Sub(w.start) >= m.window {
		if !ok && len(m.buckets) >= m.maxKeys {
			m.sweepAt = time.Time{}
			m.sweep(now)
			if len(m.buckets) >= m.maxKeys {
				return false, m.oldestExpiry(now), nil
			}
		}
		w = &bucket{start: now}
		m.buckets[key] = w
	}
	w.count++
	if w.count > m.limit {
		return false, w.start.Add(m.window).Sub(now), nil
	}
	return true, 0, nil
}

// sweep drops expired windows at most once per window length.
func (m *Memory) sweep(now time.Time) {
	if now.Before(m.sweepAt) {
		return
	}
	for k, w := range m.buckets {
		if now.Sub(w.start) >= m.window {
			delete(m.buckets, k)
		}
	}
	m.sweepAt = now.Add(m.window)
}

// oldestExpiry is how long until the earliest tracked window frees its slot.
func (m *Memory) oldestExpiry(now time.Time) time.Duration {
	wait := m.window
	for _, w := range m.buckets {
		if d := w.start.Add(m.window).Sub(now); d < wait {
			wait = d
		}
	}
	return wait
}
