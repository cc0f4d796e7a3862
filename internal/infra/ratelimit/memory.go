package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"consentledger/internal/domain"
)

type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

type window struct {
	count int
	endAt time.Time
}

// NewMemoryLimiter is a fixed-window limiter for single-process
// deployments. maxKeys bounds memory under key churn; expired windows are
// collected lazily when the cap is hit.
func NewMemoryLimiter(now func() time.Time, maxKeys int) domain.RateLimiter {
	if now == nil {
		now = time.Now
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	return &memoryLimiter{
		now:     now,
		windows: make(map[string]*window),
		maxKeys: maxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, windowSize time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if ok && now.After(w.endAt) {
		delete(m.windows, key)
		ok = false
	}
	if !ok {
		if len(m.windows) >= m.maxKeys {
			m.collect(now)
		}
		if len(m.windows) >= m.maxKeys {
			return domain.RateLimitDecision{}, errors.New("rate limiter capacity exceeded")
		}
		w = &window{endAt: now.Add(windowSize)}
		m.windows[key] = w
	}

	if w.count >= limit {
		return domain.RateLimitDecision{Limit: limit, ResetAt: w.endAt}, nil
	}
	w.count++
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   w.endAt,
	}, nil
}

func (m *memoryLimiter) collect(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.endAt) {
			delete(m.windows, key)
		}
	}
}
