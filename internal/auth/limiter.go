package auth

import (
	"context"
	"sync"
	"time"
)

// Rate-limit tuning for verification-code sends.
const (
	codeCooldown    = 60 * time.Second
	codeWindow      = 10 * time.Minute
	maxPerEmail     = 6
	maxPerIP        = 12
	cooldownSeconds = int(codeCooldown / time.Second)
)

// Decision is the outcome of a limiter reservation. RetryAfter is the
// number of seconds until the tripped guard clears; rejections are never
// silent drops.
type Decision struct {
	OK         bool
	RetryAfter int
}

// CodeLimiter guards verification-code sends with a per-email cooldown, a
// per-email sliding window, and a per-IP sliding window. Reserve consumes
// window capacity; MarkSent starts the cooldown once delivery succeeded.
type CodeLimiter interface {
	Reserve(ctx context.Context, email, ip string) (Decision, error)
	MarkSent(ctx context.Context, email string) error
}

// windowEntry tracks send counts for one key within a time window.
type windowEntry struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter keeps all counters in process memory. Counters reset on
// restart and are per-instance in multi-instance deployments; use the
// Redis-backed limiter when counters must be shared.
type MemoryLimiter struct {
	mu       sync.Mutex
	byEmail  map[string]*windowEntry
	byIP     map[string]*windowEntry
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewMemoryLimiter creates an in-memory code limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		byEmail:  make(map[string]*windowEntry),
		byIP:     make(map[string]*windowEntry),
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Reserve runs the three guards in order: cooldown, per-email window,
// per-IP window. The first rejection wins and reports its own retry-after.
func (l *MemoryLimiter) Reserve(ctx context.Context, email, ip string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if sent, ok := l.lastSent[email]; ok {
		if elapsed := now.Sub(sent); elapsed < codeCooldown {
			return rejected(codeCooldown - elapsed), nil
		}
	}

	if d := takeToken(l.byEmail, email, maxPerEmail, now); !d.OK {
		return d, nil
	}
	if d := takeToken(l.byIP, ip, maxPerIP, now); !d.OK {
		return d, nil
	}
	return Decision{OK: true}, nil
}

// MarkSent records a successful delivery, starting the cooldown.
func (l *MemoryLimiter) MarkSent(ctx context.Context, email string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSent[email] = l.now()
	return nil
}

// Reset clears all counters. For tests.
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byEmail = make(map[string]*windowEntry)
	l.byIP = make(map[string]*windowEntry)
	l.lastSent = make(map[string]time.Time)
}

// takeToken consumes one send from the key's window, starting a fresh
// window when the previous one has elapsed. Empty keys (no client IP
// resolvable) are not limited.
func takeToken(entries map[string]*windowEntry, key string, limit int, now time.Time) Decision {
	if key == "" {
		return Decision{OK: true}
	}

	entry, ok := entries[key]
	if !ok || now.Sub(entry.windowStart) > codeWindow {
		entries[key] = &windowEntry{count: 1, windowStart: now}
		return Decision{OK: true}
	}

	if entry.count >= limit {
		return rejected(codeWindow - now.Sub(entry.windowStart))
	}

	entry.count++
	return Decision{OK: true}
}

// rejected builds a rejection with the remaining wait rounded up to whole
// seconds, never less than one.
func rejected(remaining time.Duration) Decision {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return Decision{OK: false, RetryAfter: secs}
}
