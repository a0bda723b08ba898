package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const trackerShards = 64

// memoryTracker implements AbuseTracker in process. Keys are spread over
// striped shards so unrelated IPs and fingerprints do not share a lock.
type memoryTracker struct {
	shards    [trackerShards]trackerShard
	lastSweep atomic.Int64
}

type trackerShard struct {
	mu           sync.Mutex
	attempts     map[string]*ipWindow
	fingerprints map[string]map[string]struct{}
}

type ipWindow struct {
	times  []time.Time
	window time.Duration
}

// NewMemoryTracker creates an in-process abuse tracker.
func NewMemoryTracker() AbuseTracker {
	t := &memoryTracker{}
	for i := range t.shards {
		t.shards[i].attempts = make(map[string]*ipWindow)
		t.shards[i].fingerprints = make(map[string]map[string]struct{})
	}
	return t
}

func (t *memoryTracker) shard(key string) *trackerShard {
	return &t.shards[xxhash.Sum64String(key)%trackerShards]
}

// RecordAttempt records an attempt and counts attempts in the trailing window
func (t *memoryTracker) RecordAttempt(ctx context.Context, ip string, now time.Time, window time.Duration) (int, error) {
	t.maybeSweep(now, window)

	s := t.shard(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.attempts[ip]
	if !ok {
		w = &ipWindow{}
		s.attempts[ip] = w
	}
	w.window = window
	w.times = pruneBefore(w.times, now.Add(-window))
	w.times = append(w.times, now)
	return len(w.times), nil
}

// BindFingerprint binds wallet to fingerprint within the fan-out limit
func (t *memoryTracker) BindFingerprint(ctx context.Context, fingerprint, wallet string, maxWallets int) (bool, error) {
	s := t.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, ok := s.fingerprints[fingerprint]
	if !ok {
		wallets = make(map[string]struct{})
		s.fingerprints[fingerprint] = wallets
	}
	if _, bound := wallets[wallet]; bound {
		return true, nil
	}
	if len(wallets) >= maxWallets {
		return false, nil
	}
	wallets[wallet] = struct{}{}
	return true, nil
}

// maybeSweep evicts expired IP windows at most once per window length.
func (t *memoryTracker) maybeSweep(now time.Time, every time.Duration) {
	last := t.lastSweep.Load()
	if now.UnixNano()-last < int64(every) {
		return
	}
	if !t.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	t.sweep(now)
}

// sweep drops every IP whose newest attempt has left its window.
func (t *memoryTracker) sweep(now time.Time) int {
	evicted := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for ip, w := range s.attempts {
			w.times = pruneBefore(w.times, now.Add(-w.window))
			if len(w.times) == 0 {
				delete(s.attempts, ip)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}

// trackedIPs reports how many IP windows are held.
func (t *memoryTracker) trackedIPs() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.attempts)
		s.mu.Unlock()
	}
	return n
}

func pruneBefore(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, at := range times {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
