package ratelimiting

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/krispingal/regbridge/internal/domain"
)

const (
	shardCount    = 32
	sweepInterval = time.Minute
)

type attemptRecord struct {
	mu       sync.Mutex
	count    int
	lastSeen time.Time
	evicted  bool // set once the record has been dropped from its shard
}

type shard struct {
	mu        sync.RWMutex
	records   map[string]*attemptRecord
	lastSweep time.Time
}

// AttemptWindowLimiter counts registration attempts per client IP. Once an IP
// has made attemptLimit attempts it is blocked until windowDuration has passed
// since its last attempt. Windows are reset lazily on the next check, there is
// no background timer.
type AttemptWindowLimiter struct {
	shards         [shardCount]*shard
	attemptLimit   int
	windowDuration time.Duration
	maxPerShard    int
	now            func() time.Time
}

var _ domain.AttemptLimiter = (*AttemptWindowLimiter)(nil)

// NewAttemptWindowLimiter creates a limiter. maxEntries is a soft bound on the
// number of tracked IPs; records still inside their window are never dropped to
// honour it. Zero means unbounded.
func NewAttemptWindowLimiter(attemptLimit int, windowDuration time.Duration, maxEntries int) *AttemptWindowLimiter {
	rl := &AttemptWindowLimiter{
		attemptLimit:   attemptLimit,
		windowDuration: windowDuration,
		now:            time.Now,
	}
	if maxEntries > 0 {
		rl.maxPerShard = (maxEntries + shardCount - 1) / shardCount
	}
	for i := range rl.shards {
		rl.shards[i] = &shard{records: make(map[string]*attemptRecord)}
	}
	return rl
}

func (rl *AttemptWindowLimiter) shardFor(ip string) *shard {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return rl.shards[h.Sum32()%shardCount]
}

func (rl *AttemptWindowLimiter) IsBlocked(ip string) bool {
	s := rl.shardFor(ip)
	s.mu.RLock()
	rec, ok := s.records[ip]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	now := rl.now()
	if now.Sub(rec.lastSeen) > rl.windowDuration {
		rec.count = 0
		rec.lastSeen = now
		return false
	}
	return rec.count >= rl.attemptLimit
}

func (rl *AttemptWindowLimiter) RecordAttempt(ip string) {
	s := rl.shardFor(ip)
	for {
		rec := rl.loadOrCreate(s, ip)
		rec.mu.Lock()
		if rec.evicted {
			// Swept between lookup and lock; start over with a fresh record.
			rec.mu.Unlock()
			continue
		}
		now := rl.now()
		rec.count++
		if now.After(rec.lastSeen) {
			rec.lastSeen = now
		}
		rec.mu.Unlock()
		return
	}
}

func (rl *AttemptWindowLimiter) loadOrCreate(s *shard, ip string) *attemptRecord {
	s.mu.RLock()
	rec, ok := s.records[ip]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[ip]; ok {
		return rec
	}
	now := rl.now()
	if rl.maxPerShard > 0 && len(s.records) >= rl.maxPerShard && now.Sub(s.lastSweep) >= sweepInterval {
		rl.sweepLocked(s, now)
	}
	rec = &attemptRecord{}
	s.records[ip] = rec
	return rec
}

// sweepLocked drops records whose window has elapsed. Caller holds s.mu.
func (rl *AttemptWindowLimiter) sweepLocked(s *shard, now time.Time) {
	s.lastSweep = now
	for ip, rec := range s.records {
		rec.mu.Lock()
		if now.Sub(rec.lastSeen) > rl.windowDuration {
			rec.evicted = true
			delete(s.records, ip)
		}
		rec.mu.Unlock()
	}
}

// GetState returns a copy of the attempt count for every tracked IP
func (rl *AttemptWindowLimiter) GetState() map[string]int {
	state := make(map[string]int)
	for _, s := range rl.shards {
		s.mu.RLock()
		for ip, rec := range s.records {
			rec.mu.Lock()
			state[ip] = rec.count
			rec.mu.Unlock()
		}
		s.mu.RUnlock()
	}
	return state
}

// Len returns the number of tracked IPs
func (rl *AttemptWindowLimiter) Len() int {
	n := 0
	for _, s := range rl.shards {
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

func (rl *AttemptWindowLimiter) GetRateLimit() (int, time.Duration) {
	return rl.attemptLimit, rl.windowDuration
}
