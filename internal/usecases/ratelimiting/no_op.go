package ratelimiting

import (
	"time"
)

type NoOpRateLimiter struct{}

func (d NoOpRateLimiter) IsBlocked(ip string) bool { return false }

func (d NoOpRateLimiter) RecordAttempt(ip string) {}

func (d NoOpRateLimiter) GetRateLimit() (int, time.Duration) { return 0, 0 }
