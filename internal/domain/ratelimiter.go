package domain

import "time"

type AttemptLimiter interface {
	IsBlocked(ip string) bool           // Reports whether ip has used up its attempts for the current window
	RecordAttempt(ip string)            // Counts one registration attempt against ip
	GetRateLimit() (int, time.Duration) // Returns the attempt limit and the time window
}
