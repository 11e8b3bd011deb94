package middleware

import (
	"sync"
	"time"
)

// limiterKey — пользователь в конкретном чате.
type limiterKey struct {
	chatID int64
	userID int64
}

// RateLimiter ограничивает число команд от пользователя в чате.
// Использует алгоритм скользящего окна. Обычные сообщения через него не идут.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[limiterKey][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[limiterKey][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop(5 * time.Minute)
	return rl
}

// Close останавливает фоновую горутину очистки. Вызывается на shutdown.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow фиксирует команду и отвечает, укладывается ли она в лимит.
func (rl *RateLimiter) Allow(chatID, userID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := limiterKey{chatID: chatID, userID: userID}
	now := rl.now()
	recent := rl.recent(rl.requests[key], now)

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// recent оставляет отметки внутри окна. Вызывается под mu.
func (rl *RateLimiter) recent(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, times := range rl.requests {
		recent := rl.recent(times, now)
		if len(recent) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = recent
		}
	}
}
