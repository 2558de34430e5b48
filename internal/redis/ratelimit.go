package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediahub/internal/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:global - sorted set of ms timestamps, 1 s sliding window
// - cooldown:{chat_id} - last-send ms timestamp, per-chat spacing

const (
	globalWindow = time.Second
	pollInterval = 50 * time.Millisecond

	cooldownFast = time.Second     // private chats, channels
	cooldownSlow = 3 * time.Second // groups, supergroups

	breakerThreshold = 3               // consecutive errors per chat
	breakerPause     = 5 * time.Minute // per-chat open duration

	global429Threshold = 5  // 429s inside global429Window
	global429Window    = 60 * time.Second
	globalPause        = 30 * time.Second
)

// RateLimitConfig contains configuration for the send pacer.
type RateLimitConfig struct {
	GlobalLimit int // max sends per second across all chats
}

// DefaultRateLimitConfig returns sensible defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{GlobalLimit: 25}
}

// RateLimiter paces sends with a Redis-backed global token bucket and
// per-chat cooldowns, and tracks circuit-breaker state in memory.
// The bucket lives in Redis so multiple processes share one budget.
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
	clock  func() time.Time

	mu                sync.Mutex
	chatErrors        map[int64]int
	chatPausedUntil   map[int64]time.Time
	global429Times    []time.Time
	globalPausedUntil time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	if config.GlobalLimit <= 0 {
		config.GlobalLimit = DefaultRateLimitConfig().GlobalLimit
	}
	return &RateLimiter{
		client:          client,
		config:          config,
		clock:           time.Now,
		chatErrors:      make(map[int64]int),
		chatPausedUntil: make(map[int64]time.Time),
	}
}

// AcquireGlobal blocks until a slot is free in the global 1 s window.
func (r *RateLimiter) AcquireGlobal(ctx context.Context) error {
	const key = "ratelimit:global"
	for {
		now := r.clock()
		nowMs := now.UnixMilli()

		pipe := r.client.Pipeline()
		pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", nowMs-globalWindow.Milliseconds()))
		cardCmd := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("global rate check failed: %w", err)
		}

		if cardCmd.Val() < int64(r.config.GlobalLimit) {
			pipe = r.client.Pipeline()
			pipe.ZAdd(ctx, key, goredis.Z{Score: float64(nowMs), Member: uuid.NewString()})
			pipe.Expire(ctx, key, 2*globalWindow)
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("global rate claim failed: %w", err)
			}
			return nil
		}

		// Window full: wait for the oldest timestamp to age out.
		wait := pollInterval
		oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			age := time.Duration(nowMs-int64(oldest[0].Score)) * time.Millisecond
			if remaining := globalWindow - age; remaining > wait {
				wait = remaining
			}
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// AcquireChat blocks until the per-chat cooldown for destChatID has elapsed,
// then marks the send. Cooldown depends on the chat kind: 1 s for private
// chats and channels, 3 s for groups and supergroups.
func (r *RateLimiter) AcquireChat(ctx context.Context, destChatID int64, chatKind string) error {
	cooldown := CooldownFor(chatKind)
	key := fmt.Sprintf("cooldown:%d", destChatID)

	for {
		lastMs, err := r.client.Get(ctx, key).Int64()
		if err == goredis.Nil {
			break
		}
		if err != nil {
			return fmt.Errorf("cooldown check failed: %w", err)
		}
		elapsed := time.Duration(r.clock().UnixMilli()-lastMs) * time.Millisecond
		if elapsed >= cooldown {
			break
		}
		if err := sleepCtx(ctx, cooldown-elapsed); err != nil {
			return err
		}
	}

	return r.client.Set(ctx, key, r.clock().UnixMilli(), cooldown+2*time.Second).Err()
}

// CooldownFor returns the minimum spacing between sends to one chat.
func CooldownFor(chatKind string) time.Duration {
	switch chatKind {
	case domain.ChatKindGroup, domain.ChatKindSupergroup:
		return cooldownSlow
	default:
		return cooldownFast
	}
}

// DestinationOpen reports whether the per-chat circuit breaker is open and,
// if so, how long until it closes.
func (r *RateLimiter) DestinationOpen(destChatID int64) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.chatPausedUntil[destChatID]
	if !ok {
		return 0, false
	}
	remaining := until.Sub(r.clock())
	if remaining <= 0 {
		delete(r.chatPausedUntil, destChatID)
		return 0, false
	}
	return remaining, true
}

// GlobalPauseRemaining returns how long the global breaker stays open,
// or 0 when it is closed.
func (r *RateLimiter) GlobalPauseRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.globalPausedUntil.Sub(r.clock())
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// ReportSuccess resets the consecutive-error counter for a destination.
func (r *RateLimiter) ReportSuccess(destChatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chatErrors, destChatID)
}

// ReportError counts a send error against a destination. At the threshold
// the destination breaker trips for 5 minutes; returns true when tripped.
func (r *RateLimiter) ReportError(destChatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatErrors[destChatID]++
	if r.chatErrors[destChatID] >= breakerThreshold {
		r.chatPausedUntil[destChatID] = r.clock().Add(breakerPause)
		r.chatErrors[destChatID] = 0
		return true
	}
	return false
}

// Report429 counts a platform "too many requests" rejection. Five inside a
// 60 s window open the global breaker for 30 s; returns true when opened.
func (r *RateLimiter) Report429() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	kept := r.global429Times[:0]
	for _, t := range r.global429Times {
		if now.Sub(t) < global429Window {
			kept = append(kept, t)
		}
	}
	r.global429Times = append(kept, now)
	if len(r.global429Times) >= global429Threshold {
		r.globalPausedUntil = now.Add(globalPause)
		r.global429Times = r.global429Times[:0]
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
