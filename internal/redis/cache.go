package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - dedup:{chat_id}:{fingerprint} - 24h TTL, duplicate suppression marker
// - nudge:{chat_id}               - 24h TTL, paywall nudge cooldown
// - missed:{chat_id}:{yyyymmdd}   - 48h TTL, daily missed-message counter
// - entitled:{chat_id}            - 5m TTL, entitlement cache ("1"/"0")
// - alias:{user_id}               - 5m TTL, pseudonym cache
// - restrict:{user_id}            - 5m TTL, moderation cache
// - pause:global                  - engine-wide dispatch pause flag

// CacheConfig contains TTLs for the engine's fast-store keys.
type CacheConfig struct {
	DedupTTL       time.Duration
	NudgeCooldown  time.Duration
	EntitlementTTL time.Duration
	AliasTTL       time.Duration
	RestrictionTTL time.Duration
}

// DefaultCacheConfig returns sensible defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DedupTTL:       24 * time.Hour,
		NudgeCooldown:  24 * time.Hour,
		EntitlementTTL: 5 * time.Minute,
		AliasTTL:       5 * time.Minute,
		RestrictionTTL: 5 * time.Minute,
	}
}

// EngineCache holds the engine's small atomic fast-store cells.
type EngineCache struct {
	client *goredis.Client
	config CacheConfig
	clock  func() time.Time
}

// NewEngineCache creates a new cache store.
func NewEngineCache(client *goredis.Client, config CacheConfig) *EngineCache {
	return &EngineCache{client: client, config: config, clock: time.Now}
}

// --- Dedup markers ---

// MarkSeen atomically test-and-sets the dedup marker for a fingerprint in
// one source chat. Returns true when the marker already existed, i.e. the
// message is a duplicate and must be dropped.
func (c *EngineCache) MarkSeen(ctx context.Context, sourceChatID int64, fingerprint string) (bool, error) {
	key := fmt.Sprintf("dedup:%d:%s", sourceChatID, fingerprint)
	wasNew, err := c.client.SetNX(ctx, key, "1", c.config.DedupTTL).Result()
	if err != nil {
		return false, err
	}
	return !wasNew, nil
}

// --- Paywall nudges ---

// NudgeAllowed test-and-sets the 24h nudge cooldown for a source chat.
// Returns true exactly once per cooldown window.
func (c *EngineCache) NudgeAllowed(ctx context.Context, chatID int64) (bool, error) {
	key := fmt.Sprintf("nudge:%d", chatID)
	return c.client.SetNX(ctx, key, "1", c.config.NudgeCooldown).Result()
}

// RecordMissed increments the daily missed-message counter for a chat and
// returns the new count.
func (c *EngineCache) RecordMissed(ctx context.Context, chatID int64) (int64, error) {
	key := c.missedKey(chatID)
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = c.client.Expire(ctx, key, 48*time.Hour).Err()
	}
	return count, nil
}

// MissedToday returns the number of messages the chat missed today.
func (c *EngineCache) MissedToday(ctx context.Context, chatID int64) (int64, error) {
	count, err := c.client.Get(ctx, c.missedKey(chatID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return count, err
}

func (c *EngineCache) missedKey(chatID int64) string {
	return fmt.Sprintf("missed:%d:%s", chatID, c.clock().UTC().Format("20060102"))
}

// --- Entitlement cache ---

// GetEntitled returns the cached entitlement verdict, or nil on a miss.
func (c *EngineCache) GetEntitled(ctx context.Context, chatID int64) (*bool, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf("entitled:%d", chatID)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entitled := val == "1"
	return &entitled, nil
}

// SetEntitled caches the entitlement verdict for 5 minutes.
func (c *EngineCache) SetEntitled(ctx context.Context, chatID int64, entitled bool) error {
	val := "0"
	if entitled {
		val = "1"
	}
	return c.client.Set(ctx, fmt.Sprintf("entitled:%d", chatID), val, c.config.EntitlementTTL).Err()
}

// InvalidateEntitled drops the cached verdict after a purchase or grant.
func (c *EngineCache) InvalidateEntitled(ctx context.Context, chatID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("entitled:%d", chatID)).Err()
}

// --- Alias cache ---

func (c *EngineCache) GetAlias(ctx context.Context, userID int64) (string, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf("alias:%d", userID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

func (c *EngineCache) SetAlias(ctx context.Context, userID int64, alias string) error {
	return c.client.Set(ctx, fmt.Sprintf("alias:%d", userID), alias, c.config.AliasTTL).Err()
}

// --- Restriction cache ---

// GetRestriction returns the cached moderation label ("none", "muted",
// "banned"), or "" on a miss.
func (c *EngineCache) GetRestriction(ctx context.Context, userID int64) (string, error) {
	val, err := c.client.Get(ctx, fmt.Sprintf("restrict:%d", userID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

func (c *EngineCache) SetRestriction(ctx context.Context, userID int64, label string) error {
	return c.client.Set(ctx, fmt.Sprintf("restrict:%d", userID), label, c.config.RestrictionTTL).Err()
}

// InvalidateRestriction drops the cached label after a moderation action.
func (c *EngineCache) InvalidateRestriction(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, fmt.Sprintf("restrict:%d", userID)).Err()
}

// --- Global pause flag ---

const pauseKey = "pause:global"

// GlobalPaused reads the engine-wide dispatch pause flag. Read on the hot
// path, so it is a single GET.
func (c *EngineCache) GlobalPaused(ctx context.Context) (bool, error) {
	val, err := c.client.Get(ctx, pauseKey).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// SetGlobalPause raises the pause flag, optionally with an expiry.
func (c *EngineCache) SetGlobalPause(ctx context.Context, ttl time.Duration) error {
	return c.client.Set(ctx, pauseKey, "1", ttl).Err()
}

// ClearGlobalPause lowers the pause flag.
func (c *EngineCache) ClearGlobalPause(ctx context.Context) error {
	return c.client.Del(ctx, pauseKey).Err()
}

// --- Trial reminders ---

// ReminderOnce test-and-sets the per-chat reminder marker so each
// days-before-expiry reminder is delivered at most once.
func (c *EngineCache) ReminderOnce(ctx context.Context, chatID int64, daysLeft int) (bool, error) {
	key := fmt.Sprintf("trial_remind:%d:%d", chatID, daysLeft)
	return c.client.SetNX(ctx, key, "1", 48*time.Hour).Result()
}
