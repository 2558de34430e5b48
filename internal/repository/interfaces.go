package repository

import (
	"context"
	"time"

	"mediahub/internal/domain"
)

// ChatRepository is the registry view the engine consumes.
type ChatRepository interface {
	Upsert(ctx context.Context, chat *domain.Chat) error
	Get(ctx context.Context, chatID int64) (domain.Chat, error)
	ActiveDestinations(ctx context.Context) ([]domain.Chat, error)
	IsActiveSource(ctx context.Context, chatID int64) (bool, error)
	Deactivate(ctx context.Context, chatID int64) error
	// Rename handles group→supergroup migration. When the new id is already
	// registered the old row is deactivated instead.
	Rename(ctx context.Context, oldID, newID int64) error
}

// SendLogRepository persists the source↔destination message-id mappings.
type SendLogRepository interface {
	Record(ctx context.Context, entry *domain.SendLog) error
	// ForwardLookup returns every fan-out copy of a source message.
	ForwardLookup(ctx context.Context, sourceChatID, sourceMessageID int64) ([]domain.SendLog, error)
	// DestMessageID returns the copy of a source message in one destination,
	// or 0 when no mapping exists (never sent there, or pruned).
	DestMessageID(ctx context.Context, sourceChatID, sourceMessageID, destChatID int64) (int64, error)
	// ReverseLookup resolves a bot-sent message back to its origin.
	ReverseLookup(ctx context.Context, destChatID, destMessageID int64) (domain.SendLog, error)
	// PruneBefore deletes at most batchSize rows older than cutoff and
	// returns the number deleted. Callers loop until it returns 0.
	PruneBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// SubscriptionRepository tracks paid entitlements.
type SubscriptionRepository interface {
	// PaidUntil returns the latest expiry of any subscription for the chat,
	// or the zero time when the chat never paid.
	PaidUntil(ctx context.Context, chatID int64) (time.Time, error)
	// Create stacks a new subscription on top of any active one.
	Create(ctx context.Context, chatID, userID int64, plan string, stars int, days int) (domain.Subscription, error)
	// ExpiringTrials returns active chats whose trial ends in exactly
	// daysBefore days and that hold no active subscription.
	ExpiringTrials(ctx context.Context, trialDays, daysBefore int) ([]domain.Chat, error)
}

// AliasRepository persists user pseudonyms.
type AliasRepository interface {
	Get(ctx context.Context, userID int64) (string, error)
	Save(ctx context.Context, userID int64, alias string) error
}

// RestrictionRepository serves moderation lookups.
type RestrictionRepository interface {
	// ActiveRestriction returns the user's current mute/ban, or ErrNotFound.
	ActiveRestriction(ctx context.Context, userID int64) (domain.UserRestriction, error)
}

// ConfigRepository is the bot_config key/value store.
type ConfigRepository interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
}
