package repository

import (
	"context"
	"errors"
	"time"

	"mediahub/internal/domain"

	"gorm.io/gorm"
)

type PostgresSubscriptionRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db, clock: time.Now}
}

func (r *PostgresSubscriptionRepository) PaidUntil(ctx context.Context, chatID int64) (time.Time, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("expires_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return sub.ExpiresAt, nil
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, chatID, userID int64, plan string, stars int, days int) (domain.Subscription, error) {
	now := r.clock().UTC()

	// Stack on top of an active subscription if one exists.
	start := now
	if until, err := r.PaidUntil(ctx, chatID); err != nil {
		return domain.Subscription{}, err
	} else if until.After(now) {
		start = until
	}

	sub := domain.Subscription{
		ChatID:    chatID,
		UserID:    userID,
		Plan:      plan,
		Stars:     stars,
		StartsAt:  start,
		ExpiresAt: start.AddDate(0, 0, days),
	}
	if err := r.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

func (r *PostgresSubscriptionRepository) ExpiringTrials(ctx context.Context, trialDays, daysBefore int) ([]domain.Chat, error) {
	now := r.clock().UTC()
	target := now.AddDate(0, 0, daysBefore)

	// Trial expiry = registered_at + trialDays. We want chats whose expiry
	// falls within (target - 1d, target].
	upper := target.AddDate(0, 0, -trialDays)
	lower := upper.AddDate(0, 0, -1)

	var chats []domain.Chat
	err := r.db.WithContext(ctx).
		Where("active = ? AND registered_at > ? AND registered_at <= ?", true, lower, upper).
		Where("chat_id NOT IN (?)",
			r.db.Model(&domain.Subscription{}).
				Select("chat_id").
				Where("expires_at > ?", now),
		).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}
