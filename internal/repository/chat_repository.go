package repository

import (
	"context"
	"errors"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) Upsert(ctx context.Context, chat *domain.Chat) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "title", "username", "active", "updated_at",
		}),
	}).Create(chat)
	return res.Error
}

func (r *PostgresChatRepository) Get(ctx context.Context, chatID int64) (domain.Chat, error) {
	var c domain.Chat
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Chat{}, hub_errors.ErrNotFound
		}
		return domain.Chat{}, err
	}
	return c, nil
}

func (r *PostgresChatRepository) ActiveDestinations(ctx context.Context) ([]domain.Chat, error) {
	var chats []domain.Chat
	err := r.db.WithContext(ctx).
		Where("active = ? AND is_destination = ?", true, true).
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *PostgresChatRepository) IsActiveSource(ctx context.Context, chatID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("chat_id = ? AND active = ? AND is_source = ?", chatID, true, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresChatRepository) Deactivate(ctx context.Context, chatID int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("chat_id = ?", chatID).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hub_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChatRepository) Rename(ctx context.Context, oldID, newID int64) error {
	var existing int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("chat_id = ?", newID).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		// The migrated-to chat is already registered; retire the old row.
		return r.Deactivate(ctx, oldID)
	}
	res := r.db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("chat_id = ?", oldID).
		Updates(map[string]interface{}{"chat_id": newID, "kind": domain.ChatKindSupergroup})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hub_errors.ErrNotFound
	}
	return nil
}
