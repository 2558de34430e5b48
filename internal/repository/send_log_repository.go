package repository

import (
	"context"
	"errors"
	"time"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	"gorm.io/gorm"
)

type PostgresSendLogRepository struct {
	db *gorm.DB
}

func NewSendLogRepository(db *gorm.DB) SendLogRepository {
	return &PostgresSendLogRepository{db: db}
}

func (r *PostgresSendLogRepository) Record(ctx context.Context, entry *domain.SendLog) error {
	res := r.db.WithContext(ctx).Create(entry)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return hub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresSendLogRepository) ForwardLookup(ctx context.Context, sourceChatID, sourceMessageID int64) ([]domain.SendLog, error) {
	var rows []domain.SendLog
	err := r.db.WithContext(ctx).
		Where("source_chat_id = ? AND source_message_id = ?", sourceChatID, sourceMessageID).
		Order("dest_chat_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresSendLogRepository) DestMessageID(ctx context.Context, sourceChatID, sourceMessageID, destChatID int64) (int64, error) {
	var row domain.SendLog
	err := r.db.WithContext(ctx).
		Where("source_chat_id = ? AND source_message_id = ? AND dest_chat_id = ?",
			sourceChatID, sourceMessageID, destChatID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.DestMessageID, nil
}

func (r *PostgresSendLogRepository) ReverseLookup(ctx context.Context, destChatID, destMessageID int64) (domain.SendLog, error) {
	var row domain.SendLog
	err := r.db.WithContext(ctx).
		Where("dest_chat_id = ? AND dest_message_id = ?", destChatID, destMessageID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SendLog{}, hub_errors.ErrNotFound
		}
		return domain.SendLog{}, err
	}
	return row, nil
}

func (r *PostgresSendLogRepository) PruneBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	// Bounded batches keep the delete from holding long locks on the table.
	res := r.db.WithContext(ctx).Exec(
		"DELETE FROM send_log WHERE id IN (SELECT id FROM send_log WHERE created_at < ? LIMIT ?)",
		cutoff, batchSize,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
