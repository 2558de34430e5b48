package repository

import (
	"context"
	"errors"
	"time"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	"gorm.io/gorm"
)

type PostgresRestrictionRepository struct {
	db    *gorm.DB
	clock func() time.Time
}

func NewRestrictionRepository(db *gorm.DB) RestrictionRepository {
	return &PostgresRestrictionRepository{db: db, clock: time.Now}
}

func (r *PostgresRestrictionRepository) ActiveRestriction(ctx context.Context, userID int64) (domain.UserRestriction, error) {
	var row domain.UserRestriction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", r.clock().UTC()).
		Order("issued_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserRestriction{}, hub_errors.ErrNotFound
		}
		return domain.UserRestriction{}, err
	}
	return row, nil
}
