package repository

import (
	"context"
	"errors"
	"strings"

	"mediahub/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &PostgresConfigRepository{db: db}
}

func (r *PostgresConfigRepository) GetValue(ctx context.Context, key string) (string, error) {
	var row domain.BotConfig
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.Value, nil
}

func (r *PostgresConfigRepository) SetValue(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&domain.BotConfig{Key: key, Value: value}).Error
}

func (r *PostgresConfigRepository) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	val, err := r.GetValue(ctx, key)
	if err != nil {
		return fallback, err
	}
	if val == "" {
		return fallback, nil
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes":
		return true, nil
	default:
		return false, nil
	}
}
