package repository

import (
	"context"
	"errors"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	"gorm.io/gorm"
)

type PostgresAliasRepository struct {
	db *gorm.DB
}

func NewAliasRepository(db *gorm.DB) AliasRepository {
	return &PostgresAliasRepository{db: db}
}

func (r *PostgresAliasRepository) Get(ctx context.Context, userID int64) (string, error) {
	var row domain.UserAlias
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", hub_errors.ErrNotFound
		}
		return "", err
	}
	return row.Alias, nil
}

func (r *PostgresAliasRepository) Save(ctx context.Context, userID int64, alias string) error {
	res := r.db.WithContext(ctx).Create(&domain.UserAlias{UserID: userID, Alias: alias})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return hub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}
