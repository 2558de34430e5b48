package repository

import (
	"testing"

	"mediahub/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Chat{},
		&domain.SendLog{},
		&domain.Subscription{},
		&domain.UserAlias{},
		&domain.UserRestriction{},
		&domain.BotConfig{},
	))
	return db
}
