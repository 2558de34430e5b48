package repository

import (
	"context"
	"testing"
	"time"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLogRecordAndLookups(t *testing.T) {
	db := newTestDB(t)
	repo := NewSendLogRepository(db)
	ctx := context.Background()

	entries := []*domain.SendLog{
		{SourceChatID: 100, SourceMessageID: 1, DestChatID: 200, DestMessageID: 55, SourceUserID: 9},
		{SourceChatID: 100, SourceMessageID: 1, DestChatID: 300, DestMessageID: 77, SourceUserID: 9},
	}
	for _, e := range entries {
		require.NoError(t, repo.Record(ctx, e))
	}

	rows, err := repo.ForwardLookup(ctx, 100, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(200), rows[0].DestChatID)
	assert.Equal(t, int64(300), rows[1].DestChatID)

	destMsgID, err := repo.DestMessageID(ctx, 100, 1, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(77), destMsgID)

	// A destination with no copy yields 0, not an error.
	destMsgID, err = repo.DestMessageID(ctx, 100, 1, 400)
	require.NoError(t, err)
	assert.Zero(t, destMsgID)

	origin, err := repo.ReverseLookup(ctx, 200, 55)
	require.NoError(t, err)
	assert.Equal(t, int64(100), origin.SourceChatID)
	assert.Equal(t, int64(1), origin.SourceMessageID)
	assert.Equal(t, int64(9), origin.SourceUserID)

	_, err = repo.ReverseLookup(ctx, 200, 999)
	assert.ErrorIs(t, err, hub_errors.ErrNotFound)
}

func TestSendLogUniqueDestination(t *testing.T) {
	db := newTestDB(t)
	repo := NewSendLogRepository(db)
	ctx := context.Background()

	first := &domain.SendLog{SourceChatID: 1, SourceMessageID: 10, DestChatID: 2, DestMessageID: 20}
	require.NoError(t, repo.Record(ctx, first))

	dup := &domain.SendLog{SourceChatID: 5, SourceMessageID: 50, DestChatID: 2, DestMessageID: 20}
	assert.ErrorIs(t, repo.Record(ctx, dup), hub_errors.ErrAlreadyExists)
}

func TestSendLogPruneBefore(t *testing.T) {
	db := newTestDB(t)
	repo := NewSendLogRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-72 * time.Hour)
	for i := int64(1); i <= 5; i++ {
		entry := &domain.SendLog{SourceChatID: 1, SourceMessageID: i, DestChatID: 2, DestMessageID: i}
		require.NoError(t, repo.Record(ctx, entry))
	}
	// Age three rows past the cutoff.
	require.NoError(t, db.Model(&domain.SendLog{}).
		Where("source_message_id <= ?", 3).
		Update("created_at", old).Error)

	cutoff := time.Now().Add(-48 * time.Hour)

	deleted, err := repo.PruneBefore(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.PruneBefore(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.PruneBefore(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	rows, err := repo.ForwardLookup(ctx, 1, 4)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
