package services

import (
	"context"
	"testing"
	"time"

	"mediahub/internal/domain"
	"mediahub/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePaidStore struct {
	until map[int64]time.Time
}

func (s *fakePaidStore) PaidUntil(_ context.Context, chatID int64) (time.Time, error) {
	return s.until[chatID], nil
}

type fakeEntCache struct {
	values map[int64]bool
}

func (c *fakeEntCache) GetEntitled(_ context.Context, chatID int64) (*bool, error) {
	if v, ok := c.values[chatID]; ok {
		return &v, nil
	}
	return nil, nil
}

func (c *fakeEntCache) SetEntitled(_ context.Context, chatID int64, entitled bool) error {
	c.values[chatID] = entitled
	return nil
}

func (c *fakeEntCache) InvalidateEntitled(_ context.Context, chatID int64) error {
	delete(c.values, chatID)
	return nil
}

func newEntFixture(now time.Time, adminIDs []int64) (*EntitlementService, *fakeChatRepo, *fakePaidStore, *fakeEntCache) {
	chats := newFakeChatRepo()
	paid := &fakePaidStore{until: make(map[int64]time.Time)}
	cache := &fakeEntCache{values: make(map[int64]bool)}
	svc := NewEntitlementService(chats, paid, cache, logger.Nop(), 30, adminIDs)
	svc.clock = func() time.Time { return now }
	return svc, chats, paid, cache
}

func TestEntitledDuringTrial(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc, chats, _, _ := newEntFixture(now, nil)
	ctx := context.Background()

	require.NoError(t, chats.Upsert(ctx, &domain.Chat{
		ChatID: 1, Active: true, RegisteredAt: now.AddDate(0, 0, -10),
	}))

	entitled, err := svc.Entitled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, entitled)
}

func TestNotEntitledAfterTrialWithoutSubscription(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc, chats, _, _ := newEntFixture(now, nil)
	ctx := context.Background()

	require.NoError(t, chats.Upsert(ctx, &domain.Chat{
		ChatID: 1, Active: true, RegisteredAt: now.AddDate(0, 0, -45),
	}))

	entitled, err := svc.Entitled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, entitled)
}

func TestEntitledBySubscriptionAfterTrial(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc, chats, paid, _ := newEntFixture(now, nil)
	ctx := context.Background()

	require.NoError(t, chats.Upsert(ctx, &domain.Chat{
		ChatID: 1, Active: true, RegisteredAt: now.AddDate(0, 0, -45),
	}))
	paid.until[1] = now.AddDate(0, 0, 5)

	entitled, err := svc.Entitled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, entitled)

	through, err := svc.PaidThrough(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, paid.until[1], through)
}

func TestEntitlementVerdictCached(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc, chats, paid, cache := newEntFixture(now, nil)
	ctx := context.Background()

	require.NoError(t, chats.Upsert(ctx, &domain.Chat{
		ChatID: 1, Active: true, RegisteredAt: now.AddDate(0, 0, -45),
	}))

	entitled, err := svc.Entitled(ctx, 1)
	require.NoError(t, err)
	require.False(t, entitled)

	// A purchase alone does not flip the cached verdict.
	paid.until[1] = now.AddDate(0, 0, 30)
	entitled, err = svc.Entitled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, entitled)

	// Invalidation makes it visible immediately.
	svc.Invalidate(ctx, 1)
	entitled, err = svc.Entitled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, entitled)
	assert.True(t, cache.values[1])
}

func TestAdminAlwaysEntitled(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	svc, _, _, _ := newEntFixture(now, []int64{77})

	// No chat row, no subscription: still entitled.
	entitled, err := svc.Entitled(context.Background(), 77)
	require.NoError(t, err)
	assert.True(t, entitled)
}
