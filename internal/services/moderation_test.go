package services

import (
	"context"
	"testing"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"
	"mediahub/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type fakeRestrictionStore struct {
	restricted map[int64]domain.UserRestriction
	lookups    int
}

func (s *fakeRestrictionStore) ActiveRestriction(_ context.Context, userID int64) (domain.UserRestriction, error) {
	s.lookups++
	if r, ok := s.restricted[userID]; ok {
		return r, nil
	}
	return domain.UserRestriction{}, hub_errors.ErrNotFound
}

type fakeRestrictionCache struct {
	labels map[int64]string
}

func (c *fakeRestrictionCache) GetRestriction(_ context.Context, userID int64) (string, error) {
	return c.labels[userID], nil
}

func (c *fakeRestrictionCache) SetRestriction(_ context.Context, userID int64, label string) error {
	c.labels[userID] = label
	return nil
}

func TestIsRestricted(t *testing.T) {
	store := &fakeRestrictionStore{restricted: map[int64]domain.UserRestriction{
		5: {UserID: 5, Kind: domain.RestrictionMute, Active: true},
	}}
	cache := &fakeRestrictionCache{labels: map[int64]string{}}
	svc := NewModerationService(store, cache, logger.Nop())
	ctx := context.Background()

	assert.True(t, svc.IsRestricted(ctx, 5))
	assert.False(t, svc.IsRestricted(ctx, 6))
	assert.False(t, svc.IsRestricted(ctx, 0), "channel posts carry no user")
}

func TestIsRestrictedUsesCache(t *testing.T) {
	store := &fakeRestrictionStore{restricted: map[int64]domain.UserRestriction{}}
	cache := &fakeRestrictionCache{labels: map[int64]string{}}
	svc := NewModerationService(store, cache, logger.Nop())
	ctx := context.Background()

	svc.IsRestricted(ctx, 7)
	svc.IsRestricted(ctx, 7)
	svc.IsRestricted(ctx, 7)
	assert.Equal(t, 1, store.lookups, "verdict served from cache after the first miss")
	assert.Equal(t, "none", cache.labels[7])
}
