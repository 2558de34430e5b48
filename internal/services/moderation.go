package services

import (
	"context"
	"errors"

	"mediahub/internal/domain"
	hub_errors "mediahub/pkg/errors"
	"mediahub/pkg/logger"
)

// RestrictionStore is the durable moderation record.
type RestrictionStore interface {
	ActiveRestriction(ctx context.Context, userID int64) (domain.UserRestriction, error)
}

// RestrictionCache fronts restriction lookups on the ingest hot path.
type RestrictionCache interface {
	GetRestriction(ctx context.Context, userID int64) (string, error)
	SetRestriction(ctx context.Context, userID int64, label string) error
}

const restrictionNone = "none"

// ModerationService answers whether a sender's content may enter the
// pipeline. Muted and banned users are silent-dropped at ingest; the engine
// never acknowledges a restriction to the restricted user.
type ModerationService struct {
	store RestrictionStore
	cache RestrictionCache
	log   *logger.Logger
}

// NewModerationService creates a moderation service.
func NewModerationService(store RestrictionStore, cache RestrictionCache, log *logger.Logger) *ModerationService {
	return &ModerationService{store: store, cache: cache, log: log}
}

// IsRestricted reports whether the user is currently muted or banned.
// Cache misses fall through to the durable store; store errors fail open so
// a database hiccup never blocks the whole ingest path.
func (s *ModerationService) IsRestricted(ctx context.Context, userID int64) bool {
	if userID == 0 {
		return false
	}

	if label, err := s.cache.GetRestriction(ctx, userID); err == nil && label != "" {
		return label != restrictionNone
	}

	restriction, err := s.store.ActiveRestriction(ctx, userID)
	if errors.Is(err, hub_errors.ErrNotFound) {
		_ = s.cache.SetRestriction(ctx, userID, restrictionNone)
		return false
	}
	if err != nil {
		s.log.Errorf("restriction lookup failed for user %d: %v", userID, err)
		return false
	}

	_ = s.cache.SetRestriction(ctx, userID, restriction.Kind)
	return true
}
