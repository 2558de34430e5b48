package services

import (
	"context"
	"time"

	"mediahub/internal/domain"
	"mediahub/pkg/logger"
)

// ChatReader is the registry lookup the entitlement check needs.
type ChatReader interface {
	Get(ctx context.Context, chatID int64) (domain.Chat, error)
}

// PaidStore answers the latest paid-through date for a chat.
type PaidStore interface {
	PaidUntil(ctx context.Context, chatID int64) (time.Time, error)
}

// EntitlementCache fronts the verdict on the fan-out hot path.
type EntitlementCache interface {
	GetEntitled(ctx context.Context, chatID int64) (*bool, error)
	SetEntitled(ctx context.Context, chatID int64, entitled bool) error
	InvalidateEntitled(ctx context.Context, chatID int64) error
}

// EntitlementService decides whether a source chat's messages are
// redistributed. A chat is entitled while its free trial runs or while any
// subscription covers the current moment, whichever ends later. Admin
// chats always pass.
type EntitlementService struct {
	chats  ChatReader
	paid   PaidStore
	cache  EntitlementCache
	log    *logger.Logger
	clock  func() time.Time
	trial  time.Duration
	admins map[int64]struct{}
}

// NewEntitlementService creates an entitlement service. trialDays is the
// free window granted from chat registration.
func NewEntitlementService(chats ChatReader, paid PaidStore, cache EntitlementCache, log *logger.Logger, trialDays int, adminIDs []int64) *EntitlementService {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &EntitlementService{
		chats:  chats,
		paid:   paid,
		cache:  cache,
		log:    log,
		clock:  time.Now,
		trial:  time.Duration(trialDays) * 24 * time.Hour,
		admins: admins,
	}
}

// Entitled reports whether the chat currently holds redistribution rights.
// Verdicts are cached for a few minutes; a fresh purchase is made visible
// immediately through Invalidate.
func (s *EntitlementService) Entitled(ctx context.Context, chatID int64) (bool, error) {
	if _, ok := s.admins[chatID]; ok {
		return true, nil
	}

	if cached, err := s.cache.GetEntitled(ctx, chatID); err == nil && cached != nil {
		return *cached, nil
	}

	entitled, err := s.compute(ctx, chatID)
	if err != nil {
		return false, err
	}
	if err := s.cache.SetEntitled(ctx, chatID, entitled); err != nil {
		s.log.Warnf("entitlement cache write failed for chat %d: %v", chatID, err)
	}
	return entitled, nil
}

// Invalidate drops the cached verdict, e.g. after a purchase.
func (s *EntitlementService) Invalidate(ctx context.Context, chatID int64) {
	_ = s.cache.InvalidateEntitled(ctx, chatID)
}

// PaidThrough returns the later of the trial end and the latest
// subscription expiry. Used for status replies.
func (s *EntitlementService) PaidThrough(ctx context.Context, chatID int64) (time.Time, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	deadline := chat.RegisteredAt.Add(s.trial)

	paidUntil, err := s.paid.PaidUntil(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	if paidUntil.After(deadline) {
		deadline = paidUntil
	}
	return deadline, nil
}

func (s *EntitlementService) compute(ctx context.Context, chatID int64) (bool, error) {
	deadline, err := s.PaidThrough(ctx, chatID)
	if err != nil {
		return false, err
	}
	return s.clock().Before(deadline), nil
}
