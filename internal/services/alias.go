package services

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	hub_errors "mediahub/pkg/errors"
)

// AliasStore is the durable pseudonym mapping.
type AliasStore interface {
	Get(ctx context.Context, userID int64) (string, error)
	Save(ctx context.Context, userID int64, alias string) error
}

// AliasCache is the fast-store front for hot alias lookups.
type AliasCache interface {
	GetAlias(ctx context.Context, userID int64) (string, error)
	SetAlias(ctx context.Context, userID int64, alias string) error
}

// AliasService hands out stable pseudonyms that stand in for sender
// identity on redistributed messages. The alias is derived, not random, so
// every process computes the same value for a user without coordination;
// the durable row exists for reverse lookups by operators.
type AliasService struct {
	store AliasStore
	cache AliasCache
	salt  string
}

// NewAliasService creates an alias service. The salt keeps aliases from
// being brute-forced back to user ids.
func NewAliasService(store AliasStore, cache AliasCache, salt string) *AliasService {
	return &AliasService{store: store, cache: cache, salt: salt}
}

// AliasFor returns the user's pseudonym, creating and persisting it on
// first use.
func (s *AliasService) AliasFor(ctx context.Context, userID int64) (string, error) {
	if cached, err := s.cache.GetAlias(ctx, userID); err == nil && cached != "" {
		return cached, nil
	}

	alias, err := s.store.Get(ctx, userID)
	if errors.Is(err, hub_errors.ErrNotFound) {
		alias = deriveAlias(s.salt, userID)
		if err := s.store.Save(ctx, userID, alias); err != nil && !errors.Is(err, hub_errors.ErrAlreadyExists) {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	_ = s.cache.SetAlias(ctx, userID, alias)
	return alias, nil
}

// FormatAliasTag renders the pseudonym line appended to outbound bodies.
func FormatAliasTag(alias string) string {
	if alias == "" {
		return ""
	}
	return "- " + alias
}

// deriveAlias computes the deterministic pseudonym for a user id.
func deriveAlias(salt string, userID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", salt, userID)))
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:])
	return "u-" + strings.ToLower(encoded[:6])
}
