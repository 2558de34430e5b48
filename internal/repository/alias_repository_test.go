package repository

import (
	"context"
	"testing"

	hub_errors "mediahub/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasSaveAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewAliasRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, 9)
	assert.ErrorIs(t, err, hub_errors.ErrNotFound)

	require.NoError(t, repo.Save(ctx, 9, "u-abc123"))

	alias, err := repo.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "u-abc123", alias)

	// Aliases never change once assigned.
	assert.ErrorIs(t, repo.Save(ctx, 9, "u-other0"), hub_errors.ErrAlreadyExists)
}

func TestConfigValues(t *testing.T) {
	db := newTestDB(t)
	repo := NewConfigRepository(db)
	ctx := context.Background()

	val, err := repo.GetValue(ctx, "signature_text")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, repo.SetValue(ctx, "signature_text", "via mediahub"))
	require.NoError(t, repo.SetValue(ctx, "signature_text", "powered by mediahub"))

	val, err = repo.GetValue(ctx, "signature_text")
	require.NoError(t, err)
	assert.Equal(t, "powered by mediahub", val)

	enabled, err := repo.GetBool(ctx, "signature_enabled", false)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, repo.SetValue(ctx, "signature_enabled", "true"))
	enabled, err = repo.GetBool(ctx, "signature_enabled", false)
	require.NoError(t, err)
	assert.True(t, enabled)
}
