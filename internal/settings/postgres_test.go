package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxhui123/AutoQA/internal/testutil"
)

func TestPostgresStore_Integration(t *testing.T) {
	db := testutil.RequireDB(t)
	ctx := context.Background()

	s, err := NewPostgresStoreFromPool(ctx, db.Pool)
	require.NoError(t, err)
	db.Cleanup(t)

	_, ok, err := s.Get(ctx, KeyCredential)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyCredential, "pg-key"))
	require.NoError(t, s.Set(ctx, KeyCredential, "pg-key-2"))

	v, ok, err := s.Get(ctx, KeyCredential)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pg-key-2", v)

	require.NoError(t, s.Delete(ctx, KeyCredential))
	_, ok, err = s.Get(ctx, KeyCredential)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewPostgresStore_BadURL(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "::not a url::")
	assert.Error(t, err)
}
