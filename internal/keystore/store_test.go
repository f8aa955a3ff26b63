package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx, "a")
	require.ErrorIs(t, err, ErrKeyNotFound)

	material := []byte("0123456789abcdef0123456789abcdef")
	created, err := s.Create(ctx, "a", material)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Create(ctx, "a", []byte("another"))
	require.NoError(t, err)
	assert.False(t, created, "second writer must lose")

	got, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, material, got)

	got[0] = 'X'
	again, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, material, again, "Load must return a copy")
}
