package branch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewMemory("Computer", "Civil")

	t.Run("list is sorted", func(t *testing.T) {
		names, err := reg.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Civil", "Computer"}, names)
	})

	t.Run("add rejects duplicates and blanks", func(t *testing.T) {
		require.NoError(t, reg.Add(ctx, "Mechanical"))
		assert.ErrorIs(t, reg.Add(ctx, "Mechanical"), ErrExists)
		assert.Error(t, reg.Add(ctx, "   "))
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		require.NoError(t, reg.Remove(ctx, "Civil"))
		require.NoError(t, reg.Remove(ctx, "Civil"))
		names, err := reg.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, names, "Civil")
	})
}
