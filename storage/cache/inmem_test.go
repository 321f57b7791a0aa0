package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryBlacklist(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	bl := NewMemoryBlacklist().(*memoryBlacklist)
	bl.nowFunc = func() time.Time { return now }

	assert.Nil(t, bl.Revoke(ctx, "live", now.Add(time.Hour)))
	assert.Nil(t, bl.Revoke(ctx, "expired", now.Add(-time.Minute)))

	revoked, err := bl.IsRevoked(ctx, "live")
	assert.Nil(t, err)
	assert.True(t, revoked)

	revoked, _ = bl.IsRevoked(ctx, "expired")
	assert.False(t, revoked)
	revoked, _ = bl.IsRevoked(ctx, "unknown")
	assert.False(t, revoked)

	// entries are dropped once expired
	now = now.Add(2 * time.Hour)
	revoked, _ = bl.IsRevoked(ctx, "live")
	assert.False(t, revoked)
	assert.Nil(t, bl.Revoke(ctx, "other", now.Add(time.Hour)))
	assert.Len(t, bl.tokens, 1)
}
