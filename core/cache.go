package core

import (
	"context"
	"time"
)

// TokenBlacklist keeps the IDs of revoked auth tokens until they expire.
type TokenBlacklist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
