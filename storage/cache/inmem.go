package cache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/quizroom/core"
)

type memoryBlacklist struct {
	mutex   sync.RWMutex
	tokens  map[string]time.Time
	nowFunc func() time.Time // mockable
}

var _ core.TokenBlacklist = (*memoryBlacklist)(nil)

// NewMemoryBlacklist is used when no Redis server is configured.
func NewMemoryBlacklist() core.TokenBlacklist {
	return &memoryBlacklist{tokens: make(map[string]time.Time), nowFunc: time.Now}
}

func (bl *memoryBlacklist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	bl.mutex.Lock()
	defer bl.mutex.Unlock()

	now := bl.nowFunc()
	for id, exp := range bl.tokens {
		if now.After(exp) {
			delete(bl.tokens, id)
		}
	}
	if expiresAt.After(now) {
		bl.tokens[tokenID] = expiresAt
	}
	return nil
}

func (bl *memoryBlacklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	bl.mutex.RLock()
	defer bl.mutex.RUnlock()

	exp, ok := bl.tokens[tokenID]
	return ok && bl.nowFunc().Before(exp), nil
}
