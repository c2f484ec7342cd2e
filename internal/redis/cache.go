package redis

import (
	"context"
	"encoding/json"
	"time"

	"medbridge/internal/domain/identity"

	goredis "github.com/redis/go-redis/v9"
)

const identityKeyPrefix = "identity:"

// IdentityCache stores resolved identities, keyed by user id.
type IdentityCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// cachedIdentity is the stored form. Unlike the public JSON view of an
// identity it keeps the push token.
type cachedIdentity struct {
	UserID      string `json:"uid"`
	Role        string `json:"role"`
	DisplayName string `json:"name"`
	PushToken   string `json:"push,omitempty"`
}

func NewIdentityCache(client *goredis.Client, ttl time.Duration) *IdentityCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &IdentityCache{client: client, ttl: ttl}
}

// Get returns the cached identity, or ok=false on a miss.
func (c *IdentityCache) Get(ctx context.Context, userID string) (identity.Identity, bool, error) {
	data, err := c.client.Get(ctx, identityKeyPrefix+userID).Bytes()
	if err == goredis.Nil {
		return identity.Identity{}, false, nil
	}
	if err != nil {
		return identity.Identity{}, false, err
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return identity.Identity{}, false, err
	}
	role, ok := identity.ParseRole(cached.Role)
	if !ok {
		return identity.Identity{}, false, nil
	}
	return identity.Identity{
		UserID:      cached.UserID,
		Role:        role,
		DisplayName: cached.DisplayName,
		PushToken:   cached.PushToken,
	}, true, nil
}

func (c *IdentityCache) Set(ctx context.Context, id identity.Identity) error {
	data, err := json.Marshal(cachedIdentity{
		UserID:      id.UserID,
		Role:        string(id.Role),
		DisplayName: id.DisplayName,
		PushToken:   id.PushToken,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, identityKeyPrefix+id.UserID, data, c.ttl).Err()
}

func (c *IdentityCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, identityKeyPrefix+userID).Err()
}
