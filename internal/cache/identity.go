package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tasktracker/tasktracker/internal/model"
)

const (
	// identityCachePrefix is the Redis key prefix for resolved identities.
	identityCachePrefix = "identity:user:"
	// identityCacheTTL bounds how long a deleted or renamed user can
	// still resolve through the cache.
	identityCacheTTL = 60 * time.Second
)

// cachedIdentity represents a resolved identity stored in Redis.
// Identities are keyed by token subject (the username), never by token,
// so token verification itself always runs.
type cachedIdentity struct {
	UserID       string  `json:"user_id"`
	Username     string  `json:"username"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// GetIdentity retrieves a cached identity by username.
// Returns nil on a cache miss; misses are never errors.
func (c *Cache) GetIdentity(ctx context.Context, username string) (*model.Identity, error) {
	key := identityCachePrefix + username

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &model.Identity{
		UserID:       cached.UserID,
		Username:     cached.Username,
		ProfileImage: cached.ProfileImage,
	}, nil
}

// SetIdentity caches a resolved identity.
func (c *Cache) SetIdentity(ctx context.Context, id *model.Identity) error {
	key := identityCachePrefix + id.Username

	data, err := json.Marshal(cachedIdentity{
		UserID:       id.UserID,
		Username:     id.Username,
		ProfileImage: id.ProfileImage,
	})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	return c.client.Set(ctx, key, data, identityCacheTTL).Err()
}

// DeleteIdentity removes a cached identity.
// Called when a user is updated or deleted so stale identities cannot
// outlive the mutation by more than one round trip.
func (c *Cache) DeleteIdentity(ctx context.Context, username string) error {
	return c.client.Del(ctx, identityCachePrefix+username).Err()
}
