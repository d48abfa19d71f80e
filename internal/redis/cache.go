package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-chat/internal/domain/user"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key pattern:
// - profile:{user_id} - display profile of a user seen by this client

const defaultProfileTTL = 24 * time.Hour

// ProfileCache is the only local persistence of the chat client.
type ProfileCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewProfileCache(client *goredis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{client: client, ttl: ttl}
}

func profileKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

// GetProfile returns nil, nil on a cache miss.
func (c *ProfileCache) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var p user.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *ProfileCache) SetProfile(ctx context.Context, p user.Profile) error {
	if p.UserID == "" {
		return errors.New("profile user id is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(p.UserID), data, c.ttl).Err()
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, profileKey(userID)).Err()
}
