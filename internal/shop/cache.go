package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	ownedValue    = "1"
	notOwnedValue = "0"
)

type cachedChecker struct {
	next        Checker
	client      *redis.Client
	ttl         time.Duration
	serviceName string
}

// NewCachedChecker puts a read-through Redis cache in front of next.
// Redis failures are logged and fall back to next.
func NewCachedChecker(next Checker, client *redis.Client, ttl time.Duration, serviceName string) Checker {
	return &cachedChecker{
		next:        next,
		client:      client,
		ttl:         ttl,
		serviceName: serviceName,
	}
}

// key length-prefixes shopID so ids containing ':' cannot share an entry.
func (c *cachedChecker) key(shopID, userID string) string {
	return fmt.Sprintf("%s:shop_owner:%d:%s:%s", c.serviceName, len(shopID), shopID, userID)
}

func (c *cachedChecker) UserOwnsShop(ctx context.Context, shopID, userID string) (bool, error) {
	key := c.key(shopID, userID)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == ownedValue, nil
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("shop: ownership cache read failed")
	}

	owns, err := c.next.UserOwnsShop(ctx, shopID, userID)
	if err != nil {
		return false, err
	}

	value := notOwnedValue
	if owns {
		value = ownedValue
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("shop: ownership cache write failed")
	}

	return owns, nil
}
