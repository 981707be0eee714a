package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "categorize:rules:version"
	bumpChannel     = "categorize.bump"
)

// RuleCache caches the learned rule set per company in Redis with a version
// counter. Invalidation bumps the version and publishes on a channel so
// other instances drop their entries too. A nil client degrades to loading
// straight from the repository, which keeps tests and single-binary setups
// simple.
type RuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRuleCache instantiates the cache helper.
func NewRuleCache(client *redis.Client, ttl time.Duration) *RuleCache {
	return &RuleCache{client: client, ttl: ttl}
}

// FetchRules loads the cached rule set or populates it using the loader.
func (c *RuleCache) FetchRules(ctx context.Context, companyID int64, loader func(context.Context) ([]Rule, error)) ([]Rule, error) {
	if loader == nil {
		return nil, errors.New("categorize: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key, err := c.buildKey(ctx, companyID)
	if err != nil {
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rules []Rule
		if jsonErr := json.Unmarshal(payload, &rules); jsonErr == nil {
			return rules, nil
		}
		// Fall through on corrupt payloads and reload.
	} else if err != redis.Nil {
		return nil, err
	}
	rules, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// Clear invalidates all cached rule sets by bumping the global version and
// publishing the bump event.
func (c *RuleCache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications.
func (c *RuleCache) ListenForInvalidation(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "" {
					if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
						continue
					}
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}

func (c *RuleCache) buildKey(ctx context.Context, companyID int64) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("categorize:rules:%d:%d", companyID, ver), nil
}

func (c *RuleCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}
