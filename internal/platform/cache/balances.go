package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionPrefix = "ledger:version"
	keyPrefix     = "ledger:balances"
	// BumpChannel carries "<entity>:<version>" after every ledger write.
	BumpChannel = "ledger.bump"
)

// Balances is a Redis cache of balance reads, versioned per entity so a single
// INCR invalidates every key of the entity.
type Balances struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalances instantiates the cache helper. A nil client disables caching.
func NewBalances(client *redis.Client, ttl time.Duration) *Balances {
	return &Balances{client: client, ttl: ttl}
}

func versionKey(entityID int64) string {
	return versionPrefix + ":" + strconv.FormatInt(entityID, 10)
}

// Version returns the entity's cache version, initialising it when missing.
func (c *Balances) Version(ctx context.Context, entityID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(entityID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the entity's current version.
func (c *Balances) BuildKey(ctx context.Context, entityID int64, parts ...string) (string, error) {
	base := strings.Join(append([]string{keyPrefix, strconv.FormatInt(entityID, 10)}, parts...), ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, entityID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Balances) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the entity's keys by incrementing its version and
// publishing the new version on BumpChannel.
func (c *Balances) Bump(ctx context.Context, entityID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, versionKey(entityID)).Result()
	if err != nil {
		return err
	}
	payload := strconv.FormatInt(entityID, 10) + ":" + strconv.FormatInt(ver, 10)
	return c.client.Publish(ctx, BumpChannel, payload).Err()
}

// ListenForInvalidation subscribes to bumps published by other processes and
// calls onBump for each one until ctx is done.
func (c *Balances) ListenForInvalidation(ctx context.Context, onBump func(entityID, version int64)) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
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
				entity, ver, found := strings.Cut(msg.Payload, ":")
				if !found {
					continue
				}
				entityID, err1 := strconv.ParseInt(entity, 10, 64)
				version, err2 := strconv.ParseInt(ver, 10, 64)
				if err1 != nil || err2 != nil || onBump == nil {
					continue
				}
				onBump(entityID, version)
			}
		}
	}()
	return nil
}
