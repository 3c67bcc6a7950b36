package stores

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisUsageStore keeps per-account usage counters in a Redis hash
// (key: usage:{accountID}, field per resource)
type RedisUsageStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "usage:%s"
}

func NewRedisUsageStore(client *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{client: client, keyFmt: "usage:%s"}
}

func (r *RedisUsageStore) key(accountID string) string {
	return fmt.Sprintf(r.keyFmt, accountID)
}

func (r *RedisUsageStore) Increment(ctx context.Context, accountID, resource string, delta int64) (int64, error) {
	return r.client.HIncrBy(ctx, r.key(accountID), resource, delta).Result()
}

func (r *RedisUsageStore) Get(ctx context.Context, accountID, resource string) (int64, error) {
	v, err := r.client.HGet(ctx, r.key(accountID), resource).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (r *RedisUsageStore) All(ctx context.Context, accountID string) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.key(accountID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for resource, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("usage %s/%s: bad counter %q", accountID, resource, v)
		}
		out[resource] = n
	}
	return out, nil
}
