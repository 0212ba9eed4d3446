package node

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
    return 0
end
if redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2]) then
    return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

// Redis implements Adapter against a single Redis node. The scripts keep the
// token comparison and the expiry reset (or delete) inside one atomic call.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a Redis adapter using the provided client. The client's
// lifecycle stays with the caller.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Client returns the underlying Redis client.
func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Acquire implements Adapter.Acquire via SET NX PX.
func (r *Redis) Acquire(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, resource, token, ttl).Result()
}

// Extend implements Adapter.Extend.
func (r *Redis) Extend(ctx context.Context, resource string, token []byte, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, r.client, []string{resource}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Release implements Adapter.Release.
func (r *Redis) Release(ctx context.Context, resource string, token []byte) (bool, error) {
	res, err := releaseScript.Run(ctx, r.client, []string{resource}, token).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
