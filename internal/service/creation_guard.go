package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrCreationLockTimeout is returned when a creation lock could not be taken within its TTL.
var ErrCreationLockTimeout = errors.New("timed out waiting for creation lock")

// CreationGuard serializes creation attempts for the same source query across processes.
// It narrows the window in which concurrent creators race; the database unique index
// remains the authority on duplicates.
type CreationGuard interface {
	Acquire(ctx context.Context, sourceQuery string) (release func(), err error)
}

type noopCreationGuard struct{}

// NewNoopCreationGuard returns a guard that never blocks.
func NewNoopCreationGuard() CreationGuard {
	return noopCreationGuard{}
}

func (noopCreationGuard) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisCreationGuard struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisCreationGuard builds a guard backed by SET NX PX locks.
func NewRedisCreationGuard(client *redis.Client, ttl time.Duration) CreationGuard {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &redisCreationGuard{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

// CreationLockKey returns the redis key guarding sourceQuery.
func CreationLockKey(sourceQuery string) string {
	sum := md5.Sum([]byte(sourceQuery))
	return "ticket:create:" + hex.EncodeToString(sum[:])
}

func (g *redisCreationGuard) Acquire(ctx context.Context, sourceQuery string) (func(), error) {
	key := CreationLockKey(sourceQuery)
	token := uuid.NewString()
	deadline := time.Now().Add(g.ttl)

	for {
		ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil {
			return func() {}, fmt.Errorf("acquire creation lock: %w", err)
		}
		if ok {
			return func() { g.release(ctx, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return func() {}, ErrCreationLockTimeout
		}

		timer := time.NewTimer(g.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return func() {}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *redisCreationGuard) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, g.client, []string{key}, token).Err()
}
