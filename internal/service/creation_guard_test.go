package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreationLockKey(t *testing.T) {
	key := CreationLockKey("Is this a policy violation?")
	assert.Equal(t, key, CreationLockKey("Is this a policy violation?"))
	assert.NotEqual(t, key, CreationLockKey("Is this a policy violation"))
	assert.Len(t, key, len("ticket:create:")+32)
}

func TestNoopCreationGuard(t *testing.T) {
	release, err := NewNoopCreationGuard().Acquire(context.Background(), "Q1")
	require.NoError(t, err)
	release()
}

// TestRedisCreationGuard runs against a real server when TEST_REDIS_ADDR is set.
func TestRedisCreationGuard(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	guard := NewRedisCreationGuard(client, time.Second)
	query := "guard-" + time.Now().Format(time.RFC3339Nano)

	release, err := guard.Acquire(context.Background(), query)
	require.NoError(t, err)

	var (
		wg          sync.WaitGroup
		secondAfter time.Time
	)
	firstReleased := make(chan time.Time, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := guard.Acquire(context.Background(), query)
		assert.NoError(t, err)
		secondAfter = time.Now()
		r()
	}()

	time.Sleep(100 * time.Millisecond)
	firstReleased <- time.Now()
	release()
	wg.Wait()

	assert.True(t, secondAfter.After(<-firstReleased))
	exists, err := client.Exists(context.Background(), CreationLockKey(query)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestRedisCreationGuardTimesOut(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	query := "timeout-" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, client.Set(context.Background(), CreationLockKey(query), "someone-else", 5*time.Second).Err())
	t.Cleanup(func() { client.Del(context.Background(), CreationLockKey(query)) })

	_, err := NewRedisCreationGuard(client, 100*time.Millisecond).Acquire(context.Background(), query)
	assert.ErrorIs(t, err, ErrCreationLockTimeout)
}
