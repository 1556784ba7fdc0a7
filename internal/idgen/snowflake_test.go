package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeIDsAreUniqueAndIncreasing(t *testing.T) {
	gen, err := NewSnowflake(1)
	require.NoError(t, err)

	prev := gen.Next()
	for i := 0; i < 1000; i++ {
		next := gen.Next()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestSnowflakeRejectsOutOfRangeNode(t *testing.T) {
	_, err := NewSnowflake(4096)
	assert.Error(t, err)
}

func TestSequenceConcurrentUse(t *testing.T) {
	var seq Sequence
	seen := make(map[int64]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := seq.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}
