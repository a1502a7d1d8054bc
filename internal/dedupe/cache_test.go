// ABOUTME: Tests for the webhook redelivery dedupe cache.
// ABOUTME: Validates TTL expiration, size limits, eviction, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_CheckAndMark_New(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	// First delivery is new, second is a duplicate
	assert.False(t, cache.CheckAndMark("wamid.1"))
	assert.True(t, cache.CheckAndMark("wamid.1"))
}

func TestCache_CheckAndMark_Expired(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("wamid.expiring"))

	// Wait for TTL to lapse; the ID should be treated as new again
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.CheckAndMark("wamid.expiring"))
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	cache.CheckAndMark("wamid.1")
	cache.CheckAndMark("wamid.2")
	cache.CheckAndMark("wamid.3")

	// Adding a fourth evicts the oldest
	cache.CheckAndMark("wamid.4")
	assert.Equal(t, 3, cache.Len())

	// wamid.1 was evicted so it counts as new again
	assert.False(t, cache.CheckAndMark("wamid.1"))
}

func TestCache_DuplicateRefreshesOrder(t *testing.T) {
	cache := New(5*time.Minute, 2)
	defer cache.Close()

	cache.CheckAndMark("wamid.a")
	cache.CheckAndMark("wamid.b")

	// Re-seeing a moves it to the back, so c evicts b, not a
	cache.CheckAndMark("wamid.a")
	cache.CheckAndMark("wamid.c")

	assert.True(t, cache.CheckAndMark("wamid.a"))
	assert.False(t, cache.CheckAndMark("wamid.b"))
}

func TestCache_Concurrent(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.CheckAndMark(fmt.Sprintf("wamid.%d.%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, cache.Len())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}
