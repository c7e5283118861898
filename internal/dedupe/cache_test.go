// ABOUTME: Tests for the message-id dedupe cache
// ABOUTME: Validates TTL expiration, size limits, eviction, and concurrency safety

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_UnseenID(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.Seen("never-marked"))
}

func TestCache_MarkedID(t *testing.T) {
	cache := New(5*time.Minute, 100)

	cache.Mark("msg-1")
	assert.True(t, cache.Seen("msg-1"))
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := New(10*time.Millisecond, 100)

	cache.Mark("msg-1")
	assert.True(t, cache.Seen("msg-1"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.Seen("msg-1"), "entries expire after the TTL")
}

func TestCache_SeenOrMark(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.SeenOrMark("msg-1"), "first delivery is new")
	assert.True(t, cache.SeenOrMark("msg-1"), "redelivery is a duplicate")
}

func TestCache_ExpiredIDCanBeMarkedAgain(t *testing.T) {
	cache := New(10*time.Millisecond, 100)

	assert.False(t, cache.SeenOrMark("msg-1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, cache.SeenOrMark("msg-1"), "an expired id counts as new again")
}

func TestCache_SizeCapEvictsOldest(t *testing.T) {
	cache := New(5*time.Minute, 3)

	cache.Mark("m1")
	cache.Mark("m2")
	cache.Mark("m3")
	cache.Mark("m4") // evicts m1

	assert.False(t, cache.Seen("m1"))
	assert.True(t, cache.Seen("m2"))
	assert.True(t, cache.Seen("m4"))
	assert.Equal(t, 3, cache.Len())
}

func TestCache_RemarkRefreshesTimestamp(t *testing.T) {
	cache := New(30*time.Millisecond, 100)

	cache.Mark("msg-1")
	time.Sleep(20 * time.Millisecond)
	cache.Mark("msg-1")
	time.Sleep(20 * time.Millisecond)

	assert.True(t, cache.Seen("msg-1"), "re-marking restarts the TTL window")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New(time.Minute, 1000)

	var wg sync.WaitGroup
	duplicates := make([]int, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if cache.SeenOrMark(fmt.Sprintf("msg-%d", i)) {
					duplicates[w]++
				}
			}
		}(w)
	}
	wg.Wait()

	// Each of the 100 ids must have been admitted exactly once across all
	// workers: 800 attempts, 100 admissions, 700 duplicates.
	total := 0
	for _, d := range duplicates {
		total += d
	}
	assert.Equal(t, 700, total)
}
