package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushAndSnapshotOrder(t *testing.T) {
	r := newRing[int](3)
	r.push(1)
	r.push(2)
	r.push(3)

	assert.Equal(t, []int{3, 2, 1}, r.snapshot())
}

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}
	// capacity 3: only the 3 newest survive, newest-first.
	assert.Equal(t, []int{5, 4, 3}, r.snapshot())
}

func TestRingEmptySnapshot(t *testing.T) {
	r := newRing[string](4)
	assert.Empty(t, r.snapshot())
}

func TestRingConcurrentPushDoesNotTearSnapshot(t *testing.T) {
	r := newRing[int](100)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.push(v)
		}(i)
	}
	wg.Wait()
	snap := r.snapshot()
	assert.Len(t, snap, 100)
}
