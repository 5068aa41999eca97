package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionMap(t *testing.T) {
	pm := NewPartitionMap(3, 10)
	// 10 items over 3 ranks splits 4,3,3 with the remainder up front
	assert.Equal(t, [2]int{0, 4}, pm.Partitions[0])
	assert.Equal(t, [2]int{4, 7}, pm.Partitions[1])
	assert.Equal(t, [2]int{7, 10}, pm.Partitions[2])
	for k := 0; k < 10; k++ {
		bn, min, max := pm.GetBucket(k)
		assert.True(t, min <= k && k < max)
		assert.Equal(t, bn, func() int {
			switch {
			case k < 4:
				return 0
			case k < 7:
				return 1
			}
			return 2
		}())
	}
	assert.Equal(t, 4, pm.GetBucketDimension(0))
	assert.Panics(t, func() { pm.GetBucket(10) })

	k, bn := pm.GetLocalK(5)
	assert.Equal(t, 1, k)
	assert.Equal(t, 1, bn)
	assert.Equal(t, 5, pm.GetGlobalK(1, 1))
}

func TestMailBox(t *testing.T) {
	var (
		NP = 3
		mb = NewMailBox[int](NP)
		b  = NewBarrier(NP)
		wg = sync.WaitGroup{}
		mu = sync.Mutex{}
		rx = make(map[int][]int)
	)
	for n := 0; n < NP; n++ {
		wg.Add(1)
		go func(myRank int) {
			defer wg.Done()
			mb.PostMessageToAll(myRank, myRank*100)
			mb.DeliverMyMessages(myRank)
			b.Wait()
			msgs := mb.ReceiveMyMessages(myRank)
			mu.Lock()
			rx[myRank] = msgs
			mu.Unlock()
		}(n)
	}
	wg.Wait()
	for n := 0; n < NP; n++ {
		assert.Len(t, rx[n], NP-1)
		assert.NotContains(t, rx[n], n*100)
	}
}

func TestBarrierReuse(t *testing.T) {
	var (
		NP      = 4
		rounds  = 3
		b       = NewBarrier(NP)
		wg      = sync.WaitGroup{}
		mu      = sync.Mutex{}
		counter = 0
	)
	for n := 0; n < NP; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				mu.Lock()
				counter++
				mu.Unlock()
				b.Wait()
				// Every rank sees the full round completed after the barrier
				mu.Lock()
				assert.True(t, counter >= (r+1)*NP)
				mu.Unlock()
				b.Wait()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, rounds*NP, counter)
}

func TestComm(t *testing.T) {
	assert.Panics(t, func() { NewComm(0) })
	c := NewComm(1)
	assert.Equal(t, 1, c.Size())
	c.Barrier() // no-op for a single rank
}
