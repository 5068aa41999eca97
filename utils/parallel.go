package utils

import (
	"fmt"
	"sync"
)

// PartitionMap splits a contiguous index range [0,MaxIndex) into
// ParallelDegree pieces with a maximum imbalance of one item. It is used for
// both cell ownership and dof ownership: rank n owns the half-open range
// Partitions[n].
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// GetBucket returns the rank owning global index kDim and the owned range.
func (pm *PartitionMap) GetBucket(kDim int) (bucketNum, min, max int) {
	// Initial guess, then walk to the containing partition
	bucketNum = int(float64(pm.ParallelDegree*kDim) / float64(pm.MaxIndex))
	if bucketNum >= pm.ParallelDegree {
		bucketNum = pm.ParallelDegree - 1
	}
	for !(pm.Partitions[bucketNum][0] <= kDim && pm.Partitions[bucketNum][1] > kDim) {
		if pm.Partitions[bucketNum][0] > kDim {
			bucketNum--
		} else {
			bucketNum++
		}
		if bucketNum == -1 || bucketNum == pm.ParallelDegree {
			panic(fmt.Errorf("index %d out of partition range [0,%d)", kDim, pm.MaxIndex))
		}
	}
	min, max = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) GetBucketDimension(bn int) (kMax int) {
	var (
		k1, k2 = pm.GetBucketRange(bn)
	)
	kMax = k2 - k1
	return
}

func (pm *PartitionMap) GetLocalK(baseK int) (k, bn int) {
	var (
		kmin int
	)
	bn, kmin, _ = pm.GetBucket(baseK)
	k = baseK - kmin
	return
}

func (pm *PartitionMap) GetGlobalK(kLocal, bn int) (kGlobal int) {
	var (
		kMin = pm.Partitions[bn][0]
	)
	kGlobal = kMin + kLocal
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// MailBox carries typed messages between ranks. The usage pattern is:
// for range messages {Post}; Deliver; barrier; Receive.
type MailBox[T any] struct {
	NP           int
	MessageChans []chan []T      // One for each rank
	PostMsgQs    []map[int][]T   // One for each rank, key is target rank
}

func NewMailBox[T any](NP int) *MailBox[T] {
	mb := &MailBox[T]{
		NP:           NP,
		MessageChans: make([]chan []T, NP),
		PostMsgQs:    make([]map[int][]T, NP),
	}
	for n := 0; n < NP; n++ {
		mb.MessageChans[n] = make(chan []T, NP) // Worst case is all-to-all
		mb.PostMsgQs[n] = make(map[int][]T)
	}
	return mb
}

func (mb *MailBox[T]) PostMessage(myRank, targetRank int, msg T) {
	if targetRank < 0 || targetRank > mb.NP-1 {
		panic(fmt.Sprintf("target rank %d out of bounds", targetRank))
	}
	mb.PostMsgQs[myRank][targetRank] = append(mb.PostMsgQs[myRank][targetRank], msg)
}

func (mb *MailBox[T]) PostMessageToAll(myRank int, msg T) {
	for k := 0; k < mb.NP; k++ {
		if k != myRank {
			mb.PostMessage(myRank, k, msg)
		}
	}
}

// DeliverMyMessages must be called in myRank before receivers can receive.
func (mb *MailBox[T]) DeliverMyMessages(myRank int) {
	for targetRank, msgs := range mb.PostMsgQs[myRank] {
		mb.MessageChans[targetRank] <- msgs
		delete(mb.PostMsgQs[myRank], targetRank)
	}
}

// ReceiveMyMessages drains the channel for myRank. Must be called after a
// barrier following DeliverMyMessages on all ranks.
func (mb *MailBox[T]) ReceiveMyMessages(myRank int) (msgs []T) {
	for {
		select {
		case batch := <-mb.MessageChans[myRank]:
			msgs = append(msgs, batch...)
		default:
			return
		}
	}
}

// Barrier is a reusable rendezvous for NP ranks.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	n     int
	count int
	gen   int
}

func NewBarrier(n int) (b *Barrier) {
	b = &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return
}

func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

// Comm is the fixed set of cooperating ranks for one data-parallel
// computation. Collectives fail by panic - a half-finished exchange leaves
// nothing recoverable.
type Comm struct {
	NP int
	b  *Barrier
}

func NewComm(NP int) (c *Comm) {
	if NP < 1 {
		panic(fmt.Errorf("communicator size must be at least 1, got %d", NP))
	}
	c = &Comm{
		NP: NP,
		b:  NewBarrier(NP),
	}
	return
}

func (c *Comm) Size() int { return c.NP }

func (c *Comm) Barrier() {
	if c.NP == 1 {
		return
	}
	c.b.Wait()
}
