// Bounded lock-free queue of framed messages between source workers and output writers
package queue

import (
	"dcsingest/pkg/message"
	"fmt"
	"runtime"
	"sync/atomic"
)

type slot struct {
	seq atomic.Uint64
	msg *message.Message
}

// Fixed power of two ring. Producers claim tail positions, consumers head positions,
// slot sequence numbers order the hand over.
type ring struct {
	capacity int
	mask     uint64
	slots    []slot
	head     atomic.Uint64
	tail     atomic.Uint64
	ready    chan struct{}

	retired atomic.Bool  // No new writes, consumers move on once drained
	writers atomic.Int32 // Producers currently inside offer

	depth atomic.Uint64
	bytes atomic.Uint64
}

func newRing(capacity uint64) (r *ring, err error) {
	if capacity < 2 {
		err = fmt.Errorf("queue capacity must be at least 2 but got %d", capacity)
		return
	}
	if capacity&(capacity-1) != 0 {
		err = fmt.Errorf("queue capacity must be a power of two but got %d", capacity)
		return
	}

	r = &ring{
		capacity: int(capacity),
		mask:     capacity - 1,
		slots:    make([]slot, capacity),
		ready:    make(chan struct{}, 1),
	}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return
}

// Inserts msg, false when full
func (r *ring) offer(msg *message.Message) (ok bool, casRetries uint64) {
	for {
		pos := r.tail.Load()
		cell := &r.slots[pos&r.mask]
		seq := cell.seq.Load()

		switch {
		case seq == pos:
			if !r.tail.CompareAndSwap(pos, pos+1) {
				casRetries++
				continue
			}
			cell.msg = msg
			cell.seq.Store(pos + 1)
			r.depth.Add(1)
			r.bytes.Add(uint64(msg.Len()))

			select {
			case r.ready <- struct{}{}:
			default:
			}
			ok = true
			return
		case seq < pos:
			return
		default:
			runtime.Gosched()
		}
	}
}

// Removes the oldest message, false when empty
func (r *ring) take() (msg *message.Message, ok bool, casRetries uint64) {
	for {
		pos := r.head.Load()
		cell := &r.slots[pos&r.mask]
		seq := cell.seq.Load()

		switch {
		case seq == pos+1:
			if !r.head.CompareAndSwap(pos, pos+1) {
				casRetries++
				continue
			}
			msg = cell.msg
			cell.msg = nil
			cell.seq.Store(pos + r.mask + 1)
			decrementFloor(&r.depth, 1)
			decrementFloor(&r.bytes, uint64(msg.Len()))
			ok = true
			return
		case seq < pos+1:
			return
		}
		// Another consumer is ahead
	}
}

func (r *ring) empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Saturating subtract, push side counters may lag behind a concurrent pop
func decrementFloor(counter *atomic.Uint64, value uint64) {
	for {
		current := counter.Load()
		next := uint64(0)
		if current > value {
			next = current - value
		}
		if counter.CompareAndSwap(current, next) {
			return
		}
	}
}
